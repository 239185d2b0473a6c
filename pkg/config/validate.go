package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/getmockd/webmap/pkg/backend"
	"github.com/getmockd/webmap/pkg/resource"
	"github.com/getmockd/webmap/pkg/server"
)

// errorKinds are the error classes an error page may be keyed by.
var errorKinds = map[string]bool{
	"NotFound":     true,
	"IOError":      true,
	"AdapterError": true,
	"ConfigError":  true,
	"Error":        true,
}

// Validate checks the rules the schema cannot express. It returns a
// *ValidationResult listing every problem, or nil.
func (c *Config) Validate() error {
	result := &ValidationResult{}

	if c.Version == "" {
		result.AddError("version", "required")
	} else if c.Version != "1" && c.Version != CurrentVersion {
		result.AddError("version", fmt.Sprintf("unsupported version %q, expected %q", c.Version, CurrentVersion))
	}

	if tls := c.Server.TLS; tls != nil {
		hasFiles := tls.CertFile != "" || tls.KeyFile != ""
		switch {
		case tls.SelfSigned && hasFiles:
			result.AddError("server.tls", "selfSigned cannot be combined with certFile/keyFile")
		case !tls.SelfSigned && (tls.CertFile == "" || tls.KeyFile == ""):
			result.AddError("server.tls", "certFile and keyFile are both required unless selfSigned is set")
		}
	}

	prefixes := map[string]int{}
	for i := range c.Contexts {
		c.Contexts[i].validate(fmt.Sprintf("contexts[%d]", i), i, prefixes, result)
	}
	return result.err()
}

func (cc *ContextConfig) validate(path string, index int, prefixes map[string]int, result *ValidationResult) {
	prefix, err := server.NormalizePrefix(cc.Prefix)
	if err != nil {
		result.AddError(path+".prefix", err.Error())
	} else if prev, dup := prefixes[prefix]; dup {
		result.AddError(path+".prefix", fmt.Sprintf("duplicate prefix %q (also contexts[%d])", cc.Prefix, prev))
	} else {
		prefixes[prefix] = index
	}

	if _, ok := backend.Registry[cc.Kind]; !ok {
		result.AddError(path+".kind", fmt.Sprintf("unknown kind %q, expected one of %s", cc.Kind, strings.Join(backend.Kinds(), ", ")))
		return
	}
	switch cc.Kind {
	case backend.KindDir, backend.KindZip, backend.KindRedirect, backend.KindRemote, backend.KindAdapter:
		if cc.Arg == "" {
			result.AddError(path+".arg", "required for kind "+cc.Kind)
		}
	}
	if cc.Kind != backend.KindTable && len(cc.Table) > 0 {
		result.AddError(path+".table", "only valid for kind table")
	}
	if cc.Kind != backend.KindAdapter && len(cc.Parameters) > 0 {
		result.AddError(path+".parameters", "only valid for kind adapter")
	}
	if cc.Kind != backend.KindRemote && (cc.InsecureSkipVerify || cc.MaxBodySize != 0 || cc.Timeout != 0) {
		result.AddError(path, "insecureSkipVerify, maxBodySize and timeout are only valid for kind remote")
	}
	if cc.WebXML && !hasWebXML(cc.Kind) {
		result.AddError(path+".webXML", "only valid for kinds dir, zip and bundle")
	}
	if _, err := backend.ParseBuffering(cc.Buffering); err != nil {
		result.AddError(path+".buffering", err.Error())
	}

	for _, pattern := range cc.Hidden {
		if !doublestar.ValidatePattern(pattern) {
			result.AddError(path+".hidden", fmt.Sprintf("invalid pattern %q", pattern))
		}
	}
	for pattern, charset := range cc.PageEncodings {
		if _, err := resource.Charset(charset); err != nil {
			result.AddError(fmt.Sprintf("%s.pageEncodings[%q]", path, pattern), err.Error())
		}
	}
	if cc.Colors != nil {
		checkColor(path+".colors.foreground", cc.Colors.Foreground, result)
		checkColor(path+".colors.background", cc.Colors.Background, result)
	}
	for key := range cc.ErrorPages {
		if code, err := strconv.Atoi(key); err == nil {
			if code < 400 || code > 599 {
				result.AddError(fmt.Sprintf("%s.errorPages[%q]", path, key), "status must be 4xx or 5xx")
			}
			continue
		}
		if !errorKinds[key] {
			result.AddError(fmt.Sprintf("%s.errorPages[%q]", path, key), "key must be a status code or an error kind")
		}
	}
}

func checkColor(path, color string, result *ValidationResult) {
	if color != "" && !resource.ValidColor(color) {
		result.AddError(path, fmt.Sprintf("invalid color %q, expected a color name or #hex", color))
	}
}

func hasWebXML(kind string) bool {
	return kind == backend.KindDir || kind == backend.KindZip || kind == backend.KindBundle
}
