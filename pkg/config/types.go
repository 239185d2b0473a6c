package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// CurrentVersion is the configuration format written by this release.
const CurrentVersion = "1.0"

// Config is the root of a webmap configuration file.
type Config struct {
	Version  string          `json:"version" yaml:"version"`
	Server   ServerConfig    `json:"server,omitempty" yaml:"server,omitempty"`
	Logging  LoggingConfig   `json:"logging,omitempty" yaml:"logging,omitempty"`
	Contexts []ContextConfig `json:"contexts,omitempty" yaml:"contexts,omitempty"`

	// baseDir anchors relative paths; it is the directory of the loaded file.
	baseDir string
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Addr            string     `json:"addr,omitempty" yaml:"addr,omitempty"`
	ReadTimeout     Duration   `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`
	WriteTimeout    Duration   `json:"writeTimeout,omitempty" yaml:"writeTimeout,omitempty"`
	ShutdownTimeout Duration   `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty"`
	TLS             *TLSConfig `json:"tls,omitempty" yaml:"tls,omitempty"`
}

// TLSConfig enables HTTPS. Either CertFile and KeyFile are set or
// SelfSigned is true.
type TLSConfig struct {
	CertFile   string `json:"certFile,omitempty" yaml:"certFile,omitempty"`
	KeyFile    string `json:"keyFile,omitempty" yaml:"keyFile,omitempty"`
	SelfSigned bool   `json:"selfSigned,omitempty" yaml:"selfSigned,omitempty"`
	// HTTP3 also serves HTTP/3 over QUIC on the same address.
	HTTP3 bool `json:"http3,omitempty" yaml:"http3,omitempty"`
}

// LoggingConfig selects the log level, format and optional JSON log file.
type LoggingConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
	// FileLevel filters the log file separately; empty means Level.
	FileLevel string `json:"fileLevel,omitempty" yaml:"fileLevel,omitempty"`
}

// ContextConfig mounts one backend under Prefix. Pointer fields fall back
// to the kind's defaults when unset.
type ContextConfig struct {
	Prefix string `json:"prefix" yaml:"prefix"`
	Kind   string `json:"kind" yaml:"kind"`
	// Arg is the path, URL, bundle prefix or adapter name, depending on Kind.
	Arg string `json:"arg,omitempty" yaml:"arg,omitempty"`

	Welcome       []string          `json:"welcome,omitempty" yaml:"welcome,omitempty"`
	Methods       []string          `json:"methods,omitempty" yaml:"methods,omitempty"`
	AllowsQuery   *bool             `json:"allowsQuery,omitempty" yaml:"allowsQuery,omitempty"`
	DisplayDir    *bool             `json:"displayDir,omitempty" yaml:"displayDir,omitempty"`
	HideWebInf    *bool             `json:"hideWebInf,omitempty" yaml:"hideWebInf,omitempty"`
	Hidden        []string          `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	WebXML        bool              `json:"webXML,omitempty" yaml:"webXML,omitempty"`
	GzipSuffixes  []string          `json:"gzipSuffixes,omitempty" yaml:"gzipSuffixes,omitempty"`
	MediaTypes    map[string]string `json:"mediaTypes,omitempty" yaml:"mediaTypes,omitempty"`
	PageEncodings map[string]string `json:"pageEncodings,omitempty" yaml:"pageEncodings,omitempty"`
	XMLPages      []string          `json:"xmlPages,omitempty" yaml:"xmlPages,omitempty"`
	ErrorPages    map[string]string `json:"errorPages,omitempty" yaml:"errorPages,omitempty"`
	Colors        *Colors           `json:"colors,omitempty" yaml:"colors,omitempty"`

	Parameters map[string]string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Table      map[string]string `json:"table,omitempty" yaml:"table,omitempty"`

	InsecureSkipVerify bool     `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`
	Buffering          string   `json:"buffering,omitempty" yaml:"buffering,omitempty"`
	MaxBodySize        int64    `json:"maxBodySize,omitempty" yaml:"maxBodySize,omitempty"`
	Timeout            Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Colors are the listing page colors, as CSS color values.
type Colors struct {
	Foreground string `json:"foreground,omitempty" yaml:"foreground,omitempty"`
	Background string `json:"background,omitempty" yaml:"background,omitempty"`
}

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	return d.parse(s)
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

// BaseDir returns the directory relative paths are resolved against.
func (c *Config) BaseDir() string {
	if c.baseDir == "" {
		return "."
	}
	return c.baseDir
}

// SetBaseDir changes the directory relative paths are resolved against.
func (c *Config) SetBaseDir(dir string) { c.baseDir = dir }

// DefaultConfig returns a configuration with server defaults and no
// contexts.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(60 * time.Second),
			ShutdownTimeout: Duration(30 * time.Second),
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// applyDefaults fills zero server and logging fields from DefaultConfig.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = def.Server.WriteTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
}
