// Package config loads webmap configuration files.
//
// A configuration lists the server settings and the contexts to mount. Each
// context binds a URI prefix to one backend kind:
//
//	version: "1.0"
//	server:
//	  addr: ":8080"
//	contexts:
//	  - prefix: /docs
//	    kind: dir
//	    arg: ./public
//	  - prefix: /api
//	    kind: remote
//	    arg: https://api.internal.example
//	    buffering: always
//
// Files may be YAML or JSON, chosen by extension. ${VAR} and ${VAR:-default}
// references are expanded from the environment before parsing, and the
// result is checked against an embedded JSON Schema before it is decoded.
package config
