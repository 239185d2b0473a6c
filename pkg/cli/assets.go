package cli

import (
	"embed"
	"io/fs"

	"github.com/getmockd/webmap/pkg/backend"
	"github.com/getmockd/webmap/pkg/servlet"
)

//go:embed assets
var assets embed.FS

// Bundle returns the resources compiled into the binary, for contexts of
// kind bundle.
func Bundle() fs.FS {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(err)
	}
	return sub
}

// Env returns the backend environment of the command line: the bundled
// resources and the builtin adapters.
func Env() backend.Env {
	return backend.Env{Bundle: Bundle(), Adapters: servlet.Builtin()}
}
