// Package cli implements the webmap command line: serve, resolve, init and
// version.
package cli
