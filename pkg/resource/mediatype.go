package resource

import (
	"path"
	"strings"
)

// OctetStream is the media type used when nothing more specific is known.
const OctetStream = "application/octet-stream"

// defaultMediaTypes maps lower-case file suffixes to media types.
var defaultMediaTypes = map[string]string{
	"html":  "text/html",
	"htm":   "text/html",
	"xhtml": "application/xhtml+xml",
	"xhtm":  "application/xhtml+xml",
	"xht":   "application/xhtml+xml",
	"css":   "text/css",
	"js":    "text/javascript",
	"mjs":   "text/javascript",
	"json":  "application/json",
	"txt":   "text/plain",
	"text":  "text/plain",
	"md":    "text/markdown",
	"csv":   "text/csv",
	"pdf":   "application/pdf",
	"xml":   "application/xml",
	"xsl":   "application/xslt+xml",
	"xslt":  "application/xslt+xml",
	"ps":    "application/postscript",
	"eps":   "application/postscript",
	"jsp":   "application/jsp",
	"svg":   "image/svg+xml",
	"ogg":   "application/ogg",
	"zip":   "application/zip",
	"jar":   "application/java-archive",
	"doc":   "application/msword",
	"ppt":   "application/vnd.ms-powerpoint",
	"xls":   "application/vnd.ms-excel",
	"odt":   "application/vnd.oasis.opendocument.text",
	"odg":   "application/vnd.oasis.opendocument.graphics",
	"odp":   "application/vnd.oasis.opendocument.presentation",
	"ods":   "application/vnd.oasis.opendocument.spreadsheet",
	"gif":   "image/gif",
	"jpg":   "image/jpeg",
	"jpeg":  "image/jpeg",
	"png":   "image/png",
	"webp":  "image/webp",
	"ico":   "image/vnd.microsoft.icon",
	"tif":   "image/tiff",
	"tiff":  "image/tiff",
	"wasm":  "application/wasm",
	"woff":  "font/woff",
	"woff2": "font/woff2",
	"mp3":   "audio/mpeg",
	"mp4":   "video/mp4",
	"webm":  "video/webm",
}

// DefaultMediaType returns the built-in media type for a suffix, without
// the leading dot.
func DefaultMediaType(suffix string) (string, bool) {
	mt, ok := defaultMediaTypes[strings.ToLower(suffix)]
	return mt, ok
}

// suffixOf returns the text after the last dot of the final path element.
func suffixOf(name string) string {
	ext := path.Ext(name)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}

// isTextual reports whether a media type carries character data.
func isTextual(mediaType string) bool {
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case strings.HasSuffix(mediaType, "+xml"), strings.HasSuffix(mediaType, "/xml"):
		return true
	case mediaType == "application/json", mediaType == "text/javascript", mediaType == "application/jsp":
		return true
	}
	return false
}
