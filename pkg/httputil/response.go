// Package httputil provides shared HTTP helpers for writing error responses
// and matching Accept headers.
package httputil

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code.
// It sets the Content-Type header to application/json.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes an error response. Clients that prefer JSON receive
// {"error": code, "message": message}; everyone else gets a small HTML
// page.
func WriteError(w http.ResponseWriter, r *http.Request, status int, errCode, message string) {
	w.Header().Del("Content-Encoding")
	w.Header().Del("Content-Length")
	if r != nil && PrefersJSON(r.Header.Get("Accept")) {
		WriteJSON(w, status, map[string]string{
			"error":   errCode,
			"message": message,
		})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if r != nil && r.Method == http.MethodHead {
		return
	}
	text := http.StatusText(status)
	_, _ = fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><title>%d %s</title></head>\n<body><h1>%d %s</h1>\n<p>%s</p>\n</body></html>\n",
		status, html.EscapeString(text), status, html.EscapeString(text), html.EscapeString(message))
}

// WriteNotFound writes a 404 Not Found error response.
func WriteNotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusNotFound, "not_found", "The requested resource was not found on this server.")
}

// WriteMethodNotAllowed writes a 405 response with an Allow header.
func WriteMethodNotAllowed(w http.ResponseWriter, r *http.Request, allow string) {
	w.Header().Set("Allow", allow)
	WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method "+r.Method+" is not allowed here.")
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusInternalServerError, "internal_error", message)
}
