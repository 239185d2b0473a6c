package resource

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// UnknownLength marks a Descriptor whose body length is not known until the
// stream has been consumed.
const UnknownLength int64 = -1

// Descriptor is a resolved response payload.
//
// Exactly one of the streaming and redirect forms is used: a redirect
// Descriptor has a nil Body and carries its target in Location.
type Descriptor struct {
	// Body is the payload stream. It has a single consumer and must be
	// closed exactly once via Close.
	Body io.ReadCloser

	// Length is the exact number of bytes Body yields, or UnknownLength.
	Length int64

	// MediaType is the value sent as Content-Type.
	MediaType string

	// Encoding is the content coding of Body, empty for identity.
	// It is "gzip" when a pre-compressed variant was substituted.
	Encoding string

	// Location identifies where the payload came from, for diagnostics.
	// For redirects it is the redirect target.
	Location string

	// Redirect reports that the transport must redirect to Location.
	Redirect bool

	// Welcome reports that resolution fell through to a welcome file.
	Welcome bool

	// Status overrides the response status when non-zero.
	Status int

	// Header holds extra response headers.
	Header http.Header

	closeOnce sync.Once
	closeErr  error
}

// NewDescriptor returns a streaming Descriptor.
func NewDescriptor(body io.ReadCloser, length int64, mediaType string) *Descriptor {
	return &Descriptor{
		Body:      body,
		Length:    length,
		MediaType: mediaType,
	}
}

// NewBytesDescriptor returns a Descriptor backed by an in-memory payload.
func NewBytesDescriptor(data []byte, mediaType string) *Descriptor {
	return NewDescriptor(io.NopCloser(bytes.NewReader(data)), int64(len(data)), mediaType)
}

// NewRedirect returns a redirect Descriptor pointing at location.
func NewRedirect(location string) *Descriptor {
	return &Descriptor{
		Length:   0,
		Location: location,
		Redirect: true,
	}
}

// Encoded reports whether the body carries a content coding.
func (d *Descriptor) Encoded() bool {
	return d.Encoding != "" && d.Encoding != "identity"
}

// StatusCode returns the response status, defaulting to 200.
func (d *Descriptor) StatusCode() int {
	if d.Status == 0 {
		return http.StatusOK
	}
	return d.Status
}

// Close releases the body. It is safe to call on a nil Descriptor and more
// than once; only the first call reaches the underlying stream.
func (d *Descriptor) Close() error {
	if d == nil {
		return nil
	}
	d.closeOnce.Do(func() {
		if d.Body != nil {
			d.closeErr = d.Body.Close()
		}
	})
	return d.closeErr
}

// ErrBodyTooLarge is returned by BufferLimit when the body exceeds the limit.
var ErrBodyTooLarge = errors.New("resource body exceeds size limit")

// Buffer reads the whole body into memory and records its exact length.
// The original stream is closed.
func (d *Descriptor) Buffer() error {
	return d.BufferLimit(0)
}

// BufferLimit is like Buffer but fails with ErrBodyTooLarge once more than
// limit bytes have been read. A limit of zero or less means no limit.
func (d *Descriptor) BufferLimit(limit int64) error {
	if d.Body == nil {
		return nil
	}
	r := io.Reader(d.Body)
	if limit > 0 {
		r = io.LimitReader(d.Body, limit+1)
	}
	data, err := io.ReadAll(r)
	closeErr := d.Body.Close()
	if err != nil {
		return &IOError{Op: "buffer", Location: d.Location, Cause: err}
	}
	if closeErr != nil {
		return &IOError{Op: "close", Location: d.Location, Cause: closeErr}
	}
	if limit > 0 && int64(len(data)) > limit {
		return fmt.Errorf("%w: %s", ErrBodyTooLarge, d.Location)
	}
	d.Body = io.NopCloser(bytes.NewReader(data))
	d.Length = int64(len(data))
	return nil
}

// String returns a one-line summary for logs.
func (d *Descriptor) String() string {
	if d == nil {
		return "<not found>"
	}
	if d.Redirect {
		return "redirect " + d.Location
	}
	return fmt.Sprintf("%s (%s, %d bytes, encoding=%q)", d.Location, d.MediaType, d.Length, d.Encoding)
}
