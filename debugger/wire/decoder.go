// Copyright © 2026 The ELPS authors

package wire

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// MaxContentLength bounds the body size accepted by a Decoder.
	MaxContentLength = 16 << 20
	// maxHeaderBytes bounds how much data may precede a header separator
	// before the decoder gives up on the buffered bytes.
	maxHeaderBytes = 8 << 10
)

var headerSep = []byte("\r\n\r\n")

// ErrMalformedFrame reports a header block that could not be used. The
// decoder discards the offending header block and keeps going.
var ErrMalformedFrame = errors.New("wire: malformed frame")

// Frame is one deframed protocol message.
type Frame struct {
	// Header maps lower-cased header names to their values.
	Header map[string]string
	Body   []byte
}

// IsHandshake reports whether the frame is the debuggee's header-only
// connect message.
func (f Frame) IsHandshake() bool {
	return len(f.Body) == 0 && strings.EqualFold(f.Header["type"], "connect")
}

// Decoder reassembles frames from an arbitrarily chunked byte stream.
// A Decoder is not safe for concurrent use; the session feeds it from a
// single reader goroutine.
type Decoder struct {
	buf []byte
}

// NewDecoder returns an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Buffered returns the number of bytes held for a future frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Feed appends p to the internal buffer and returns every frame that is
// now complete. Incomplete trailing bytes stay buffered. Malformed header
// blocks are dropped and reported through the returned error; frames
// decoded before and after the fault are still returned.
func (d *Decoder) Feed(p []byte) ([]Frame, error) {
	d.buf = append(d.buf, p...)
	var (
		frames []Frame
		errs   []error
	)
	for {
		end := bytes.Index(d.buf, headerSep)
		if end < 0 {
			if len(d.buf) > maxHeaderBytes {
				errs = append(errs, fmt.Errorf("%w: no header terminator in %d bytes", ErrMalformedFrame, len(d.buf)))
				d.buf = d.buf[:0]
			}
			break
		}
		header, n, err := parseHeader(d.buf[:end])
		if err != nil {
			errs = append(errs, err)
			d.consume(end + len(headerSep))
			continue
		}
		start := end + len(headerSep)
		if len(d.buf)-start < n {
			break
		}
		body := make([]byte, n)
		copy(body, d.buf[start:start+n])
		frames = append(frames, Frame{Header: header, Body: body})
		d.consume(start + n)
	}
	return frames, errors.Join(errs...)
}

// consume drops the first n buffered bytes, reusing the backing array.
func (d *Decoder) consume(n int) {
	rest := copy(d.buf, d.buf[n:])
	d.buf = d.buf[:rest]
}

func parseHeader(block []byte) (map[string]string, int, error) {
	header := make(map[string]string)
	for _, line := range strings.Split(string(block), "\r\n") {
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, 0, fmt.Errorf("%w: invalid header line %q", ErrMalformedFrame, line)
		}
		header[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}
	raw, ok := header["content-length"]
	if !ok {
		return nil, 0, fmt.Errorf("%w: missing Content-Length", ErrMalformedFrame)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: invalid Content-Length %q", ErrMalformedFrame, raw)
	}
	if n < 0 || n > MaxContentLength {
		return nil, 0, fmt.Errorf("%w: Content-Length %d out of range", ErrMalformedFrame, n)
	}
	return header, n, nil
}
