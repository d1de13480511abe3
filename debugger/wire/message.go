// Copyright © 2026 The ELPS authors

// Package wire implements the framing and message codec of the V8 debug
// protocol. Messages are JSON documents preceded by an HTTP-style header
// block carrying a Content-Length in bytes:
//
//	Content-Length: 62\r\n
//	\r\n
//	{"seq":1,"type":"request","command":"version","arguments":{}}
//
// The debuggee opens every connection with a header-only handshake
// (Type: connect, Content-Length: 0) which the decoder surfaces as a
// Frame with an empty body.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/go-dap"
	"github.com/tidwall/gjson"
)

// Message type discriminators.
const (
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeEvent    = "event"
)

var (
	// ErrUnsupportedKind is returned by Parse for documents whose type is
	// neither response nor event.
	ErrUnsupportedKind = errors.New("wire: unsupported message kind")
	// ErrInvalidMessage is returned by Parse for bodies that are not valid
	// JSON or lack a required field.
	ErrInvalidMessage = errors.New("wire: invalid message")
)

// Request is an outbound command.
type Request struct {
	Seq       int         `json:"seq"`
	Type      string      `json:"type"`
	Command   string      `json:"command"`
	Arguments interface{} `json:"arguments,omitempty"`
}

// Message is a parsed inbound document, either *Response or *Event.
type Message interface {
	messageType() string
}

// Response answers the request whose seq equals RequestSeq.
type Response struct {
	Seq        int             `json:"seq"`
	RequestSeq int             `json:"request_seq"`
	Command    string          `json:"command"`
	Success    bool            `json:"success"`
	Running    bool            `json:"running"`
	Message    string          `json:"message,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
	Refs       json.RawMessage `json:"refs,omitempty"`
}

func (*Response) messageType() string { return TypeResponse }

// Event is an unsolicited notification from the debuggee.
type Event struct {
	Seq   int             `json:"seq"`
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body,omitempty"`
}

func (*Event) messageType() string { return TypeEvent }

// Parse decodes a frame body into a *Response or *Event. The type field
// is inspected before the document is unmarshaled so unsupported kinds
// are rejected without allocating a typed value.
func Parse(body []byte) (Message, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: malformed json", ErrInvalidMessage)
	}
	switch kind := gjson.GetBytes(body, "type").String(); kind {
	case TypeResponse:
		if !gjson.GetBytes(body, "request_seq").Exists() {
			return nil, fmt.Errorf("%w: response without request_seq", ErrInvalidMessage)
		}
		var resp Response
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		return &resp, nil
	case TypeEvent:
		if gjson.GetBytes(body, "event").String() == "" {
			return nil, fmt.Errorf("%w: event without name", ErrInvalidMessage)
		}
		var evt Event
		if err := json.Unmarshal(body, &evt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		return &evt, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
}

// Encode writes req to w as a single framed message. The Content-Length
// header counts encoded bytes, so multi-byte text is framed correctly.
func Encode(w io.Writer, req *Request) error {
	if req.Type == "" {
		req.Type = TypeRequest
	}
	content, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", req.Command, err)
	}
	return dap.WriteBaseMessage(w, content)
}

// Marshal returns the complete framed bytes for req.
func Marshal(req *Request) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, req); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
