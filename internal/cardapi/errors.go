package cardapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// UnknownError is the message used when a failure carries no usable text.
const UnknownError = "Unknown Error"

// Error is a failed call to the remote collection. StatusCode is zero when
// no response was received.
type Error struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("request failed with status code %d", e.StatusCode)
	}
	return ""
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HasResponse reports whether the server answered at all.
func (e *Error) HasResponse() bool {
	return e.StatusCode != 0
}

// BodyMessage extracts a human readable message from an error response body.
// It prefers a "message" field of a JSON object, then a JSON string body,
// then plain text. It returns "" when the body carries nothing usable.
func (e *Error) BodyMessage() string {
	if !e.HasResponse() {
		return ""
	}
	body := bytes.TrimSpace(e.Body)
	if len(body) == 0 {
		return ""
	}

	var obj struct {
		Message any `json:"message"`
	}
	if body[0] == '{' {
		if err := json.Unmarshal(body, &obj); err == nil {
			if s, ok := obj.Message.(string); ok && s != "" {
				return s
			}
		}
		return ""
	}

	var s string
	if body[0] == '"' {
		if err := json.Unmarshal(body, &s); err == nil {
			return s
		}
		return ""
	}

	if body[0] == '[' || body[0] == '<' {
		return ""
	}
	return strings.TrimSpace(string(body))
}

// Message converts any failure into the text shown to the user: the server's
// message when present, else the transport error's message, else UnknownError.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if msg := apiErr.BodyMessage(); msg != "" {
			return msg
		}
		if msg := apiErr.Error(); msg != "" {
			return msg
		}
	}
	return UnknownError
}
