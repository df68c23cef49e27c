package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ehr/hospital/pkg/validation"
)

// Kind classifies a failed call so callers can react without matching on
// message text.
type Kind int

const (
	// KindValidation is a user-correctable rejection: field messages, or a
	// 400/422 carrying a message.
	KindValidation Kind = iota + 1
	// KindSessionExpired means the API rejected the held token (401).
	KindSessionExpired
	// KindNetwork is a transport failure: dial, timeout or cancellation.
	KindNetwork
	// KindServer is any other failure status: 5xx, a 4xx without a usable
	// body, or a refusal such as 403 or 404.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindSessionExpired:
		return "session_expired"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Sentinels matched by (*Error).Is, one per Kind.
var (
	ErrValidation     = errors.New("validation error")
	ErrSessionExpired = errors.New("session expired")
	ErrNetwork        = errors.New("network error")
	ErrServer         = errors.New("server error")
)

const sessionExpiredMessage = "Session expired. Please login again."

// Error is returned by every Client call that fails.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	// Fields holds field-level messages from a validation body.
	Fields validation.Errors
	Err    error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrSessionExpired:
		return e.Kind == KindSessionExpired
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrServer:
		return e.Kind == KindServer
	}
	return false
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// NewValidationError builds a KindValidation error from field messages, for
// client-side checks that fail before a request is sent.
func NewValidationError(fields validation.Errors) *Error {
	return &Error{Kind: KindValidation, Message: fields.Error(), Fields: fields}
}

// errorFromResponse builds the error for a non-2xx, non-401 response. The
// message is taken from "detail", then "error", then the field messages,
// then a generic status line. Only field messages, or a 400/422 with a
// message, make it a validation error.
func errorFromResponse(status int, body []byte) *Error {
	e := &Error{Kind: KindServer, Status: status}

	body = bytes.TrimSpace(body)
	var obj map[string]json.RawMessage
	var list []json.RawMessage
	switch {
	case len(body) == 0:
	case body[0] == '{' && json.Unmarshal(body, &obj) == nil:
		if msg := messageOf(obj["detail"]); msg != "" {
			e.Message = msg
		} else if msg := messageOf(obj["error"]); msg != "" {
			e.Message = msg
		} else if fields := fieldMessages(obj); len(fields) > 0 {
			e.Fields = fields
			e.Message = fields.Error()
		}
	case body[0] == '[' && json.Unmarshal(body, &list) == nil:
		msgs := make([]string, 0, len(list))
		for _, raw := range list {
			if m := messageOf(raw); m != "" {
				msgs = append(msgs, m)
			}
		}
		e.Message = strings.Join(msgs, ", ")
	}

	if e.Message == "" {
		e.Message = fmt.Sprintf("HTTP error: status %d", status)
		return e
	}
	if status < http.StatusInternalServerError &&
		(len(e.Fields) > 0 || status == http.StatusBadRequest || status == http.StatusUnprocessableEntity) {
		e.Kind = KindValidation
	}
	return e
}

// messageOf renders a JSON value as message text: strings as-is, lists
// joined, anything else as compact JSON. Null and empty values give "".
func messageOf(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			if m := messageOf(item); m != "" {
				parts = append(parts, m)
			}
		}
		return strings.Join(parts, ", ")
	}
	if bytes.Equal(raw, []byte("false")) || bytes.Equal(raw, []byte(`""`)) {
		return ""
	}
	return string(raw)
}

func fieldMessages(obj map[string]json.RawMessage) validation.Errors {
	out := validation.Errors{}
	for field, raw := range obj {
		var msgs []string
		var list []json.RawMessage
		if json.Unmarshal(raw, &list) == nil {
			for _, item := range list {
				if m := messageOf(item); m != "" {
					msgs = append(msgs, m)
				}
			}
		} else if m := messageOf(raw); m != "" {
			msgs = append(msgs, m)
		}
		if len(msgs) > 0 {
			out[field] = msgs
		}
	}
	return out
}
