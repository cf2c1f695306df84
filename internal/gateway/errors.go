package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies why a backend call failed.
type Kind int

const (
	// AuthRejected is a 401 or 403. The session is gone by the time the
	// caller sees it.
	AuthRejected Kind = iota + 1
	// ValidationFailed is any other 4xx, local to the calling form.
	ValidationFailed
	// TransportFailed covers network errors, timeouts, 5xx responses and
	// bodies that could not be decoded.
	TransportFailed
)

func (k Kind) String() string {
	switch k {
	case AuthRejected:
		return "auth rejected"
	case ValidationFailed:
		return "validation failed"
	case TransportFailed:
		return "transport failed"
	default:
		return "unknown"
	}
}

var (
	ErrAuthRejected     = errors.New("auth rejected")
	ErrValidationFailed = errors.New("validation failed")
	ErrTransportFailed  = errors.New("transport failed")

	errEmptyResponse = errors.New("empty response body")
)

// Error is returned by every failed Gateway call.
type Error struct {
	Kind    Kind
	Method  string
	Path    string
	Status  int
	Message string
	// Fields holds per-field messages, keyed by the backend's field name.
	Fields map[string][]string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s", e.Method, e.Path, e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if msg := e.Summary(); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrAuthRejected:
		return e.Kind == AuthRejected
	case ErrValidationFailed:
		return e.Kind == ValidationFailed
	case ErrTransportFailed:
		return e.Kind == TransportFailed
	}
	return false
}

// Summary is a single line suitable for a notification.
func (e *Error) Summary() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Fields) == 0 {
		return ""
	}

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+strings.Join(e.Fields[name], " "))
	}
	return strings.Join(parts, "; ")
}

// Message extracts a human readable message from err, falling back to def.
func Message(err error, def string) string {
	var gerr *Error
	if errors.As(err, &gerr) {
		if msg := gerr.Summary(); msg != "" {
			return msg
		}
	}
	return def
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return AuthRejected
	case status >= 400 && status < 500:
		return ValidationFailed
	default:
		return TransportFailed
	}
}

// decodeErrorBody understands the backend's error shapes:
// {"error": "msg"}, {"detail": "msg"}, {"error": {"field": ["msg"]}} and
// bare {"field": ["msg"]}.
func decodeErrorBody(body []byte, e *Error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return
	}

	for _, key := range []string{"error", "detail"} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		delete(raw, key)

		var s string
		if json.Unmarshal(v, &s) == nil {
			if e.Message == "" {
				e.Message = s
			}
			continue
		}

		var nested map[string]json.RawMessage
		if json.Unmarshal(v, &nested) == nil {
			addFields(nested, e)
		}
	}

	addFields(raw, e)
}

func addFields(raw map[string]json.RawMessage, e *Error) {
	for name, v := range raw {
		var msgs []string
		if json.Unmarshal(v, &msgs) != nil {
			var s string
			if json.Unmarshal(v, &s) != nil {
				continue
			}
			msgs = []string{s}
		}
		if e.Fields == nil {
			e.Fields = map[string][]string{}
		}
		e.Fields[name] = append(e.Fields[name], msgs...)
	}
}
