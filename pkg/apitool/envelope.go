package apitool

import (
	"encoding/json"
)

// Status is the outcome of a tool call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ErrorKind classifies failed or degraded calls.
type ErrorKind string

const (
	KindAuth        ErrorKind = "auth"
	KindNetwork     ErrorKind = "network"
	KindHTTP        ErrorKind = "http"
	KindMalformed   ErrorKind = "malformed_response"
	KindValidation  ErrorKind = "validation"
	KindRateLimited ErrorKind = "rate_limited"
	KindNotFound    ErrorKind = "tool_not_found"
)

// Diagnostic codes carried on envelopes.
const (
	CodeAuth        = "AUTH001"
	CodeNetwork     = "NET001"
	CodeValidation  = "VAL001"
	CodeMalformed   = "RESP001"
	CodeRateLimited = "RATE001"
	CodeNotFound    = "TOOL404"
)

// Envelope is the uniform result of every tool call. Failures are values,
// never Go errors, so the model can read and react to them.
type Envelope struct {
	Status     Status    `json:"status"`
	Data       any       `json:"data,omitempty"`
	Display    string    `json:"display,omitempty"`
	Error      string    `json:"error,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Kind       ErrorKind `json:"kind,omitempty"`
	Code       string    `json:"code,omitempty"`
	Hint       string    `json:"hint,omitempty"`
	// Degraded marks a success whose body could not be parsed as expected.
	Degraded bool `json:"degraded,omitempty"`
	Attempts int  `json:"attempts,omitempty"`
}

// OK reports whether the call succeeded, degraded or not.
func (e Envelope) OK() bool { return e.Status == StatusSuccess }

// Text is the most useful single string for a reader: the display text on
// success, the error otherwise.
func (e Envelope) Text() string {
	if e.OK() {
		return e.Display
	}
	if e.Hint != "" {
		return e.Error + " (" + e.Hint + ")"
	}
	return e.Error
}

// JSON renders the envelope for a model's tool message.
func (e Envelope) JSON() string {
	b, err := json.Marshal(e)
	if err != nil {
		b, _ = json.Marshal(Envelope{Status: e.Status, Display: e.Display, Error: e.Error, StatusCode: e.StatusCode})
	}
	return string(b)
}

func success(data any, display string) Envelope {
	return Envelope{Status: StatusSuccess, Data: data, Display: display}
}

func failure(kind ErrorKind, code, msg, hint string) Envelope {
	return Envelope{Status: StatusError, Kind: kind, Code: code, Error: msg, Hint: hint}
}
