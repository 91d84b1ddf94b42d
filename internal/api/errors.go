package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is a non-2xx answer from the backend.
type Error struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("backend %d: %s", e.StatusCode, e.Message)
}

// errorBody covers the shapes the backend uses for failures.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
}

func parseError(status int, body []byte) error {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		switch {
		case eb.Message != "":
			return &Error{StatusCode: status, Message: eb.Message}
		case eb.Detail != "":
			return &Error{StatusCode: status, Message: eb.Detail}
		case eb.Error != "":
			return &Error{StatusCode: status, Message: eb.Error}
		}
		return &Error{StatusCode: status, Message: http.StatusText(status)}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" || strings.HasPrefix(msg, "<") {
		msg = http.StatusText(status)
	}
	return &Error{StatusCode: status, Message: msg}
}

// Message returns the backend's message for err, or fallback when err carries none.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" && apiErr.Message != http.StatusText(apiErr.StatusCode) {
		return apiErr.Message
	}
	return fallback
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
