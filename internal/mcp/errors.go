package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/voicetally/internal/domain/voice"
)

// errForbidden is returned when a tool targets a guild the caller is not scoped to.
var errForbidden = errors.New("forbidden")

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, voice.ErrNoStats):
		return &APIError{Code: "NO_DATA", Message: "no data", RecoveryHint: "The member has never been seen in voice"}
	case errors.Is(err, voice.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: "invalid input", RecoveryHint: "guild_id and user_id are required and days must not be negative"}
	case errors.Is(err, errForbidden):
		return &APIError{Code: "FORBIDDEN", Message: "api key is not scoped to this guild"}
	default:
		return nil
	}
}

// toolError converts err into the error returned from a tool handler.
func toolError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
