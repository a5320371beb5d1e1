// Package webui provides the browser front end for the image generator.
// This file contains WebSocket message types and constants.
package webui

import (
	"time"

	"text2image/imagegen"
)

// Message type constants for WebSocket communication.
const (
	// MessageTypeProgress carries one tick of the pre-generation estimate.
	MessageTypeProgress = "progress"

	// MessageTypeComplete is sent once a run has been saved.
	MessageTypeComplete = "complete"

	// MessageTypeError indicates a failed generation.
	MessageTypeError = "error"

	// MessageTypeInitial contains the state snapshot sent on connection.
	MessageTypeInitial = "initial"
)

// WSMessage is the envelope for all WebSocket messages.
//
// This is a pure data structure atom with no behavior beyond JSON marshaling.
type WSMessage struct {
	// Type identifies the message kind (use MessageType* constants)
	Type string `json:"type"`

	// Timestamp is when the message was created
	Timestamp time.Time `json:"timestamp"`

	// Data contains the type-specific payload
	Data any `json:"data,omitempty"`
}

// NewWSMessage creates a new WebSocket message with the current timestamp.
func NewWSMessage(msgType string, data any) WSMessage {
	return WSMessage{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// ProgressData is the payload of a progress message.
type ProgressData struct {
	Step           int     `json:"step"`
	Total          int     `json:"total"`
	Percent        int     `json:"percent"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	ETASeconds     float64 `json:"eta_seconds"`
	// ETA is the remaining time in display form, e.g. "1m 5s".
	ETA string `json:"eta"`
}

// NewProgressData converts an estimator update to its wire form.
func NewProgressData(u imagegen.ProgressUpdate) ProgressData {
	return ProgressData{
		Step:           u.Step,
		Total:          u.Total,
		Percent:        u.Percent,
		ElapsedSeconds: u.Elapsed.Seconds(),
		ETASeconds:     u.ETA.Seconds(),
		ETA:            FormatDuration(u.ETA),
	}
}

// CompleteData describes a finished run.
type CompleteData struct {
	RunID          string  `json:"run_id"`
	Run            string  `json:"run"`
	Prompt         string  `json:"prompt"`
	NumImages      int     `json:"num_images"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// ErrorData contains error information sent to clients.
type ErrorData struct {
	// Code is one of the Code* constants
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`
}

// Error codes shared by WebSocket and HTTP error payloads.
const (
	CodePolicy        = "policy_rejection"
	CodeConfiguration = "configuration"
	CodeSynthesis     = "synthesis"
	CodePersistence   = "persistence"
	CodeInternal      = "internal"
	CodeUnavailable   = "unavailable"
)

// InitialData is sent to a client when it connects.
type InitialData struct {
	Engine string         `json:"engine"`
	Recent []CompleteData `json:"recent"`
}

// NewProgressMessage creates a progress message.
func NewProgressMessage(u imagegen.ProgressUpdate) WSMessage {
	return NewWSMessage(MessageTypeProgress, NewProgressData(u))
}

// NewCompleteMessage creates a completion message.
func NewCompleteMessage(data CompleteData) WSMessage {
	return NewWSMessage(MessageTypeComplete, data)
}

// NewErrorMessage creates an error message.
func NewErrorMessage(code, message string) WSMessage {
	return NewWSMessage(MessageTypeError, ErrorData{Code: code, Message: message})
}

// NewInitialMessage creates the initial state snapshot message.
func NewInitialMessage(data InitialData) WSMessage {
	return NewWSMessage(MessageTypeInitial, data)
}
