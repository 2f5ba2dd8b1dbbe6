// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - Machine-readable output for all CLI commands.
package cli

import (
	"encoding/json"
	"os"
	"time"
)

// JSONResponse is the standardized response format for all CLI commands.
type JSONResponse struct {
	// Success indicates whether the command completed successfully.
	Success bool `json:"success"`
	// Data contains the command-specific response payload.
	Data interface{} `json:"data"`
	// Error contains the error message if Success is false, null otherwise.
	Error *string `json:"error"`
	// Timestamp is when the response was generated (RFC3339, UTC).
	Timestamp string `json:"timestamp"`
	// Command is the command that was executed.
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates an error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print outputs the JSON response to stdout.
func (r *JSONResponse) Print() error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}
