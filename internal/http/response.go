package http

import "encoding/json"

type Status string

const (
	// StatusOK is used for health-check responses.
	StatusOK Status = "OK"

	// StatusSuccess indicates an operation completed successfully.
	StatusSuccess Status = "success"

	// StatusConflict indicates an unresolved conflict kept the local record.
	StatusConflict Status = "conflict"

	// StatusError indicates an operation failed.
	StatusError Status = "error"
)

// Response represents the standard API response format.
type Response struct {
	Status Status          `json:"status,omitempty"`
	Key    string          `json:"key,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func NewOKResponse() Response {
	return Response{Status: StatusOK}
}

func NewSuccessResponse(key string) Response {
	return Response{Status: StatusSuccess, Key: key}
}

func NewValueResponse(key string, value json.RawMessage) Response {
	return Response{Status: StatusSuccess, Key: key, Value: value}
}

func NewConflictResponse(key, err string) Response {
	return Response{Status: StatusConflict, Key: key, Error: err}
}

func NewErrorResponse(err string) Response {
	return Response{Status: StatusError, Error: err}
}
