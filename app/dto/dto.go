// Package dto contains request and response shapes exchanged over the HTTP API
package dto

// APIResponse is the envelope every endpoint answers with
type APIResponse struct {
	Data    any           `json:"data"`
	Message string        `json:"message"`
	Error   []ErrorDetail `json:"error"`
}

// ErrorDetail represents error details in API responses
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty" validate:"omitempty"`
}

// PageRequest carries 1-based pagination from query strings
type PageRequest struct {
	Page  int `json:"page" query:"page"`
	Limit int `json:"limit" query:"limit"`
}

// PageInfo echoes the effective pagination next to a page of results
type PageInfo struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}
