// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package taskapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the task API. Callers use
// errors.As to inspect it:
//
//	var apiErr *taskapi.APIError
//	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound { ... }
type APIError struct {
	StatusCode int

	// Method and Path identify the failed request.
	Method string
	Path   string

	// Detail is the server's "detail" message when the body is a JSON
	// error document, otherwise the raw body.
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("taskapi: %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("taskapi: %s %s: %d: %s", e.Method, e.Path, e.StatusCode, e.Detail)
}

// newAPIError builds an APIError from an error response body. The API
// reports errors as {"detail": "..."}; validation errors carry a list
// in "detail", which is kept as compact JSON.
func newAPIError(statusCode int, method, path, body string) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Method: method, Path: path, Detail: body}
	var document struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal([]byte(body), &document); err != nil || len(document.Detail) == 0 {
		return apiErr
	}
	var text string
	if err := json.Unmarshal(document.Detail, &text); err == nil {
		apiErr.Detail = text
		return apiErr
	}
	apiErr.Detail = string(document.Detail)
	return apiErr
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized reports whether err is an APIError with status 401 or
// 403.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized) || hasStatus(err, http.StatusForbidden)
}

func hasStatus(err error, statusCode int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == statusCode
}
