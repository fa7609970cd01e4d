package client

import (
	"errors"
	"fmt"
)

// PostgREST / Postgres error codes the studio layer branches on.
const (
	CodeNoRows          = "PGRST116"
	CodeUniqueViolation = "23505"
)

// APIError is a non-2xx answer from any Supabase endpoint.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details string
	Hint    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("status %d", e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("supabase error %s: %s", e.Code, msg)
	}
	return "supabase error: " + msg
}

// IsNoRows reports whether err is PostgREST's "zero rows for single()" answer.
func IsNoRows(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == CodeNoRows || (apiErr.Status == 406 && apiErr.Code == "")
}

// IsUniqueViolation reports whether err is a duplicate-key insert.
func IsUniqueViolation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeUniqueViolation
}
