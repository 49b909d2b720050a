package status

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorInfo contains an error returned by an admin status route.
type ErrorInfo struct {
	// StatusCode contains the HTTP status code.
	StatusCode int

	// Message contains the error message returned in the response body, or
	// the status text if the body has no error message.
	Message string
}

// ErrorResponse is the JSON body of a failed status request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (e *ErrorInfo) Error() string {
	return fmt.Sprintf(
		"%s (%d): %s",
		strings.ToLower(http.StatusText(e.StatusCode)),
		e.StatusCode,
		e.Message,
	)
}
