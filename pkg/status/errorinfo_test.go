package status

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorInfo(t *testing.T) {
	err := &ErrorInfo{
		StatusCode: http.StatusServiceUnavailable,
		Message:    "not initialised",
	}
	assert.EqualError(t, err, "service unavailable (503): not initialised")
}
