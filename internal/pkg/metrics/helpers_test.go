package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyTransportError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, "timeout"},
		{fmt.Errorf("post: %w", context.Canceled), "canceled"},
		{timeoutError{}, "timeout"},
		{errors.New("dial tcp 127.0.0.1:8000: connect: connection refused"), "connection"},
		{errors.New("lookup api.invalid: no such host"), "dns"},
		{errors.New("unexpected EOF"), "eof"},
		{errors.New("tls: bad certificate"), "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyTransportError(tt.err), tt.err.Error())
	}
}

func TestRecordBackendRequest(t *testing.T) {
	before := testutil.ToFloat64(BackendRequests.WithLabelValues("test.endpoint", "401"))
	RecordBackendRequest("test.endpoint", 401, 12*time.Millisecond, nil)
	assert.Equal(t, before+1, testutil.ToFloat64(BackendRequests.WithLabelValues("test.endpoint", "401")))

	before = testutil.ToFloat64(BackendRequests.WithLabelValues("test.endpoint", "timeout"))
	RecordBackendRequest("test.endpoint", 0, time.Second, context.DeadlineExceeded)
	assert.Equal(t, before+1, testutil.ToFloat64(BackendRequests.WithLabelValues("test.endpoint", "timeout")))
}

func TestRecordValidation(t *testing.T) {
	valid := testutil.ToFloat64(TokenValidations.WithLabelValues("valid"))
	invalid := testutil.ToFloat64(TokenValidations.WithLabelValues("invalid"))

	RecordValidation(true)
	RecordValidation(false)
	RecordValidation(false)

	assert.Equal(t, valid+1, testutil.ToFloat64(TokenValidations.WithLabelValues("valid")))
	assert.Equal(t, invalid+2, testutil.ToFloat64(TokenValidations.WithLabelValues("invalid")))
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("/tasks", "303"))
	RecordHTTPRequest("/tasks", 303, 3*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequests.WithLabelValues("/tasks", "303")))
}
