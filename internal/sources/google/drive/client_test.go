package drive

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/api/googleapi"
)

func newObservedClient(t *testing.T, opts ...ClientOption) (*Client, *observer.ObservedLogs) {
	t.Helper()

	core, logs := observer.New(zap.DebugLevel)
	opts = append([]ClientOption{
		WithLogger(zap.New(core)),
		WithBackoff(time.Millisecond, 2*time.Millisecond),
	}, opts...)

	return NewClient(StaticTokenSource("test-token"), opts...), logs
}

func categories(logs *observer.ObservedLogs) []string {
	var out []string

	for _, entry := range logs.All() {
		if c, ok := entry.ContextMap()["category"]; ok {
			out = append(out, fmt.Sprint(c))
		}
	}

	return out
}

func TestClient_Fetch_SendsBearerTokenAndDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/drives", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("pageSize"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"drives":[{"id":"d1","name":"Team"}],"nextPageToken":"abc"}`)
	}))
	defer server.Close()

	client, logs := newObservedClient(t)

	obj, err := client.Fetch(context.Background(), server.URL+"/drives", url.Values{"pageSize": {"100"}})
	require.NoError(t, err)

	assert.JSONEq(t, `[{"id":"d1","name":"Team"}]`, string(obj["drives"]))
	assert.JSONEq(t, `"abc"`, string(obj["nextPageToken"]))

	requests := logs.FilterMessage("Drive API request").All()
	require.Len(t, requests, 1)
	assert.Equal(t, server.URL+"/drives?pageSize=100", requests[0].ContextMap()["url"])
	assert.Empty(t, categories(logs))
}

func TestClient_Fetch_HTTPStatusNotRetried(t *testing.T) {
	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"The user does not have sufficient permissions"}}`)
	}))
	defer server.Close()

	client, logs := newObservedClient(t)

	_, err := client.Fetch(context.Background(), server.URL+"/files", nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, FailureHTTPStatus, reqErr.Kind)
	assert.Equal(t, 1, reqErr.Attempts)

	var apiErr *googleapi.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Code)

	assert.False(t, IsTransient(err))
	assert.Equal(t, []string{"http status error"}, categories(logs))
	assert.Equal(t, 0, logs.FilterMessage("Retrying Drive API request").Len())
}

func TestClient_Fetch_ReadTimeoutRetriedThenSurfaced(t *testing.T) {
	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client, logs := newObservedClient(t, WithTimeout(50*time.Millisecond))

	_, err := client.Fetch(context.Background(), server.URL+"/files", nil)
	require.Error(t, err)
	assert.Equal(t, int32(defaultMaxAttempts), hits.Load())

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, FailureReadTimeout, reqErr.Kind)
	assert.Equal(t, defaultMaxAttempts, reqErr.Attempts)
	assert.True(t, IsTransient(err))

	assert.Equal(t, []string{"read timeout", "read timeout", "read timeout"}, categories(logs))
	assert.Equal(t, defaultMaxAttempts-1, logs.FilterMessage("Retrying Drive API request").Len())
}

func TestClient_Fetch_RecoversAfterTimeout(t *testing.T) {
	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}

			return
		}

		fmt.Fprint(w, `{"files":[]}`)
	}))
	defer server.Close()

	client, _ := newObservedClient(t, WithTimeout(50*time.Millisecond))

	obj, err := client.Fetch(context.Background(), server.URL+"/files", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(obj["files"]))
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_Fetch_ConnectTimeout(t *testing.T) {
	var dials atomic.Int32

	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			dials.Add(1)
			<-ctx.Done()

			return nil, ctx.Err()
		},
	}

	client, logs := newObservedClient(t, WithTimeout(50*time.Millisecond), WithTransport(transport))

	_, err := client.Fetch(context.Background(), "http://drive.test/files", nil)
	require.Error(t, err)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, FailureConnectTimeout, reqErr.Kind)
	assert.Equal(t, defaultMaxAttempts, reqErr.Attempts)
	assert.Equal(t, int32(defaultMaxAttempts), dials.Load())
	assert.Equal(t, []string{"connection timeout", "connection timeout", "connection timeout"}, categories(logs))
	assert.Equal(t, 3, logs.FilterMessage("Connection timeout accessing Google Drive API").Len())
}

func TestClient_Fetch_MaxAttempts(t *testing.T) {
	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-r.Context().Done()
	}))
	defer server.Close()

	client, _ := newObservedClient(t, WithTimeout(30*time.Millisecond), WithMaxAttempts(1))

	_, err := client.Fetch(context.Background(), server.URL+"/files", nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_Fetch_ConnectionRefusedIsOther(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	client, logs := newObservedClient(t)

	_, err := client.Fetch(context.Background(), addr+"/files", nil)
	require.Error(t, err)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, FailureOther, reqErr.Kind)
	assert.Equal(t, 1, reqErr.Attempts)
	assert.Equal(t, []string{"other"}, categories(logs))
}

func TestClient_Fetch_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	defer server.Close()

	client, _ := newObservedClient(t)

	_, err := client.Fetch(context.Background(), server.URL+"/files", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyNetworkError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected FailureKind
	}{
		{name: "dial timeout", err: &net.OpError{Op: "dial", Net: "tcp", Err: timeoutError{}}, expected: FailureConnectTimeout},
		{
			name:     "wrapped dial timeout",
			err:      &url.Error{Op: "Get", URL: "https://x", Err: &net.OpError{Op: "dial", Net: "tcp", Err: timeoutError{}}},
			expected: FailureConnectTimeout,
		},
		{name: "read timeout", err: &net.OpError{Op: "read", Net: "tcp", Err: timeoutError{}}, expected: FailureReadTimeout},
		{name: "bare timeout", err: timeoutError{}, expected: FailureReadTimeout},
		{name: "dial refused", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, expected: FailureOther},
		{name: "plain error", err: errors.New("boom"), expected: FailureOther},
		{name: "canceled", err: context.Canceled, expected: FailureOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifyNetworkError(tt.err))
		})
	}
}

func TestFailureKind(t *testing.T) {
	assert.Equal(t, "connection timeout", FailureConnectTimeout.String())
	assert.Equal(t, "read timeout", FailureReadTimeout.String())
	assert.Equal(t, "http status error", FailureHTTPStatus.String())
	assert.Equal(t, "other", FailureOther.String())

	assert.True(t, FailureConnectTimeout.Transient())
	assert.True(t, FailureReadTimeout.Transient())
	assert.False(t, FailureHTTPStatus.Transient())
	assert.False(t, FailureOther.Transient())
}
