package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fachebot/talk-digest-bot/internal/digest"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBuilder struct {
	mock.Mock
}

func (m *mockBuilder) Build(ctx context.Context, sinceHours int) (*digest.Result, error) {
	args := m.Called(ctx, sinceHours)
	result, _ := args.Get(0).(*digest.Result)
	return result, args.Error(1)
}

type stubChecker bool

func (s stubChecker) IsConnected() bool { return bool(s) }

func init() {
	gin.SetMode(gin.TestMode)
}

func emptyResult() *digest.Result {
	return &digest.Result{
		MessageCounts: digest.MessageCounts{
			DMs:    []digest.NameCount{{Name: "Alice", Count: 3}},
			Groups: []digest.NameCount{},
			Forums: []digest.ForumCount{},
		},
		Summaries: []digest.Summary{},
		Errors:    []string{},
	}
}

func newTestRouter(builder *mockBuilder, connected bool) *gin.Engine {
	return SetupRouter(NewHandlersGroup(builder, stubChecker(connected)))
}

func doGet(r http.Handler, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetDigest_DefaultSinceHours(t *testing.T) {
	builder := new(mockBuilder)
	builder.On("Build", mock.Anything, 24).Return(emptyResult(), nil).Once()

	w := doGet(newTestRouter(builder, true), "/api/digest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	builder.AssertExpectations(t)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "message_counts")
	assert.Contains(t, body, "summaries")
	assert.Contains(t, body, "errors")
	assert.JSONEq(t, `{"dms":[{"name":"Alice","count":3}],"groups":[],"forums":[]}`, string(body["message_counts"]))
	assert.JSONEq(t, `[]`, string(body["summaries"]))
}

func TestGetDigest_SinceHours(t *testing.T) {
	builder := new(mockBuilder)
	builder.On("Build", mock.Anything, 48).Return(emptyResult(), nil).Once()

	w := doGet(newTestRouter(builder, true), "/api/digest?since_hours=48", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	builder.AssertExpectations(t)
}

func TestGetDigest_InvalidSinceHours(t *testing.T) {
	for _, value := range []string{"0", "-1", "721", "abc"} {
		t.Run(value, func(t *testing.T) {
			builder := new(mockBuilder)
			w := doGet(newTestRouter(builder, true), "/api/digest?since_hours="+value, nil)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
			builder.AssertNotCalled(t, "Build", mock.Anything, mock.Anything)
		})
	}
}

func TestGetDigest_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"未连接", digest.ErrSourceUnavailable, http.StatusServiceUnavailable},
		{"列表失败", fmt.Errorf("%w: %w", digest.ErrListing, errors.New("FLOOD_WAIT_30")), http.StatusBadGateway},
		{"未连接导致列表失败", fmt.Errorf("%w: %w", digest.ErrListing, digest.ErrSourceUnavailable), http.StatusServiceUnavailable},
		{"未知错误", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			builder := new(mockBuilder)
			builder.On("Build", mock.Anything, 24).Return(nil, tt.err).Once()

			w := doGet(newTestRouter(builder, true), "/api/digest", nil)
			assert.Equal(t, tt.status, w.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestHealth(t *testing.T) {
	for _, connected := range []bool{true, false} {
		t.Run(fmt.Sprint(connected), func(t *testing.T) {
			w := doGet(newTestRouter(new(mockBuilder), connected), "/api/health", nil)
			require.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"status":"ok","telegram_connected":%t}`, connected), w.Body.String())
		})
	}
}

func TestTraceHeader(t *testing.T) {
	r := newTestRouter(new(mockBuilder), true)

	w := doGet(r, "/api/health", map[string]string{"X-Trace-ID": "trace-123"})
	assert.Equal(t, "trace-123", w.Header().Get("X-Trace-ID"))

	w = doGet(r, "/api/health", nil)
	assert.Len(t, w.Header().Get("X-Trace-ID"), 36)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(new(mockBuilder), true)

	req := httptest.NewRequest(http.MethodOptions, "/api/digest", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
