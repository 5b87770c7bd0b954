package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/blockflow/graph"
	"github.com/BaSui01/blockflow/interp"
	"github.com/BaSui01/blockflow/internal/ctxkeys"
	"github.com/BaSui01/blockflow/session"
	"github.com/BaSui01/blockflow/store"
	"github.com/BaSui01/blockflow/trace"
	"github.com/BaSui01/blockflow/types"
)

// =============================================================================
// 🧪 Common 函数测试
// =============================================================================

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusAccepted, []int{1, 2, 3})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.JSONEq(t, `[1,2,3]`, w.Body.String())
}

func TestWriteSuccess_CarriesRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(ctxkeys.WithRequestID(r.Context(), "req-42"))

	WriteSuccess(w, r, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "req-42", resp.RequestID)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    types.ErrorCode
		wantDetails bool
	}{
		{
			name:       "typed error",
			err:        types.NewError(types.ErrInvalidRequest, "bad"),
			wantStatus: http.StatusBadRequest,
			wantCode:   types.ErrInvalidRequest,
		},
		{
			name:       "explicit status wins",
			err:        types.NewError(types.ErrInvalidRequest, "bad").WithHTTPStatus(http.StatusTeapot),
			wantStatus: http.StatusTeapot,
			wantCode:   types.ErrInvalidRequest,
		},
		{
			name:        "invalid graph shows details",
			err:         fmt.Errorf("%w: node x missing", graph.ErrInvalidGraph),
			wantStatus:  http.StatusBadRequest,
			wantCode:    types.ErrInvalidGraph,
			wantDetails: true,
		},
		{
			name:       "internal error hides cause",
			err:        errors.New("db password leaked"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   types.ErrInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/x", nil)
			WriteError(w, r, tt.err, zap.NewNop())

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			assert.Nil(t, resp.Data)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tt.wantCode), resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
			if tt.wantDetails {
				assert.Contains(t, resp.Error.Details, "node x missing")
			}
			assert.NotContains(t, w.Body.String(), "leaked")
		})
	}
}

func TestToAPIError(t *testing.T) {
	tests := []struct {
		err       error
		code      types.ErrorCode
		retryable bool
	}{
		{fmt.Errorf("load: %w", store.ErrNotFound), types.ErrNotFound, false},
		{store.ErrVersionActive, types.ErrVersionActive, false},
		{fmt.Errorf("%w: cycle", graph.ErrInvalidGraph), types.ErrInvalidGraph, false},
		{fmt.Errorf("build: %w", trace.ErrTraceTooLarge), types.ErrTraceTooLarge, false},
		{session.ErrSessionNotFound, types.ErrSessionNotFound, false},
		{session.ErrSessionBusy, types.ErrSessionBusy, true},
		{session.ErrSessionClosed, types.ErrSessionClosed, false},
		{session.ErrSessionLimit, types.ErrSessionLimit, true},
		{fmt.Errorf("start: %w", interp.ErrClosed), types.ErrInterpreterNotReady, false},
		{&interp.ExecError{Type: "ValueError"}, types.ErrInterpreterFailure, false},
		{context.DeadlineExceeded, types.ErrTimeout, true},
		{context.Canceled, types.ErrServiceUnavailable, false},
		{errors.New("boom"), types.ErrInternalError, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			got := ToAPIError(tt.err)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.retryable, got.Retryable)
		})
	}
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"name":"test","value":123}`},
		{name: "malformed", body: `{"name":"test",}`, wantErr: true},
		{name: "unknown field", body: `{"name":"test","unknown":1}`, wantErr: true},
		{name: "empty", body: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(tt.body))
			if tt.body == "" {
				r.Body = http.NoBody
			}

			var got payload
			err := DecodeJSONBody(w, r, &got)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, payload{Name: "test", Value: 123}, got)
		})
	}
}

func TestDecodeJSONBody_TooLarge(t *testing.T) {
	big := `{"name":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))

	var got struct{ Name string }
	err := DecodeJSONBody(w, r, &got)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestReadGraphBody(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nodes":"nope"}`))
	_, err := ReadGraphBody(w, r)
	assert.ErrorIs(t, err, graph.ErrInvalidGraph)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	_, err = ReadGraphBody(w, r)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	_, err := rw.Write([]byte("hello"))
	require.NoError(t, err)
	rw.WriteHeader(http.StatusTeapot)

	assert.Equal(t, http.StatusOK, rw.StatusCode, "first write fixes the status")
	assert.Equal(t, int64(5), rw.BytesWritten)
	assert.Same(t, rec, rw.Unwrap())
}
