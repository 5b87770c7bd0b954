package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/blockflow/graph"
	"github.com/BaSui01/blockflow/interp"
	"github.com/BaSui01/blockflow/internal/ctxkeys"
	"github.com/BaSui01/blockflow/session"
	"github.com/BaSui01/blockflow/store"
	"github.com/BaSui01/blockflow/trace"
	"github.com/BaSui01/blockflow/types"
)

// MaxBodyBytes 请求体上限
const MaxBodyBytes = 4 << 20

// =============================================================================
// 📦 通用响应结构
// =============================================================================

// Response 统一 API 响应结构
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo 错误信息结构
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// =============================================================================
// 🎯 响应辅助函数
// =============================================================================

// WriteJSON 写入 JSON 响应
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	// 头已写出，编码失败无法再报告
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess 写入 200 成功响应
func WriteSuccess(w http.ResponseWriter, r *http.Request, data any) {
	WriteStatus(w, r, http.StatusOK, data)
}

// WriteStatus 以指定状态码写入成功响应
func WriteStatus(w http.ResponseWriter, r *http.Request, status int, data any) {
	WriteJSON(w, status, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: requestID(r),
	})
}

// WriteError 写入错误响应。非 *types.Error 的错误先经 ToAPIError 归类。
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	apiErr := ToAPIError(err)
	status := apiErr.HTTPStatus
	if status == 0 {
		status = types.HTTPStatusFor(apiErr.Code)
	}

	if logger != nil {
		fields := []zap.Field{
			zap.String("code", string(apiErr.Code)),
			zap.Int("status", status),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r)),
		}
		if sid, ok := ctxkeys.SessionID(r.Context()); ok {
			fields = append(fields, zap.String("session_id", sid))
		}
		if apiErr.Cause != nil {
			fields = append(fields, zap.Error(apiErr.Cause))
		}
		if status >= 500 {
			logger.Error("API error", fields...)
		} else {
			logger.Debug("API error", fields...)
		}
	}

	info := &ErrorInfo{
		Code:      string(apiErr.Code),
		Message:   apiErr.Message,
		Retryable: apiErr.Retryable,
	}
	if apiErr.Cause != nil && status < 500 {
		info.Details = apiErr.Cause.Error()
	}
	WriteJSON(w, status, Response{
		Success:   false,
		Error:     info,
		Timestamp: time.Now(),
		RequestID: requestID(r),
	})
}

// WriteErrorMessage 写入简单错误消息
func WriteErrorMessage(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string, logger *zap.Logger) {
	WriteError(w, r, types.NewError(code, message), logger)
}

func requestID(r *http.Request) string {
	id, _ := ctxkeys.RequestID(r.Context())
	return id
}

// =============================================================================
// 🔄 领域错误到 API 错误的映射
// =============================================================================

// ToAPIError 将领域哨兵错误映射为带错误码的 *types.Error
func ToAPIError(err error) *types.Error {
	var apiErr *types.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var execErr *interp.ExecError
	switch {
	case errors.Is(err, graph.ErrInvalidGraph):
		return types.NewError(types.ErrInvalidGraph, "graph is invalid").WithCause(err)
	case errors.Is(err, store.ErrVersionActive):
		return types.NewError(types.ErrVersionActive, "the active version cannot be deleted")
	case errors.Is(err, store.ErrNotFound):
		return types.NewError(types.ErrNotFound, "resource not found")
	case errors.Is(err, trace.ErrTraceTooLarge):
		return types.NewError(types.ErrTraceTooLarge, "trace exceeds the item limit").WithCause(err)
	case errors.Is(err, session.ErrSessionNotFound):
		return types.NewError(types.ErrSessionNotFound, "session not found")
	case errors.Is(err, session.ErrSessionBusy):
		return types.NewError(types.ErrSessionBusy, "session is running").WithRetryable(true)
	case errors.Is(err, session.ErrSessionClosed):
		return types.NewError(types.ErrSessionClosed, "session is closed")
	case errors.Is(err, session.ErrSessionLimit):
		return types.NewError(types.ErrSessionLimit, "too many live sessions").WithRetryable(true)
	case errors.Is(err, interp.ErrClosed):
		return types.NewError(types.ErrInterpreterNotReady, "interpreter is closed").WithCause(err)
	case errors.As(err, &execErr):
		return types.NewError(types.ErrInterpreterFailure, "interpreter error").WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return types.NewError(types.ErrTimeout, "request timed out").WithCause(err).WithRetryable(true)
	case errors.Is(err, context.Canceled):
		return types.NewError(types.ErrServiceUnavailable, "request canceled").WithCause(err)
	default:
		return types.NewError(types.ErrInternalError, "internal error").WithCause(err)
	}
}

// =============================================================================
// 🛡️ 请求解析辅助函数
// =============================================================================

// DecodeJSONBody 严格解码 JSON 请求体（拒绝未知字段）
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return types.NewError(types.ErrInvalidRequest, "request body is empty")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return types.NewError(types.ErrInvalidRequest, "invalid JSON body").WithCause(err)
	}
	return nil
}

// ReadGraphBody 读取并校验图文档请求体
func ReadGraphBody(w http.ResponseWriter, r *http.Request) (graph.Graph, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		return graph.Graph{}, types.NewError(types.ErrInvalidRequest, "failed to read body").WithCause(err)
	}
	if len(data) == 0 {
		return graph.Graph{}, types.NewError(types.ErrInvalidRequest, "request body is empty")
	}
	return graph.Decode(data)
}

// =============================================================================
// 📊 响应包装器（用于捕获状态码）
// =============================================================================

// ResponseWriter 包装 http.ResponseWriter 以捕获状态码与写入字节数
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode   int
	BytesWritten int64
	Written      bool
}

// NewResponseWriter 创建新的 ResponseWriter
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{
		ResponseWriter: w,
		StatusCode:     http.StatusOK,
	}
}

// WriteHeader 重写 WriteHeader 以捕获状态码
func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.Written {
		rw.StatusCode = code
		rw.Written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

// Write 重写 Write 以统计字节数
func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.BytesWritten += int64(n)
	return n, err
}

// Hijack 支持 WebSocket 升级；升级后状态记为 101
func (rw *ResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, brw, err := http.NewResponseController(rw.ResponseWriter).Hijack()
	if err == nil {
		rw.StatusCode = http.StatusSwitchingProtocols
		rw.Written = true
	}
	return conn, brw, err
}

// Unwrap 让 http.ResponseController 访问底层连接
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
