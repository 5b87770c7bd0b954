// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 上下文、轮询断言与 API 响应解码
//
// 使用方法:
//
//	ctx := testutil.TestContext(t)
//	snap := testutil.DecodeData[session.Snapshot](t, w.Body.Bytes())
// =============================================================================
package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

const pollInterval = 10 * time.Millisecond

// TestContext 返回 30 秒超时的上下文，测试结束时取消
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// AssertEventuallyTrue 轮询 condition 直到为真或超时
func AssertEventuallyTrue(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !condition() {
		if time.Now().After(deadline) {
			t.Errorf("condition not met within %v", timeout)
			return
		}
		time.Sleep(pollInterval)
	}
}

// WaitForChannel 等待通道接收或超时
func WaitForChannel[T any](ch <-chan T, timeout time.Duration) (T, bool) {
	select {
	case v := <-ch:
		return v, true
	case <-time.After(timeout):
		var zero T
		return zero, false
	}
}

// MustJSON 将值转换为 JSON 字符串，失败时 panic
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// DecodeData 解析统一响应信封并返回 data 字段；success 为 false 时测试失败
func DecodeData[T any](t *testing.T, body []byte) T {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	var v T
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode envelope: %v\n%s", err, body)
		return v
	}
	if !env.Success {
		if env.Error != nil {
			t.Fatalf("request failed: %s: %s", env.Error.Code, env.Error.Message)
		}
		t.Fatalf("request failed: %s", body)
		return v
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data: %v\n%s", err, env.Data)
	}
	return v
}
