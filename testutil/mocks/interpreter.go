// MockInterpreter 的解释器测试模拟实现。
//
// 支持按表达式预置求值结果、执行错误注入、延迟与调用记录。
package mocks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/blockflow/interp"
)

// MockInterpreter 是 interp.Interpreter 的模拟实现
type MockInterpreter struct {
	mu sync.Mutex

	values   map[string]any
	evalErrs map[string]error
	execErrs map[string]error
	execFunc func(ctx context.Context, code string) (interp.Output, error)
	echo     bool
	delay    time.Duration

	evalCalls  []string
	execCalls  []string
	closeCalls int
	closed     bool
}

// NewMockInterpreter 创建新的 MockInterpreter
func NewMockInterpreter() *MockInterpreter {
	return &MockInterpreter{
		values:   map[string]any{},
		evalErrs: map[string]error{},
		execErrs: map[string]error{},
	}
}

// WithValue 预置表达式的求值结果
func (m *MockInterpreter) WithValue(expr string, v any) *MockInterpreter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[expr] = v
	return m
}

// WithEvalError 预置表达式的求值错误
func (m *MockInterpreter) WithEvalError(expr string, err error) *MockInterpreter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evalErrs[expr] = err
	return m
}

// WithExecError 预置语句的执行错误，键为去除首尾空白后的语句
func (m *MockInterpreter) WithExecError(code string, err error) *MockInterpreter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execErrs[strings.TrimSpace(code)] = err
	return m
}

// WithExecFunc 设置自定义执行函数
func (m *MockInterpreter) WithExecFunc(fn func(ctx context.Context, code string) (interp.Output, error)) *MockInterpreter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execFunc = fn
	return m
}

// WithEcho 使 Execute 将语句原样写入 stdout
func (m *MockInterpreter) WithEcho() *MockInterpreter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.echo = true
	return m
}

// WithDelay 为每次调用增加延迟，延迟期间遵循 ctx 取消
func (m *MockInterpreter) WithDelay(d time.Duration) *MockInterpreter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// Evaluate 实现 interp.Interpreter
func (m *MockInterpreter) Evaluate(ctx context.Context, expr string) (any, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evalCalls = append(m.evalCalls, expr)
	if m.closed {
		return nil, interp.ErrClosed
	}
	if err, ok := m.evalErrs[expr]; ok {
		return nil, err
	}
	if v, ok := m.values[expr]; ok {
		return v, nil
	}
	return nil, &interp.ExecError{Type: "NameError", Message: "name '" + expr + "' is not defined"}
}

// Execute 实现 interp.Interpreter
func (m *MockInterpreter) Execute(ctx context.Context, code string) (interp.Output, error) {
	if err := m.wait(ctx); err != nil {
		return interp.Output{}, err
	}
	m.mu.Lock()
	m.execCalls = append(m.execCalls, code)
	closed, fn, echo := m.closed, m.execFunc, m.echo
	err := m.execErrs[strings.TrimSpace(code)]
	m.mu.Unlock()

	if closed {
		return interp.Output{}, interp.ErrClosed
	}
	if fn != nil {
		return fn(ctx, code)
	}
	if err != nil {
		return interp.Output{Stderr: err.Error() + "\n"}, err
	}
	if echo {
		return interp.Output{Stdout: code}, nil
	}
	return interp.Output{}, nil
}

// Close 实现 interp.Interpreter
func (m *MockInterpreter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	m.closed = true
	return nil
}

func (m *MockInterpreter) wait(ctx context.Context) error {
	m.mu.Lock()
	d := m.delay
	m.mu.Unlock()
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EvalCalls 返回求值调用记录
func (m *MockInterpreter) EvalCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.evalCalls...)
}

// ExecCalls 返回执行调用记录
func (m *MockInterpreter) ExecCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.execCalls...)
}

// CloseCalls 返回 Close 调用次数
func (m *MockInterpreter) CloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}

// --- MockFactory ---

// MockFactory 记录每次创建的解释器
type MockFactory struct {
	mu      sync.Mutex
	build   func() *MockInterpreter
	err     error
	created []*MockInterpreter
}

// NewMockFactory 创建工厂，build 为 nil 时使用 NewMockInterpreter
func NewMockFactory(build func() *MockInterpreter) *MockFactory {
	if build == nil {
		build = NewMockInterpreter
	}
	return &MockFactory{build: build}
}

// WithError 使后续创建失败
func (f *MockFactory) WithError(err error) *MockFactory {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
	return f
}

// Create 满足 interp.Factory 签名
func (f *MockFactory) Create(ctx context.Context) (interp.Interpreter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	m := f.build()
	f.created = append(f.created, m)
	return m, nil
}

// Created 返回已创建的解释器
func (f *MockFactory) Created() []*MockInterpreter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*MockInterpreter(nil), f.created...)
}
