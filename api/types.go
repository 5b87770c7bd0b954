package api

import (
	"encoding/json"
	"time"

	"github.com/BaSui01/blockflow/graph"
	"github.com/BaSui01/blockflow/plan"
	"github.com/BaSui01/blockflow/session"
	"github.com/BaSui01/blockflow/store"
	"github.com/BaSui01/blockflow/trace"
)

// =============================================================================
// 工作流类型
// =============================================================================

// WorkflowResponse 工作流当前激活的图及其生成代码。
// @Description 激活版本
type WorkflowResponse struct {
	WorkflowID string      `json:"workflow_id"`
	Graph      graph.Graph `json:"graph"`
	Code       string      `json:"code"`
}

// SaveWorkflowResponse 保存工作流后返回的新版本与生成的代码。
// @Description 工作流保存结果
type SaveWorkflowResponse struct {
	Version store.Version `json:"version"`
	Code    string        `json:"code"`
}

// VersionList 版本列表，最新的在前。
// @Description 工作流版本列表
type VersionList struct {
	Versions []store.Version `json:"versions"`
}

// =============================================================================
// 生成类型
// =============================================================================

// CodegenResponse 静态代码生成结果。
// @Description 生成的 Python 源码
type CodegenResponse struct {
	Code string `json:"code"`
}

// PlanResponse 执行计划。
// @Description 计划树与节点总数
type PlanResponse struct {
	Plan []plan.Node `json:"plan"`
	Size int         `json:"size"`
}

// =============================================================================
// 会话类型
// =============================================================================

// CreateSessionRequest 创建会话请求。Graph 优先；缺省时加载 WorkflowID 的激活版本。
// @Description 会话创建请求
type CreateSessionRequest struct {
	WorkflowID string          `json:"workflow_id,omitempty" example:"counter"`
	Graph      json.RawMessage `json:"graph,omitempty"`
}

// SessionView 会话信息与当前快照。
// @Description 会话状态
type SessionView struct {
	ID         string           `json:"id"`
	WorkflowID string           `json:"workflow_id,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	Snapshot   session.Snapshot `json:"snapshot"`
}

// StepResponse 单步执行结果。
// @Description 单步结果与执行后的快照
type StepResponse struct {
	Step     session.StepResult `json:"step"`
	Snapshot session.Snapshot   `json:"snapshot"`
}

// RunResponse 批量执行结果。RunID 对应持久化的运行记录，未关联工作流的会话为空。
// @Description 批量执行结果
type RunResponse struct {
	RunID    string            `json:"run_id,omitempty"`
	Result   session.RunResult `json:"result"`
	Snapshot session.Snapshot  `json:"snapshot"`
}

// RebuildResponse 图更新后的重建结果；Changed 表示队列变化并已重置。
// @Description 追踪重建结果
type RebuildResponse struct {
	Changed  bool             `json:"changed"`
	Snapshot session.Snapshot `json:"snapshot"`
}

// =============================================================================
// 事件类型
// =============================================================================

// EventType 会话事件类型
type EventType string

const (
	EventStep  EventType = "step"
	EventReset EventType = "reset"
	// EventHello 连接建立后的首帧，携带当前快照
	EventHello EventType = "hello"
)

// SessionEvent WebSocket 推送的会话事件。
// @Description 会话事件帧
type SessionEvent struct {
	Type     EventType         `json:"type"`
	Index    int               `json:"index"`
	Item     *trace.Item       `json:"item,omitempty"`
	Snapshot *session.Snapshot `json:"snapshot,omitempty"`
	Time     time.Time         `json:"time"`
}

// =============================================================================
// 运行记录
// =============================================================================

// RunList 运行记录列表。
// @Description 最新的运行记录在前
type RunList struct {
	Runs []store.Run `json:"runs"`
}
