// Copyright (c) BlockFlow Authors.
// Licensed under the MIT License.

/*
Package graph 定义可视化程序图的数据模型。

# 概述

图由节点（Node）与边（Edge）组成。节点的 Data 是封闭的标签联合：
VariableData、FunctionData、LoopData、ConditionData、BodyData，
每种 Kind 对应唯一的数据形状。边的 Role 区分多出口节点的分支
（body / next / true / false，空值表示顺序后继）。

# 主要能力

  - 编辑器格式的 JSON 编解码（type + data.label + sourceHandle）
  - YAML 导入导出与 LoadFile 文件加载
  - 单出口块的语句文本渲染：BlockText / FormatLiteral / Indent / Line
  - 存储前的结构校验：Validate
*/
package graph
