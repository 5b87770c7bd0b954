// Copyright (c) BlockFlow Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 BlockFlow 测试的共享工具和辅助函数。

# 概述

testutil 包为各包的单元测试提供统一的辅助能力，避免重复实现
相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 异步断言: AssertEventuallyTrue / AssertEventuallyEqual / WaitFor /
    WaitForChannel，用于会话事件等异步场景
  - 数据工具: AssertJSONEqual / MustJSON / MustParseJSON

# 子包

  - testutil/mocks: MockInterpreter，按表达式预置求值结果、
    注入执行错误与延迟，并记录调用
  - testutil/fixtures: 示例图，包括计数循环、条件分支、嵌套结构

# 使用示例

	ctx := testutil.TestContext(t)
	in := mocks.NewMockInterpreter().WithValue("n", 3)
	g := fixtures.CountingLoop()
*/
package testutil
