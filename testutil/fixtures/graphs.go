// =============================================================================
// 📦 测试数据工厂 - 示例图
// =============================================================================
// 提供预定义的积木图，用于计划、代码生成、追踪与会话测试
// =============================================================================
package fixtures

import "github.com/BaSui01/blockflow/graph"

func node(id, label string, x float64, data graph.Data) graph.Node {
	return graph.Node{ID: id, Label: label, Position: graph.Position{X: x}, Data: data}
}

func edge(src, dst string, role graph.Role) graph.Edge {
	return graph.Edge{ID: src + "->" + dst, Source: src, Target: dst, Role: role}
}

// CountingLoop 返回 n = 3 之后按 n 循环打印 i 的图
//
//	n = 3
//	for i in range(n):
//	    print(i)
func CountingLoop() graph.Graph {
	return graph.Graph{
		Nodes: []graph.Node{
			node("setup", "setup", 0, graph.VariableData{Variables: []graph.Variable{
				{Name: "n", Type: graph.TypeInt, Value: "3"},
			}}),
			node("loop", "loop", 200, graph.LoopData{IndexVar: "i", CountVar: "n"}),
			node("print", "print", 400, graph.BodyData{Text: "print(i)"}),
		},
		Edges: []graph.Edge{
			edge("setup", "loop", graph.RoleNone),
			edge("loop", "print", graph.RoleBody),
		},
	}
}

// Branching 返回 x = 5 后按 x > 3 分支、随后打印 done 的图
func Branching() graph.Graph {
	return graph.Graph{
		Nodes: []graph.Node{
			node("setup", "setup", 0, graph.VariableData{Variables: []graph.Variable{
				{Name: "x", Type: graph.TypeInt, Value: 5},
			}}),
			node("check", "check", 200, graph.ConditionData{Condition: "x > 3"}),
			node("big", "big", 400, graph.BodyData{Text: "print('big')"}),
			node("small", "small", 500, graph.BodyData{Text: "print('small')"}),
			node("done", "done", 600, graph.BodyData{Text: "print('done')"}),
		},
		Edges: []graph.Edge{
			edge("setup", "check", graph.RoleNone),
			edge("check", "big", graph.RoleTrue),
			edge("check", "small", graph.RoleFalse),
			edge("check", "done", graph.RoleNext),
		},
	}
}

// Nested 返回外层循环两次、循环体内按奇偶分支的图
func Nested() graph.Graph {
	return graph.Graph{
		Nodes: []graph.Node{
			node("outer", "outer", 0, graph.LoopData{IndexVar: "k", Count: "2", Body: "total = k * 10"}),
			node("parity", "parity", 200, graph.ConditionData{Condition: "k % 2 == 0"}),
			node("even", "even", 400, graph.BodyData{Text: "print('even', total)"}),
			node("odd", "odd", 500, graph.BodyData{Text: "print('odd', total)"}),
			node("end", "end", 600, graph.BodyData{Text: "print('end')"}),
		},
		Edges: []graph.Edge{
			edge("outer", "parity", graph.RoleBody),
			edge("parity", "even", graph.RoleTrue),
			edge("parity", "odd", graph.RoleFalse),
			edge("outer", "end", graph.RoleNext),
		},
	}
}
