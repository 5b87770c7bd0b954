package codegen

import (
	"math/rand"
	"testing"

	"github.com/BaSui01/blockflow/plan"
	"github.com/BaSui01/blockflow/testutil/fixtures"
)

// 运行方式:
//
//	go test -bench=. -benchmem ./codegen/...

// wideGraph 生成由随机选择决定形状的图，种子固定以便结果可比
func wideGraph(blocks int) *shaper {
	rng := rand.New(rand.NewSource(42))
	choices := make([]uint8, blocks*8)
	for i := range choices {
		choices[i] = uint8(rng.Intn(256))
	}
	s := &shaper{choices: choices, maxDepth: 5}
	for s.pos < len(s.choices) {
		s.chain(0)
	}
	return s
}

func BenchmarkGenerateGraph_Fixture(b *testing.B) {
	g := fixtures.Nested()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = GenerateGraph(g.Nodes, g.Edges)
	}
}

func BenchmarkGenerateGraph_Wide(b *testing.B) {
	s := wideGraph(500)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = GenerateGraph(s.nodes, s.edges)
	}
}

// BenchmarkGenerate_PrebuiltPlan 只测量渲染，不含 plan 构建
func BenchmarkGenerate_PrebuiltPlan(b *testing.B) {
	s := wideGraph(500)
	nodes := plan.Build(s.nodes, s.edges)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Generate(nodes)
	}
}
