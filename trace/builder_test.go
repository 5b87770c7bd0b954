package trace

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/blockflow/interp"
	"github.com/BaSui01/blockflow/interp/dryrun"
	"github.com/BaSui01/blockflow/plan"
	"github.com/BaSui01/blockflow/testutil"
	"github.com/BaSui01/blockflow/testutil/fixtures"
	"github.com/BaSui01/blockflow/testutil/mocks"
)

func loopPlan(countExpr string) []plan.Node {
	return []plan.Node{&plan.Loop{
		ID: "loop", Label: "loop", IndexVar: "i", CountExpr: countExpr,
		Body: []plan.Node{&plan.Plain{ID: "body", Label: "body", Text: "print(i)"}},
		Next: []plan.Node{&plan.Plain{ID: "after", Label: "after", Text: "print('done')"}},
	}}
}

func TestBuild_UnrollsLoop(t *testing.T) {
	ctx := testutil.TestContext(t)
	ev := mocks.NewMockInterpreter().WithValue("3", 3)

	q, err := NewBuilder().Build(ctx, loopPlan("3"), ev)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"i = 0", "print(i)",
		"i = 1", "print(i)",
		"i = 2", "print(i)",
		"print('done')",
	}, q.Texts())
	assert.Equal(t, "loop", q[0].NodeID)
	assert.Equal(t, "body", q[1].NodeID)
	assert.Equal(t, "after", q[6].NodeID)
	assert.Equal(t, []string{"3"}, ev.EvalCalls(), "count evaluated once")
}

func TestBuild_LoopPreBodyPrecedesChildren(t *testing.T) {
	nodes := []plan.Node{&plan.Loop{
		ID: "l", Label: "l", IndexVar: "k", CountExpr: "2", PreBody: "acc = k\n",
		Body: []plan.Node{&plan.Plain{ID: "b", Label: "b", Text: "print(acc)"}},
	}}
	q, err := NewBuilder().Build(context.Background(), nodes, mocks.NewMockInterpreter().WithValue("2", int64(2)))
	require.NoError(t, err)
	assert.Equal(t, []string{"k = 0", "acc = k", "print(acc)", "k = 1", "acc = k", "print(acc)"}, q.Texts())
}

func TestBuild_LoopCountCoercion(t *testing.T) {
	tests := []struct {
		name  string
		value any
		err   error
		want  int
	}{
		{"int", 2, nil, 2},
		{"negative", -4, nil, 0},
		{"fraction truncates", 2.7, nil, 2},
		{"numeric string", "3", nil, 3},
		{"non numeric string", "many", nil, 0},
		{"nan", math.NaN(), nil, 0},
		{"infinite", math.Inf(1), nil, 0},
		{"none", nil, nil, 0},
		{"bool", true, nil, 1},
		{"opaque", interp.Opaque{Repr: "4", Truth: true}, nil, 4},
		{"evaluation error", nil, &interp.ExecError{Type: "NameError"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := mocks.NewMockInterpreter()
			if tt.err != nil {
				ev.WithEvalError("count", tt.err)
			} else {
				ev.WithValue("count", tt.value)
			}
			q, err := NewBuilder().Build(context.Background(), loopPlan("count"), ev)
			require.NoError(t, err)
			// two items per iteration plus the trailing next item
			assert.Len(t, q, 2*tt.want+1)
			assert.Equal(t, "after", q[len(q)-1].NodeID)
		})
	}
}

func conditionPlan() []plan.Node {
	return []plan.Node{&plan.Condition{
		ID: "c", Label: "check", Expr: "flag",
		True:  []plan.Node{&plan.Plain{ID: "yes", Label: "yes", Text: "print('yes')"}},
		False: []plan.Node{&plan.Plain{ID: "no", Label: "no", Text: "print('no')"}},
		Next:  []plan.Node{&plan.Plain{ID: "end", Label: "end", Text: "print('end')"}},
	}}
}

func TestBuild_ConditionTakesOneBranch(t *testing.T) {
	tests := []struct {
		name string
		ev   *mocks.MockInterpreter
		want []string
	}{
		{"true", mocks.NewMockInterpreter().WithValue("flag", true), []string{"print('yes')", "print('end')"}},
		{"false", mocks.NewMockInterpreter().WithValue("flag", false), []string{"print('no')", "print('end')"}},
		{"truthy list", mocks.NewMockInterpreter().WithValue("flag", []any{int64(1)}), []string{"print('yes')", "print('end')"}},
		{"empty string", mocks.NewMockInterpreter().WithValue("flag", ""), []string{"print('no')", "print('end')"}},
		{"error is false", mocks.NewMockInterpreter().WithEvalError("flag", errors.New("boom")), []string{"print('no')", "print('end')"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := NewBuilder().Build(context.Background(), conditionPlan(), tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.Texts())
		})
	}
}

func TestBuild_CountingLoopWithReplay(t *testing.T) {
	ctx := testutil.TestContext(t)
	g := fixtures.CountingLoop()

	q, err := NewBuilder(WithReplay(true), WithLogger(zaptest.NewLogger(t))).
		BuildGraph(ctx, g.Nodes, g.Edges, dryrun.New(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"n = 3", "i = 0", "print(i)", "i = 1", "print(i)", "i = 2", "print(i)"}, q.Texts())
	assert.Equal(t, "setup", q[0].Label)
	assert.Equal(t, "loop", q[1].Label)
	assert.Equal(t, "print", q[2].Label)
}

func TestBuild_WithoutReplayEvaluatesAgainstUntouchedState(t *testing.T) {
	g := fixtures.CountingLoop()
	q, err := NewBuilder().BuildGraph(context.Background(), g.Nodes, g.Edges, dryrun.New(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"n = 3"}, q.Texts(), "n is unbound so the loop runs zero times")
}

func TestBuild_NestedWithReplay(t *testing.T) {
	g := fixtures.Nested()
	q, err := NewBuilder(WithReplay(true)).BuildGraph(context.Background(), g.Nodes, g.Edges, dryrun.New(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"k = 0", "total = k * 10", "print('even', total)",
		"k = 1", "total = k * 10", "print('odd', total)",
		"print('end')",
	}, q.Texts())
}

func TestBuild_BranchingWithReplay(t *testing.T) {
	g := fixtures.Branching()
	q, err := NewBuilder(WithReplay(true)).BuildGraph(context.Background(), g.Nodes, g.Edges, dryrun.New(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"x = 5", "print('big')", "print('done')"}, q.Texts())
}

func TestBuild_ReplayExecutesPendingItemsInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	ev := mocks.NewMockInterpreter().
		WithValue("n", 1).
		WithExecFunc(func(_ context.Context, code string) (interp.Output, error) {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, strings.TrimSpace(code))
			if strings.Contains(code, "broken") {
				return interp.Output{}, &interp.ExecError{Type: "NameError"}
			}
			return interp.Output{}, nil
		})
	nodes := []plan.Node{&plan.Plain{
		ID: "a", Label: "a", Text: "broken()",
		Children: []plan.Node{&plan.Plain{
			ID: "b", Label: "b", Text: "n = 1",
			Children: []plan.Node{&plan.Loop{
				ID: "l", Label: "l", IndexVar: "i", CountExpr: "n",
				Body: []plan.Node{&plan.Condition{ID: "c", Label: "c", Expr: "n"}},
			}},
		}},
	}}

	q, err := NewBuilder(WithReplay(true)).Build(context.Background(), nodes, ev)
	require.NoError(t, err, "replay failures do not abort the build")
	assert.Equal(t, []string{"broken()", "n = 1", "i = 0"}, q.Texts())
	assert.Equal(t, []string{"broken()", "n = 1", "i = 0"}, order, "each item replayed once, in order")
	assert.Equal(t, []string{"n", "n"}, ev.EvalCalls())
}

func TestBuild_CapIsAHardError(t *testing.T) {
	ev := mocks.NewMockInterpreter().WithValue("3", 3)
	_, err := NewBuilder(WithMaxItems(5)).Build(context.Background(), loopPlan("3"), ev)
	require.ErrorIs(t, err, ErrTraceTooLarge)

	q, err := NewBuilder(WithMaxItems(7)).Build(context.Background(), loopPlan("3"), ev)
	require.NoError(t, err, "exactly at the cap is allowed")
	assert.Len(t, q, 7)
}

func TestBuild_DefaultCap(t *testing.T) {
	b := NewBuilder(WithMaxItems(0))
	assert.Equal(t, DefaultMaxItems, b.MaxItems())

	ev := mocks.NewMockInterpreter().WithValue("huge", math.MaxInt32)
	_, err := b.Build(context.Background(), loopPlan("huge"), ev)
	require.ErrorIs(t, err, ErrTraceTooLarge)
}

func TestBuilder_SetMaxItems(t *testing.T) {
	b := NewBuilder(WithMaxItems(5))
	ev := mocks.NewMockInterpreter().WithValue("3", 3)
	_, err := b.Build(context.Background(), loopPlan("3"), ev)
	require.ErrorIs(t, err, ErrTraceTooLarge)

	b.SetMaxItems(7)
	b.SetMaxItems(-1)
	assert.Equal(t, 7, b.MaxItems())
	_, err = b.Build(context.Background(), loopPlan("3"), ev)
	require.NoError(t, err)
}

func TestBuild_ItemsEndWithSingleNewline(t *testing.T) {
	nodes := []plan.Node{
		&plan.Plain{ID: "a", Label: "a", Text: "print(1)\n\n   "},
		&plan.Plain{ID: "b", Label: "b", Text: "x = 1\ny = 2"},
		&plan.Plain{ID: "c", Label: "c", Text: "  "},
	}
	q, err := NewBuilder().Build(context.Background(), nodes, mocks.NewMockInterpreter())
	require.NoError(t, err)
	require.Len(t, q, 3)
	assert.Equal(t, "print(1)\n", q[0].Text)
	assert.Equal(t, "x = 1\ny = 2\n", q[1].Text)
	assert.Equal(t, "pass\n", q[2].Text)
	for _, it := range q {
		assert.True(t, strings.HasSuffix(it.Text, "\n"))
		assert.False(t, strings.HasSuffix(it.Text, "\n\n"))
	}
}

func TestBuild_Cancellation(t *testing.T) {
	_, err := NewBuilder().Build(testutil.CancelledContext(), conditionPlan(), mocks.NewMockInterpreter())
	require.ErrorIs(t, err, context.Canceled)

	ev := mocks.NewMockInterpreter().WithDelay(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = NewBuilder().Build(ctx, conditionPlan(), ev)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

type recorded struct {
	status string
	items  int
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen []recorded
}

func (r *fakeRecorder) RecordTraceBuild(status string, items int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, recorded{status, items})
}

func TestBuild_RecordsOutcome(t *testing.T) {
	rec := &fakeRecorder{}
	ev := mocks.NewMockInterpreter().WithValue("3", 3)

	_, err := NewBuilder(WithRecorder(rec)).Build(context.Background(), loopPlan("3"), ev)
	require.NoError(t, err)
	_, err = NewBuilder(WithRecorder(rec), WithMaxItems(2)).Build(context.Background(), loopPlan("3"), ev)
	require.Error(t, err)

	assert.Equal(t, []recorded{{"ok", 7}, {"too_large", 2}}, rec.seen)
}
