package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueue_Hash(t *testing.T) {
	q := Queue{
		{NodeID: "a", Label: "setup", Text: "n = 3\n"},
		{NodeID: "b", Label: "print", Text: "print(n)\n"},
	}
	relabelled := Queue{
		{NodeID: "a", Label: "other", Text: "n = 3\n"},
		{NodeID: "b", Label: "print", Text: "print(n)\n"},
	}
	edited := Queue{
		{NodeID: "a", Label: "setup", Text: "n = 4\n"},
		{NodeID: "b", Label: "print", Text: "print(n)\n"},
	}
	swapped := Queue{q[1], q[0]}

	assert.Len(t, q.Hash(), 64)
	assert.Equal(t, q.Hash(), Queue(append([]Item(nil), q...)).Hash())
	assert.Equal(t, q.Hash(), relabelled.Hash())
	assert.NotEqual(t, q.Hash(), edited.Hash())
	assert.NotEqual(t, q.Hash(), swapped.Hash())
	assert.NotEqual(t, q.Hash(), Queue(nil).Hash())
	// field boundaries are unambiguous
	assert.NotEqual(t,
		Queue{{NodeID: "a", Text: "b:c"}}.Hash(),
		Queue{{NodeID: "a:b", Text: "c"}}.Hash())
}

func TestQueue_TextsAndProgram(t *testing.T) {
	q := Queue{{NodeID: "a", Text: "x = 1\n"}, {NodeID: "b", Text: "print(x)\n"}}
	assert.Equal(t, []string{"x = 1", "print(x)"}, q.Texts())
	assert.Equal(t, "x = 1\nprint(x)\n", q.Program())
	assert.Empty(t, Queue(nil).Texts())
}
