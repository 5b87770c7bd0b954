// Package trace expands a plan into a dynamic trace: a flat queue of atomic
// steps in the order a live run executes them.
//
// Loops are unrolled by evaluating their count once when reached; each
// iteration contributes an index assignment, the loop's own body text and the
// body children. Conditions are evaluated once and only the taken branch is
// traced. Every item text ends with exactly one newline.
//
// Evaluation goes through an Evaluator. With WithReplay(true) and an
// evaluator that can also execute, pending items are executed first, so
// `n = 3` is bound before `range(n)` is evaluated. The item count is capped
// (DefaultMaxItems) and exceeding it fails with ErrTraceTooLarge.
package trace
