// Package codegen renders a plan as complete, indentation-correct source text.
//
// Indentation is derived from recursion depth (four spaces per level). The
// output is static: every branch is emitted and no expression is evaluated.
package codegen
