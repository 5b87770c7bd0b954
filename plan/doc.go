// Package plan turns a flat, possibly cyclic graph into a rooted, nested plan
// shared by the code generator and the trace builder.
package plan
