// Package scheme defines the block scheme graph engine for blockscheme.
// A scheme is a set of arithmetic blocks wired by single-value ports.
// Literal inputs are zero-input blocks feeding a consumer like any
// other producer.
package scheme
