// Package ir holds the compiled form of a script and the events a build
// emits.
//
// A Program is an arena of rules addressed by RuleID. Rules never point at
// each other: a Reference names its target and is resolved against the
// scope chain at traversal time, so the tree has no cycles to manage.
//
// ir imports only the value packages (affine, color, criteria). Compiler,
// engine, store and harness all build on it.
//
// Key constraints:
//   - Programs are immutable once compiled; recompile to change structure
//   - Events carry a logical sequence number, never wall-clock time
//   - The canonical event encoding is the only input to trace hashes
package ir
