// Package queryir is the filter representation for reading recorded
// events back out of the trace store.
//
// A filter is a small predicate tree over the columns of one emitted
// object:
//
//	label, param              text; compared with Equals
//	seq                       emission order
//	x, y, z                   translation of the object's matrix
//	hue, saturation,
//	brightness, alpha         the object's colour
//
// Numeric fields are compared with Compare. Predicates combine with And
// only; there is no OR.
//
// The IR is backend-neutral. querysql compiles it to parameterised SQL
// for the SQLite store; tests can evaluate it directly against events
// with Match.
//
// Filters come from the command line as "field op value" expressions:
//
//	label=box
//	x>=2
//	seq<10
//
// Predicate is a sealed interface: only this package's types implement
// it, so backends can switch over it exhaustively.
package queryir
