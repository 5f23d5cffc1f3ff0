// Package engine walks a compiled ir.Program and emits terminal objects.
//
// ARCHITECTURE:
//
// Depth-first traversal:
// Build starts at the root rule with the identity transform and the
// default colour, and walks each rule body node by node:
//   - An Operator pushes a copy of the current frame, then for each
//     repetition folds its delta into the frame and walks the rest of
//     the sequence. The frame is popped afterwards, so an operator never
//     leaks into its siblings.
//   - A Reference is resolved by name from the current scope outwards.
//     A rule is built in a new frame; a name that resolves to nothing is a
//     terminal object and is emitted.
//
// Termination:
// Recursion is bounded per rule group by depth counters (maxdepth), the
// total object count by the object quota (maxobjects), and emission by
// the size window minsize^3 < |det3| < maxsize^3. None of these are
// errors; they are counted in Stats.
//
// Control flow:
// Every step returns Continue or Stop. Stop comes from the callback, from
// the object quota or from a runtime error, and unwinds every enclosing
// frame back to Build.
//
// Determinism:
// Each Build draws from a generator seeded with the engine seed, so two
// builds of one Engine emit identical event sequences. Builds of one
// Engine must not overlap; Build rejects reentrant calls.
package engine
