// Package harness runs conformance scenarios against the build engine.
//
// A scenario names a script, the seed and settings to build it with, and
// assertions about the emitted trace. Every scenario is built by the real
// engine, recorded into a fresh in-memory store, and checked against that
// recording.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: concrete_translation
//	description: "A depth-capped rule translates, emits and recurses"
//	script: |
//	  @maxdepth 3
//	  #R { {x1} box[tag] R }
//	  R
//	seed: 42
//	set: { maxobjects: "100" }
//	variables: { step: 1 }
//	assertions:
//	  - type: event_count
//	    count: 3
//	  - type: label_count
//	    label: box
//	    count: 3
//	  - type: event
//	    seq: 2
//	    label: box
//	    position: [2, 0, 0]
//	golden: true
//
// Instead of an inline script a scenario may name a file, resolved
// relative to the scenario file.
//
// # Assertion Types
//
//   - event_count: exactly N objects were emitted
//   - label_count: exactly N objects carry a label
//   - label_order: labels first appear in the given order
//   - event: the object at seq has the given label, param, position or colour
//   - stat: a build statistic has the given value
//   - trace_hash: the canonical trace hashes to the given value
//   - match_count: exactly N objects satisfy every "field op value" filter
//     in where, e.g. ["label = box", "x >= 2"]
//
// A scenario with expect_error passes only when compiling or building
// fails with an error containing that text.
//
// # Deterministic Testing
//
// Scenarios without a seed use testutil.DefaultSeed unless the script sets
// one, and every run uses the scenario name as its run id, so the same
// scenario always produces a byte-identical trace for golden comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/concrete.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
