package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/sprig/internal/engine"
	"github.com/roach88/sprig/internal/ir"
)

// Run is the stored record of one build.
type Run struct {
	// Seq orders runs by insertion. Assigned by the store.
	Seq int64 `json:"seq"`

	ID   string `json:"id"`
	Name string `json:"name,omitempty"`

	ScriptHash string `json:"script_hash"`
	Script     string `json:"script"`
	Seed       uint32 `json:"seed"`

	ObjectCount int64        `json:"object_count"`
	TraceHash   string       `json:"trace_hash"`
	Draws       uint64       `json:"draws"`
	Stats       engine.Stats `json:"stats"`

	// Complete is set once the whole trace has been written.
	Complete bool `json:"complete"`

	EngineVersion string `json:"engine_version"`
	TraceVersion  string `json:"trace_version"`
}

// NewRun describes a build of src that is about to be recorded. runID
// and seed come from the engine that will run the build.
func NewRun(runID, name, src string, seed uint32) Run {
	return Run{
		ID:            runID,
		Name:          name,
		ScriptHash:    ir.ScriptHash(src),
		Script:        src,
		Seed:          seed,
		EngineVersion: ir.EngineVersion,
		TraceVersion:  ir.TraceVersion,
	}
}

func marshalStats(st engine.Stats) (string, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("marshal stats: %w", err)
	}
	return string(data), nil
}

func unmarshalStats(s string) (engine.Stats, error) {
	var st engine.Stats
	if err := json.Unmarshal([]byte(s), &st); err != nil {
		return st, fmt.Errorf("unmarshal stats: %w", err)
	}
	return st, nil
}

// marshalMatrix stores a transform as a JSON array of 16 row-major
// elements. encoding/json writes the shortest representation that
// round-trips, so stored matrices read back bit-for-bit.
func marshalMatrix(e ir.Event) (string, error) {
	data, err := json.Marshal(e.Matrix.Elements())
	if err != nil {
		return "", fmt.Errorf("marshal matrix of event %d: %w", e.Seq, err)
	}
	return string(data), nil
}
