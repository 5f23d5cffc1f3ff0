package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/roach88/sprig/internal/ir"
)

// Divergence is the first point where a replayed trace differs from the
// recorded one. Recorded or Replayed is nil when that trace ended first.
type Divergence struct {
	Seq      int64     `json:"seq"`
	Recorded *ir.Event `json:"recorded,omitempty"`
	Replayed *ir.Event `json:"replayed,omitempty"`
}

func (d *Divergence) String() string {
	switch {
	case d.Recorded == nil:
		return fmt.Sprintf("object %d: replay emitted %q past the end of the recorded trace", d.Seq, d.Replayed.Label)
	case d.Replayed == nil:
		return fmt.Sprintf("object %d: replay ended before recorded %q", d.Seq, d.Recorded.Label)
	default:
		return fmt.Sprintf("object %d: recorded %q, replayed %q", d.Seq, d.Recorded.Label, d.Replayed.Label)
	}
}

var errDiverged = errors.New("diverged")

// Compare checks a replayed event sequence against the stored trace of a
// run, event by event, using the canonical encoding. It returns nil when
// the traces are identical.
func (s *Store) Compare(ctx context.Context, runID string, replayed []ir.Event) (*Divergence, error) {
	if _, err := s.ReadRun(ctx, runID); err != nil {
		return nil, err
	}

	var (
		i   int
		div *Divergence
	)
	err := s.ScanEvents(ctx, runID, "", func(rec ir.Event) error {
		if i >= len(replayed) {
			r := rec
			div = &Divergence{Seq: rec.Seq, Recorded: &r}
			return errDiverged
		}
		same, err := sameEvent(rec, replayed[i])
		if err != nil {
			return err
		}
		if !same {
			r, p := rec, replayed[i]
			div = &Divergence{Seq: rec.Seq, Recorded: &r, Replayed: &p}
			return errDiverged
		}
		i++
		return nil
	})
	if errors.Is(err, errDiverged) {
		return div, nil
	}
	if err != nil {
		return nil, fmt.Errorf("compare run %s: %w", runID, err)
	}
	if i < len(replayed) {
		p := replayed[i]
		return &Divergence{Seq: p.Seq, Replayed: &p}, nil
	}
	return nil, nil
}

func sameEvent(a, b ir.Event) (bool, error) {
	ea, err := ir.EncodeEvent(a)
	if err != nil {
		return false, err
	}
	eb, err := ir.EncodeEvent(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ea, eb), nil
}
