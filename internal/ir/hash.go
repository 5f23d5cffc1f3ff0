package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

// Domain prefixes for content hashes. The version suffix leaves room for
// changing the encoding later.
const (
	DomainTrace  = "sprig/trace/v1"
	DomainScript = "sprig/script/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ScriptHash identifies a script by content.
func ScriptHash(src string) string {
	return hashWithDomain(DomainScript, []byte(src))
}

// TraceHasher accumulates a trace hash one event at a time, so a build can
// be hashed without keeping its events.
type TraceHasher struct {
	h     hash.Hash
	count int64
}

// NewTraceHasher starts an empty trace.
func NewTraceHasher() *TraceHasher {
	h := sha256.New()
	h.Write([]byte(DomainTrace))
	h.Write([]byte{0x00})
	return &TraceHasher{h: h}
}

// Add appends one event. Events are newline separated.
func (t *TraceHasher) Add(e Event) error {
	enc, err := EncodeEvent(e)
	if err != nil {
		return fmt.Errorf("event %d: %w", e.Seq, err)
	}
	t.h.Write(enc)
	t.h.Write([]byte{'\n'})
	t.count++
	return nil
}

// Count returns the number of events added.
func (t *TraceHasher) Count() int64 {
	return t.count
}

// Sum returns the hex hash of the events added so far.
func (t *TraceHasher) Sum() string {
	return hex.EncodeToString(t.h.Sum(nil))
}

// TraceHash hashes a whole event sequence. Two builds with equal trace
// hashes emitted the same events in the same order.
func TraceHash(events []Event) (string, error) {
	t := NewTraceHasher()
	for _, e := range events {
		if err := t.Add(e); err != nil {
			return "", fmt.Errorf("TraceHash: %w", err)
		}
	}
	return t.Sum(), nil
}

// MustTraceHash is like TraceHash but panics on error.
// Use only in tests or when events are known to be finite.
func MustTraceHash(events []Event) string {
	h, err := TraceHash(events)
	if err != nil {
		panic(err)
	}
	return h
}
