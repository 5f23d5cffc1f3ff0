package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// EncodeEvent produces the canonical encoding of an event for hashing:
//
//	[seq,"label","param",[m00,...,m33],[h,s,b,a]]
//
// Floats use the shortest round-trip form with negative zero folded to 0;
// non-finite values are spelled as strings.
// Strings are NFC normalized and JSON-quoted without HTML escaping.
// CRITICAL: this is the ONLY serialization used for trace hashes.
func EncodeEvent(e Event) ([]byte, error) {
	var buf bytes.Buffer
	if err := appendEvent(&buf, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func appendEvent(buf *bytes.Buffer, e Event) error {
	buf.WriteByte('[')
	buf.WriteString(strconv.FormatInt(e.Seq, 10))
	buf.WriteByte(',')

	label, err := canonicalString(e.Label)
	if err != nil {
		return fmt.Errorf("label: %w", err)
	}
	buf.Write(label)
	buf.WriteByte(',')

	param, err := canonicalString(e.Param)
	if err != nil {
		return fmt.Errorf("param: %w", err)
	}
	buf.Write(param)
	buf.WriteByte(',')

	appendFloats(buf, e.Matrix.Elements())
	buf.WriteByte(',')

	c := e.Color
	appendFloats(buf, []float64{c.H, c.S, c.B, c.A})
	buf.WriteByte(']')
	return nil
}

func appendFloats(buf *bytes.Buffer, vs []float64) {
	buf.WriteByte('[')
	for i, v := range vs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(canonicalFloat(v))
	}
	buf.WriteByte(']')
}

// canonicalFloat formats v in its shortest round-trip form. NaN and the
// infinities are written as the JSON strings "nan", "inf" and "-inf".
func canonicalFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return `"nan"`
	case math.IsInf(v, 1):
		return `"inf"`
	case math.IsInf(v, -1):
		return `"-inf"`
	case v == 0:
		return "0"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// canonicalString NFC-normalizes s and quotes it as a JSON string with
// HTML escaping disabled.
func canonicalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return nil, err
	}
	// json.Encoder adds a trailing newline.
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
