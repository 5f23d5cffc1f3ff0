package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/sprig/internal/affine"
	"github.com/roach88/sprig/internal/color"
	"github.com/roach88/sprig/internal/ir"
)

type opTokenKind int

const (
	opIdent opTokenKind = iota
	opNumber
	opHex
	opStar
)

// opToken is one token of an operator string. Variables are substituted
// during tokenizing and arrive as numbers.
type opToken struct {
	kind opTokenKind
	text string
	num  float64
}

// VarLookup resolves a $name to its value.
type VarLookup func(name string) (float64, bool)

// tokenizeOperator splits an operator string into identifiers, signed
// decimals, #hex colours and the * blend marker. Whitespace and commas
// separate tokens but are not required: "x1rz30" is x 1 rz 30.
func tokenizeOperator(s string, vars VarLookup) ([]opToken, error) {
	var toks []opToken
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ',':
			i++

		case c == '*':
			toks = append(toks, opToken{kind: opStar, text: "*"})
			i++

		case c == '#':
			j := i + 1
			for j < len(s) && isHexDigit(s[j]) {
				j++
			}
			if j == i+1 {
				return nil, fmt.Errorf("'#' must be followed by hex digits")
			}
			toks = append(toks, opToken{kind: opHex, text: s[i:j]})
			i = j

		case c == '$':
			j := i + 1
			for j < len(s) && (isLetter(s[j]) || isDigit(s[j]) || s[j] == '_') {
				j++
			}
			name := s[i:j]
			if name == "$" {
				return nil, fmt.Errorf("'$' must be followed by a variable name")
			}
			v, ok := vars(name)
			if !ok {
				return nil, &undefinedVariableError{name: name}
			}
			toks = append(toks, opToken{kind: opNumber, text: name, num: v})
			i = j

		case isLetter(c):
			j := i
			for j < len(s) && isLetter(s[j]) {
				j++
			}
			toks = append(toks, opToken{kind: opIdent, text: strings.ToLower(s[i:j])})
			i = j

		case isDigit(c) || c == '.' || c == '+' || c == '-':
			j := scanNumber(s, i)
			if j == i {
				return nil, fmt.Errorf("unexpected %q", string(c))
			}
			v, err := strconv.ParseFloat(s[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", s[i:j])
			}
			toks = append(toks, opToken{kind: opNumber, text: s[i:j], num: v})
			i = j

		default:
			return nil, fmt.Errorf("unexpected %q", string(c))
		}
	}
	return toks, nil
}

// scanNumber returns the end of a signed decimal starting at i, or i when
// there is none. An exponent is accepted only when digits follow it, so
// "1e" stays a number followed by an identifier.
func scanNumber(s string, i int) int {
	j := i
	if j < len(s) && (s[j] == '+' || s[j] == '-') {
		j++
	}
	digits := 0
	for j < len(s) && isDigit(s[j]) {
		j++
		digits++
	}
	if j < len(s) && s[j] == '.' {
		j++
		for j < len(s) && isDigit(s[j]) {
			j++
			digits++
		}
	}
	if digits == 0 {
		return i
	}
	if j < len(s) && (s[j] == 'e' || s[j] == 'E') {
		k := j + 1
		if k < len(s) && (s[k] == '+' || s[k] == '-') {
			k++
		}
		if k < len(s) && isDigit(s[k]) {
			for k < len(s) && isDigit(s[k]) {
				k++
			}
			j = k
		}
	}
	return j
}

type undefinedVariableError struct {
	name string
}

func (e *undefinedVariableError) Error() string {
	return "undefined variable " + e.name
}

// operatorParser folds operator tokens into an ir.Operator.
type operatorParser struct {
	toks []opToken
	pos  int
	pool *color.Pool

	delta      affine.Matrix
	abs        *color.Color
	colorDelta color.Color
	hasDelta   bool
	blend      *ir.Blend
}

// parseOperator compiles an operator string. Transforms compose left to
// right: "x1 rz90" translates, then rotates in the translated frame.
//
//	x y z <f>            translate
//	rx ry rz <deg>       rotate
//	s <f> | s <f f f>    scale
//	m <9 or 12 f>        raw 3x3 (+ translation)
//	hue|h <f>            add to hue
//	sat <f>              multiply saturation
//	brightness|b <f>     multiply brightness
//	alpha|a <f>          multiply alpha
//	<color> [alpha]      set colour (name or #hex)
//	random [alpha]       set colour from the colour pool
//	*<color> [alpha]     blend fully toward color, weighted by its alpha
//	blend <color> [r]    blend toward color by ratio r (default 1)
//	blend <color> h r s r b r   per-channel ratios; unset channels stay
func parseOperator(text string, vars VarLookup, pool *color.Pool) (*ir.Operator, error) {
	toks, err := tokenizeOperator(text, vars)
	if err != nil {
		return nil, err
	}

	p := &operatorParser{
		toks:       toks,
		pool:       pool,
		delta:      affine.Identity(),
		colorDelta: color.IdentityDelta,
	}
	for p.pos < len(p.toks) {
		if err := p.parseStep(); err != nil {
			return nil, err
		}
	}

	op := &ir.Operator{Repeat: 1, Delta: p.delta, Color: p.abs, Blend: p.blend, Text: text}
	if p.hasDelta {
		d := p.colorDelta
		op.ColorDelta = &d
	}
	return op, nil
}

func (p *operatorParser) next() opToken {
	t := p.toks[p.pos]
	p.pos++
	return t
}

func (p *operatorParser) peekNumber() bool {
	return p.pos < len(p.toks) && p.toks[p.pos].kind == opNumber
}

func (p *operatorParser) number(after string) (float64, error) {
	if !p.peekNumber() {
		return 0, fmt.Errorf("%s needs a number", after)
	}
	return p.next().num, nil
}

// numbers consumes every consecutive number token.
func (p *operatorParser) numbers() []float64 {
	var out []float64
	for p.peekNumber() {
		out = append(out, p.next().num)
	}
	return out
}

func (p *operatorParser) transform(m affine.Matrix) {
	p.delta = p.delta.Mul(m)
}

func (p *operatorParser) parseStep() error {
	tok := p.next()

	switch tok.kind {
	case opNumber:
		return fmt.Errorf("unexpected number %q", tok.text)
	case opStar:
		target, err := p.colorOperand("*")
		if err != nil {
			return err
		}
		p.blend = &ir.Blend{Target: target, Ratio: color.FullRatio}
		return nil
	case opHex:
		c, err := color.Parse(tok.text)
		if err != nil {
			return err
		}
		return p.setAbsolute(c)
	}

	switch tok.text {
	case "x", "y", "z":
		v, err := p.number(tok.text)
		if err != nil {
			return err
		}
		switch tok.text {
		case "x":
			p.transform(affine.Translate(v, 0, 0))
		case "y":
			p.transform(affine.Translate(0, v, 0))
		default:
			p.transform(affine.Translate(0, 0, v))
		}

	case "rx", "ry", "rz":
		v, err := p.number(tok.text)
		if err != nil {
			return err
		}
		switch tok.text {
		case "rx":
			p.transform(affine.RotateX(v))
		case "ry":
			p.transform(affine.RotateY(v))
		default:
			p.transform(affine.RotateZ(v))
		}

	case "s":
		args := p.numbers()
		switch len(args) {
		case 1:
			p.transform(affine.Scale(args[0], args[0], args[0]))
		case 3:
			p.transform(affine.Scale(args[0], args[1], args[2]))
		default:
			return fmt.Errorf("s takes 1 or 3 numbers, got %d", len(args))
		}

	case "m":
		args := p.numbers()
		if len(args) != 9 && len(args) != 12 {
			return fmt.Errorf("m takes 9 or 12 numbers, got %d", len(args))
		}
		var lin [9]float64
		var t [3]float64
		copy(lin[:], args[:9])
		if len(args) == 12 {
			copy(t[:], args[9:])
		}
		p.transform(affine.Raw(lin, t))

	case "hue", "h":
		v, err := p.number(tok.text)
		if err != nil {
			return err
		}
		p.colorDelta.H += v
		p.hasDelta = true

	case "sat", "brightness", "b", "alpha", "a":
		v, err := p.number(tok.text)
		if err != nil {
			return err
		}
		switch tok.text {
		case "sat":
			p.colorDelta.S *= v
		case "brightness", "b":
			p.colorDelta.B *= v
		default:
			p.colorDelta.A *= v
		}
		p.hasDelta = true

	case "random":
		c := color.Color{H: 0, S: 1, B: 1, A: 1, Pool: p.pool}
		return p.setAbsolute(c)

	case "blend":
		return p.parseBlend()

	default:
		if !color.IsName(tok.text) {
			return fmt.Errorf("unknown operator %q", tok.text)
		}
		c, err := color.Parse(tok.text)
		if err != nil {
			return err
		}
		return p.setAbsolute(c)
	}
	return nil
}

// setAbsolute records an absolute colour, taking an optional alpha from
// a directly following number.
func (p *operatorParser) setAbsolute(c color.Color) error {
	if p.peekNumber() {
		c = c.WithAlpha(p.next().num)
	}
	p.abs = &c
	return nil
}

// colorLiteral reads a colour name or #hex.
func (p *operatorParser) colorLiteral(after string) (color.Color, error) {
	if p.pos >= len(p.toks) {
		return color.Color{}, fmt.Errorf("%s needs a colour", after)
	}
	tok := p.next()
	if tok.kind != opHex && (tok.kind != opIdent || !color.IsName(tok.text)) {
		return color.Color{}, fmt.Errorf("%s needs a colour, got %q", after, tok.text)
	}
	return color.Parse(tok.text)
}

// colorOperand reads a colour literal with an optional alpha suffix.
func (p *operatorParser) colorOperand(after string) (color.Color, error) {
	c, err := p.colorLiteral(after)
	if err != nil {
		return color.Color{}, err
	}
	if p.peekNumber() {
		c = c.WithAlpha(p.next().num)
	}
	return c, nil
}

func (p *operatorParser) parseBlend() error {
	target, err := p.colorLiteral("blend")
	if err != nil {
		return err
	}

	if p.peekNumber() {
		r := p.next().num
		p.blend = &ir.Blend{Target: target, Ratio: color.Ratio{H: r, S: r, B: r}}
		return nil
	}

	var ratio color.Ratio
	explicit := false
	for p.pos+1 < len(p.toks) && p.toks[p.pos].kind == opIdent && p.toks[p.pos+1].kind == opNumber {
		ch := p.toks[p.pos].text
		if ch != "h" && ch != "s" && ch != "b" {
			break
		}
		p.pos++
		r := p.next().num
		switch ch {
		case "h":
			ratio.H = r
		case "s":
			ratio.S = r
		default:
			ratio.B = r
		}
		explicit = true
	}
	if !explicit {
		ratio = color.FullRatio
	}
	p.blend = &ir.Blend{Target: target, Ratio: ratio}
	return nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
