package script

import (
	"sort"
	"strconv"
	"strings"
)

// TokenKind tags the production a statement token matched.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokSetting
	TokRuleHeader
	TokTransform
	TokReference
	TokScopeEnd
)

func (k TokenKind) String() string {
	switch k {
	case TokEOF:
		return "EOF"
	case TokSetting:
		return "setting"
	case TokRuleHeader:
		return "rule header"
	case TokTransform:
		return "transform"
	case TokReference:
		return "reference"
	case TokScopeEnd:
		return "scope end"
	default:
		return "unknown"
	}
}

// Token is one statement-level token. Which fields are set depends on
// Kind.
type Token struct {
	Kind TokenKind
	Pos  Pos
	Text string

	// TokSetting
	Key, Value string

	// TokRuleHeader
	Name, Options string

	// TokTransform
	Repeat int
	Ops    string
	OpsPos Pos

	// TokReference
	Label    string
	Param    string
	HasParam bool
}

// Lexer splits comment-stripped script source into statement tokens.
// At each position it tries, in order: setting, rule header, transform
// block, reference, scope end.
type Lexer struct {
	src   string
	pos   int
	lines []int

	// header names the rule whose body is being opened while only
	// references have followed its header.
	header string
}

// NewLexer prepares src for scanning. Comments are blanked out first;
// newlines are kept so positions still refer to the original text.
func NewLexer(src string) *Lexer {
	clean := StripComments(src)
	l := &Lexer{src: clean, lines: []int{0}}
	for i := 0; i < len(clean); i++ {
		if clean[i] == '\n' {
			l.lines = append(l.lines, i+1)
		}
	}
	return l
}

// StripComments replaces // line comments and /* */ block comments with
// spaces, keeping newlines.
func StripComments(src string) string {
	b := []byte(src)
	for i := 0; i < len(b); i++ {
		if b[i] != '/' || i+1 >= len(b) {
			continue
		}
		switch b[i+1] {
		case '/':
			for i < len(b) && b[i] != '\n' {
				b[i] = ' '
				i++
			}
		case '*':
			b[i], b[i+1] = ' ', ' '
			i += 2
			for i < len(b) {
				if b[i] == '*' && i+1 < len(b) && b[i+1] == '/' {
					b[i], b[i+1] = ' ', ' '
					i++
					break
				}
				if b[i] != '\n' {
					b[i] = ' '
				}
				i++
			}
		}
	}
	return string(b)
}

// position converts a byte offset into a Pos.
func (l *Lexer) position(offset int) Pos {
	line := sort.Search(len(l.lines), func(i int) bool { return l.lines[i] > offset })
	return Pos{Offset: offset, Line: line, Column: offset - l.lines[line-1] + 1}
}

func (l *Lexer) errorf(offset int, text, msg string) *SyntaxError {
	return &SyntaxError{Pos: l.position(offset), Message: msg, Text: text}
}

// Next returns the next statement token.
func (l *Lexer) Next() (Token, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return Token{Kind: TokEOF, Pos: l.position(len(l.src))}, nil
	}

	start := l.pos
	scanners := []func() (Token, bool, error){
		l.scanSetting,
		l.scanRuleHeader,
		l.scanTransform,
		l.scanReference,
		l.scanScopeEnd,
	}
	for _, scan := range scanners {
		tok, ok, err := scan()
		if err != nil {
			return Token{}, err
		}
		if ok {
			tok.Pos = l.position(start)
			tok.Text = l.src[start:l.pos]
			switch tok.Kind {
			case TokRuleHeader:
				l.header = tok.Name
			case TokReference:
			default:
				l.header = ""
			}
			return tok, nil
		}
		l.pos = start
	}

	if isNumberStart(l.src[start]) {
		msg := "number outside a transform block"
		if l.header != "" {
			msg += `; the "{" after rule ` + l.header + ` opened the rule body, so transforms need their own braces inside it`
		}
		return Token{}, l.errorf(start, excerpt(l.src, start, 24), msg)
	}
	return Token{}, l.errorf(start, excerpt(l.src, start, 24), "unexpected input")
}

// All scans the whole source.
func (l *Lexer) All() ([]Token, error) {
	var toks []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == TokEOF {
			return toks, nil
		}
	}
}

func (l *Lexer) scanSetting() (Token, bool, error) {
	start := l.pos
	var key string

	switch {
	case l.src[l.pos] == '@':
		l.pos++
		key = l.scanWhile(isKeyChar)
		if key == "" || key == "$" {
			return Token{}, false, nil
		}
	case strings.HasPrefix(l.src[l.pos:], "set") && l.pos+3 < len(l.src) && isSpace(l.src[l.pos+3]):
		l.pos += 3
		l.skipSpace()
		key = l.scanWhile(func(c byte) bool { return isKeyChar(c) || isDigit(c) })
		if key == "" {
			return Token{}, false, l.errorf(start, excerpt(l.src, start, 24), "setting has no key")
		}
	default:
		return Token{}, false, nil
	}

	l.skipInlineSpace()
	value, err := l.scanValue()
	if err != nil {
		return Token{}, false, err
	}
	if value == "" {
		return Token{}, false, l.errorf(start, excerpt(l.src, start, 24), "setting "+key+" has no value")
	}
	return Token{Kind: TokSetting, Key: key, Value: value}, true, nil
}

// scanValue reads a setting value: a bracketed list or a run of
// characters up to whitespace or a brace.
func (l *Lexer) scanValue() (string, error) {
	if l.pos < len(l.src) && l.src[l.pos] == '[' {
		end := strings.IndexByte(l.src[l.pos:], ']')
		if end < 0 {
			return "", l.errorf(l.pos, excerpt(l.src, l.pos, 24), "unterminated list value")
		}
		v := l.src[l.pos : l.pos+end+1]
		l.pos += end + 1
		return v, nil
	}
	return l.scanWhile(func(c byte) bool { return !isSpace(c) && c != '{' && c != '}' }), nil
}

func (l *Lexer) scanRuleHeader() (Token, bool, error) {
	start := l.pos
	switch {
	case l.src[l.pos] == '#':
		l.pos++
	case strings.HasPrefix(l.src[l.pos:], "rule") && l.pos+4 < len(l.src) && isSpace(l.src[l.pos+4]):
		l.pos += 4
		l.skipSpace()
	default:
		return Token{}, false, nil
	}

	name := l.scanIdent()
	if name == "" {
		return Token{}, false, l.errorf(start, excerpt(l.src, start, 24), "rule definition has no name")
	}

	open := strings.IndexAny(l.src[l.pos:], "{}")
	if open < 0 || l.src[l.pos+open] != '{' {
		return Token{}, false, l.errorf(start, excerpt(l.src, start, 24), "rule "+name+": expected '{'")
	}
	options := strings.TrimSpace(l.src[l.pos : l.pos+open])
	l.pos += open + 1
	return Token{Kind: TokRuleHeader, Name: name, Options: options}, true, nil
}

func (l *Lexer) scanTransform() (Token, bool, error) {
	start := l.pos
	repeat := 1

	digits := l.scanWhile(isDigit)
	if digits != "" {
		n, err := strconv.Atoi(digits)
		if err != nil {
			return Token{}, false, l.errorf(start, digits, "invalid repeat count")
		}
		repeat = n
		l.skipInlineSpace()
		if l.pos < len(l.src) && l.src[l.pos] == '*' {
			l.pos++
			l.skipInlineSpace()
		}
	}

	if l.pos >= len(l.src) || l.src[l.pos] != '{' {
		return Token{}, false, nil
	}
	l.pos++

	end := strings.IndexAny(l.src[l.pos:], "{}")
	if end < 0 || l.src[l.pos+end] != '}' {
		return Token{}, false, l.errorf(start, excerpt(l.src, start, 24), "unterminated transform block")
	}
	opsPos := l.position(l.pos)
	ops := l.src[l.pos : l.pos+end]
	l.pos += end + 1
	return Token{Kind: TokTransform, Repeat: repeat, Ops: strings.TrimSpace(ops), OpsPos: opsPos}, true, nil
}

func (l *Lexer) scanReference() (Token, bool, error) {
	start := l.pos
	label := l.scanIdent()
	if label == "" {
		return Token{}, false, nil
	}

	tok := Token{Kind: TokReference, Label: label}
	if l.pos < len(l.src) && l.src[l.pos] == '[' {
		end := strings.IndexByte(l.src[l.pos:], ']')
		if end < 0 {
			return Token{}, false, l.errorf(start, excerpt(l.src, start, 24), "unterminated parameter")
		}
		tok.Param = l.src[l.pos+1 : l.pos+end]
		tok.HasParam = true
		l.pos += end + 1
	}
	return tok, true, nil
}

func (l *Lexer) scanScopeEnd() (Token, bool, error) {
	if l.src[l.pos] != '}' {
		return Token{}, false, nil
	}
	l.pos++
	return Token{Kind: TokScopeEnd}, true, nil
}

func (l *Lexer) scanIdent() string {
	if l.pos >= len(l.src) || !isIdentStart(l.src[l.pos]) {
		return ""
	}
	return l.scanWhile(isIdentChar)
}

func (l *Lexer) scanWhile(pred func(byte) bool) string {
	start := l.pos
	for l.pos < len(l.src) && pred(l.src[l.pos]) {
		l.pos++
	}
	return l.src[start:l.pos]
}

func (l *Lexer) skipSpace() {
	l.scanWhile(isSpace)
}

func (l *Lexer) skipInlineSpace() {
	l.scanWhile(func(c byte) bool { return c == ' ' || c == '\t' })
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isNumberStart(c byte) bool {
	return isDigit(c) || c == '.' || c == '-' || c == '+'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

// isKeyChar matches the characters of an @key: letters, underscore and a
// leading $ for variables. Digits end the key so "@maxdepth3" splits into
// maxdepth and 3.
func isKeyChar(c byte) bool {
	return isIdentStart(c) || c == '$'
}
