// Package script parses the rule language into a tagged syntax tree.
//
// Parsing is two-staged: a Lexer turns comment-stripped source into
// statement tokens (setting, rule header, transform block, reference,
// scope end), and a recursive-descent Parser folds those tokens into
// nested RuleDef bodies. Operator strings inside transform blocks are left
// as raw text for the compiler.
package script

import (
	"errors"
	"strconv"
	"strings"
)

// Parse parses a whole script.
func Parse(src string) (*Script, error) {
	p := &Parser{lex: NewLexer(src)}
	body, err := p.parseBody(nil)
	if err != nil {
		return nil, err
	}
	return &Script{Body: body}, nil
}

// Parser builds the syntax tree from lexer tokens.
type Parser struct {
	lex *Lexer
}

// parseBody collects statements until the scope of def closes, or until
// EOF when def is nil (the root).
func (p *Parser) parseBody(def *RuleDef) ([]Node, error) {
	var body []Node
	for {
		tok, err := p.lex.Next()
		if err != nil {
			return nil, err
		}

		switch tok.Kind {
		case TokEOF:
			if def != nil {
				return nil, &SyntaxError{Pos: def.Pos, Message: "missing closing brace for rule " + def.Name, Text: "#" + def.Name}
			}
			return body, nil

		case TokScopeEnd:
			if def == nil {
				return nil, &SyntaxError{Pos: tok.Pos, Message: "unexpected closing brace", Text: "}"}
			}
			return body, nil

		case TokSetting:
			body = append(body, &Setting{Key: tok.Key, Value: tok.Value, Pos: tok.Pos})

		case TokRuleHeader:
			opts, err := ParseRuleOptions(tok.Options)
			if err != nil {
				var se *SyntaxError
				if errors.As(err, &se) {
					se.Pos = tok.Pos
				}
				return nil, err
			}
			child := &RuleDef{Name: tok.Name, Options: opts, Pos: tok.Pos}
			child.Body, err = p.parseBody(child)
			if err != nil {
				return nil, err
			}
			body = append(body, child)

		case TokTransform:
			body = append(body, &Transform{Repeat: tok.Repeat, Ops: tok.Ops, Pos: tok.Pos, OpsPos: tok.OpsPos})

		case TokReference:
			body = append(body, &Reference{Label: tok.Label, Param: tok.Param, HasParam: tok.HasParam, Pos: tok.Pos})
		}
	}
}

// ParseRuleOptions parses a rule header's option text: weight/w/@w <f>,
// maxdepth/md/@ <i>, and > <Fallback>. Keywords and values may be
// written with or without a space between them.
func ParseRuleOptions(text string) (RuleOptions, error) {
	opts := RuleOptions{Text: text}
	s := strings.TrimSpace(text)

	for s != "" {
		if strings.HasPrefix(s, ">") {
			s = strings.TrimLeft(s[1:], " \t\r\n")
			name := leadingIdent(s)
			if name == "" {
				return opts, &SyntaxError{Message: "fallback needs a rule name", Text: text}
			}
			opts.Fallback = name
			s = strings.TrimSpace(s[len(name):])
			continue
		}

		key := matchOptionKeyword(s)
		if key == "" {
			return opts, &SyntaxError{Message: "unknown rule option", Text: firstField(s)}
		}
		s = strings.TrimLeft(s[len(key):], " \t\r\n")
		num := leadingNumber(s)
		if num == "" {
			return opts, &SyntaxError{Message: "rule option " + key + " needs a value", Text: text}
		}
		s = strings.TrimSpace(s[len(num):])

		switch key {
		case "weight", "w", "@w":
			w, err := strconv.ParseFloat(num, 64)
			if err != nil || w <= 0 {
				return opts, &SyntaxError{Message: "weight must be a positive number", Text: num}
			}
			opts.Weight = w
		default:
			d, err := strconv.Atoi(num)
			if err != nil || d <= 0 {
				return opts, &SyntaxError{Message: "maxdepth must be a positive integer", Text: num}
			}
			opts.MaxDepth = d
		}
	}
	return opts, nil
}

// optionKeywords are tried longest first.
var optionKeywords = []string{"maxdepth", "weight", "md", "@w", "w", "@"}

func matchOptionKeyword(s string) string {
	for _, kw := range optionKeywords {
		if !strings.HasPrefix(s, kw) {
			continue
		}
		rest := s[len(kw):]
		// A keyword must be followed by a value, not more letters.
		if rest != "" && isIdentStart(rest[0]) {
			continue
		}
		return kw
	}
	return ""
}

func leadingIdent(s string) string {
	if s == "" || !isIdentStart(s[0]) {
		return ""
	}
	i := 1
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}
	return s[:i]
}

func leadingNumber(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && (isDigit(s[i]) || s[i] == '.') {
		i++
		digits++
	}
	if digits == 0 {
		return ""
	}
	return s[:i]
}

func firstField(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return s
}
