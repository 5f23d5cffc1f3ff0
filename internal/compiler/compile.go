// Package compiler turns script source into an ir.Program.
//
// Compilation runs in three steps: the script is parsed into a syntax
// tree, every setting (at any nesting level) is applied to a fresh
// Criteria store followed by caller overrides, and finally the rule tree
// is flattened into the program's arena with operator strings compiled
// into transform and colour deltas. Operators are compiled after all
// settings so that variables and the colour pool see their final values.
package compiler

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/roach88/sprig/internal/criteria"
	"github.com/roach88/sprig/internal/ir"
	"github.com/roach88/sprig/internal/script"
)

// Option configures Compile.
type Option func(*config)

type config struct {
	seed      uint32
	seeded    bool
	vars      map[string]float64
	overrides map[string]string
	logger    *slog.Logger
}

// WithSeed fixes the build seed, overriding any seed the script sets.
func WithSeed(seed uint32) Option {
	return func(c *config) {
		c.seed = seed
		c.seeded = true
	}
}

// WithVariables overrides script variables. Names may be given with or
// without the leading $.
func WithVariables(vars map[string]float64) Option {
	return func(c *config) {
		if c.vars == nil {
			c.vars = make(map[string]float64, len(vars))
		}
		for k, v := range vars {
			c.vars[k] = v
		}
	}
}

// WithCriteria applies settings after the script's own, as if appended
// to the script as set directives.
func WithCriteria(settings map[string]string) Option {
	return func(c *config) {
		if c.overrides == nil {
			c.overrides = make(map[string]string, len(settings))
		}
		for k, v := range settings {
			c.overrides[k] = v
		}
	}
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// Compile parses and compiles a script.
//
// Errors are *script.SyntaxError for malformed statements and
// *CompileError for invalid content; both carry the script position.
func Compile(src string, opts ...Option) (*ir.Program, error) {
	sc, err := script.Parse(src)
	if err != nil {
		return nil, err
	}
	return CompileScript(sc, src, opts...)
}

// CompileScript compiles an already parsed script. src is recorded on the
// program for hashing and diagnostics.
func CompileScript(sc *script.Script, src string, opts ...Option) (*ir.Program, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	c := &compilation{
		cfg:  cfg,
		crit: criteria.New(),
		prog: &ir.Program{Source: src, SourceHash: ir.ScriptHash(src)},
	}

	if err := c.applySettings(sc.Body); err != nil {
		return nil, err
	}
	if err := c.applyOverrides(); err != nil {
		return nil, err
	}

	root := &ir.Rule{
		ID:       ir.RootID,
		Parent:   ir.NoRule,
		Weight:   1,
		Children: make(map[string][]ir.RuleID),
	}
	c.prog.Rules = append(c.prog.Rules, root)
	if err := c.buildBody(root, sc.Body); err != nil {
		return nil, err
	}
	c.prog.Criteria = c.crit

	stats := c.prog.Stats()
	cfg.logger.Debug("compiled script",
		"rules", stats.Rules,
		"operators", stats.Operators,
		"references", stats.References,
		"hash", c.prog.SourceHash[:12])

	return c.prog, nil
}

type compilation struct {
	cfg  *config
	crit *criteria.Criteria
	prog *ir.Program
}

// applySettings applies every setting in source order, including settings
// written inside rule bodies.
func (c *compilation) applySettings(body []script.Node) error {
	var err error
	script.Walk(body, func(n script.Node) bool {
		s, ok := n.(*script.Setting)
		if !ok {
			return true
		}
		if serr := c.crit.Set(s.Key, s.Value); serr != nil {
			err = &CompileError{
				Field:   "set " + criteria.NormalizeKey(s.Key),
				Message: serr.Error(),
				Pos:     s.Pos,
			}
			return false
		}
		return true
	})
	return err
}

// applyOverrides applies caller settings, variables and seed. Keys are
// applied in sorted order so overrides are deterministic.
func (c *compilation) applyOverrides() error {
	for _, key := range sortedKeys(c.cfg.overrides) {
		if err := c.crit.Set(key, c.cfg.overrides[key]); err != nil {
			return &CompileError{Field: "override " + key, Message: err.Error()}
		}
	}

	for _, name := range sortedKeys(c.cfg.vars) {
		key := name
		if key == "" || key[0] != '$' {
			key = "$" + key
		}
		value := strconv.FormatFloat(c.cfg.vars[name], 'g', -1, 64)
		if err := c.crit.Set(key, value); err != nil {
			return &CompileError{Field: "variable " + key, Message: err.Error()}
		}
	}

	if c.cfg.seeded {
		c.crit.SetSeed(c.cfg.seed)
	}
	return nil
}

func (c *compilation) buildBody(rule *ir.Rule, body []script.Node) error {
	for _, n := range body {
		switch n := n.(type) {
		case *script.Setting:
			// Applied up front.

		case *script.RuleDef:
			child := &ir.Rule{
				ID:       ir.RuleID(len(c.prog.Rules)),
				Name:     n.Name,
				Parent:   rule.ID,
				Weight:   n.Options.Weight,
				MaxDepth: n.Options.MaxDepth,
				Fallback: n.Options.Fallback,
				Children: make(map[string][]ir.RuleID),
				Line:     n.Pos.Line,
			}
			if child.Weight == 0 {
				child.Weight = 1
			}
			if child.MaxDepth == 0 {
				child.MaxDepth = c.crit.MaxDepth()
			}
			c.prog.Rules = append(c.prog.Rules, child)
			rule.Children[n.Name] = append(rule.Children[n.Name], child.ID)
			if err := c.buildBody(child, n.Body); err != nil {
				return err
			}

		case *script.Transform:
			op, err := parseOperator(n.Ops, c.crit.Variable, c.crit.Pool())
			if err != nil {
				field := "operator"
				var uv *undefinedVariableError
				if errors.As(err, &uv) {
					field = "variable " + uv.name
				}
				return &CompileError{
					Field:   field,
					Message: fmt.Sprintf("%s in {%s}", err.Error(), n.Ops),
					Pos:     n.Pos,
				}
			}
			op.Repeat = n.Repeat
			rule.Body = append(rule.Body, op)

		case *script.Reference:
			rule.Body = append(rule.Body, &ir.Reference{
				Label:    n.Label,
				Param:    n.Param,
				HasParam: n.HasParam,
			})
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
