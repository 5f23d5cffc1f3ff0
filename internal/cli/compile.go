package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sprig/internal/compiler"
	"github.com/roach88/sprig/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string   // output file path
	Set    []string // key=value overrides
}

// CompilationResult summarises a compiled script.
type CompilationResult struct {
	Name       string             `json:"name"`
	ScriptHash string             `json:"script_hash"`
	Seed       *uint32            `json:"seed,omitempty"`
	Criteria   map[string]string  `json:"criteria"`
	Stats      ir.Stats           `json:"stats"`
	Rules      []RuleSummary      `json:"rules"`
	Warnings   []compiler.Warning `json:"warnings"`
}

// RuleSummary describes one compiled rule.
type RuleSummary struct {
	Path       string  `json:"path"`
	Line       int     `json:"line"`
	Weight     float64 `json:"weight"`
	MaxDepth   int     `json:"max_depth"`
	Fallback   string  `json:"fallback,omitempty"`
	Operators  int     `json:"operators"`
	References int     `json:"references"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <script>",
		Short: "Compile a script and summarise its rule tree",
		Long: `Compile a script and print its rule tree, settings and static analysis.

Analysis reports recursive rule groups, fallbacks that name no rule in
scope and rules nothing references. Findings never fail the command.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the summary as JSON to this file")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "override a setting (key=value, $var=value)")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scene, err := LoadScript(path)
	if err != nil {
		return outputCommandError(formatter, err)
	}
	if scene.Set, err = ParseSetFlags(opts.Set); err != nil {
		return outputCommandError(formatter, &LoadError{Code: ErrCodeBadOverride, Message: err.Error()})
	}

	formatter.VerboseLog("Compiling %s (%d bytes)", path, len(scene.Source))

	compiled, err := compileScene(scene)
	if err != nil {
		return outputCommandError(formatter, err)
	}

	result := summarise(compiled)

	if opts.Output != "" {
		if err := writeJSONFile(result, opts.Output); err != nil {
			return outputCommandError(formatter, &LoadError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing output file: %v", err)})
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// summarise builds the compile report for a program.
func summarise(c *compiledScene) *CompilationResult {
	prog := c.Program
	result := &CompilationResult{
		Name:       c.Scene.Name,
		ScriptHash: prog.SourceHash,
		Criteria:   make(map[string]string),
		Stats:      prog.Stats(),
		Rules:      []RuleSummary{},
		Warnings:   compiler.Analyze(prog),
	}
	if result.Warnings == nil {
		result.Warnings = []compiler.Warning{}
	}
	if seed, ok := prog.Criteria.Seed(); ok {
		result.Seed = &seed
	}
	for _, k := range prog.Criteria.Keys() {
		if v, ok := prog.Criteria.Get(k); ok {
			result.Criteria[k] = v.Raw
		}
	}

	for _, r := range prog.Rules {
		if r.IsRoot() {
			continue
		}
		s := RuleSummary{
			Path:     prog.Path(r.ID),
			Line:     r.Line,
			Weight:   r.Weight,
			MaxDepth: r.MaxDepth,
			Fallback: r.Fallback,
		}
		for _, n := range r.Body {
			switch n.(type) {
			case *ir.Operator:
				s.Operators++
			case *ir.Reference:
				s.References++
			}
		}
		result.Rules = append(result.Rules, s)
	}
	return result
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %s: %d rule(s) in %d group(s), %d operator(s), %d reference(s)\n\n",
		result.Name, result.Stats.Rules, result.Stats.Groups, result.Stats.Operators, result.Stats.References)

	if len(result.Rules) > 0 {
		fmt.Fprintln(w, "Rules:")
		for _, r := range result.Rules {
			fmt.Fprintf(w, "  %s (line %d): weight %g, maxdepth %d", r.Path, r.Line, r.Weight, r.MaxDepth)
			if r.Fallback != "" {
				fmt.Fprintf(w, ", fallback %s", r.Fallback)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintln(w, "Analysis:")
		for _, warn := range result.Warnings {
			fmt.Fprintf(w, "  %s: %s\n", warn.Level, warn.Message)
		}
		fmt.Fprintln(w)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote summary to %s\n", outputFile)
	}
	return nil
}

// outputCommandError reports err and returns it as a command error (exit
// code 2).
func outputCommandError(formatter *OutputFormatter, err error) error {
	e := describeError(err)
	_ = formatter.ErrorAt(e)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", e.Code, e.Message))
}

// writeJSONFile writes v as indented JSON.
func writeJSONFile(v any, filename string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
