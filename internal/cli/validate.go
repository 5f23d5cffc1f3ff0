package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sprig/internal/script"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool       `json:"valid"`
	Statements int        `json:"statements"`
	Rules      int        `json:"rules"`
	Settings   int        `json:"settings"`
	Errors     []CLIError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <script>",
		Short: "Check script syntax without compiling",
		Long: `Check that every statement of a script matches the grammar.

Operator strings and setting values are not interpreted; use compile for
a full check.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
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

	sc, err := script.Parse(scene.Source)
	if err != nil {
		return outputValidationError(formatter, scene, err)
	}

	result := ValidationResult{Valid: true}
	script.Walk(sc.Body, func(n script.Node) bool {
		result.Statements++
		switch n.(type) {
		case *script.RuleDef:
			result.Rules++
		case *script.Setting:
			result.Settings++
		}
		return true
	})
	formatter.VerboseLog("Parsed %d statement(s) in %s", result.Statements, path)

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s is valid: %d statement(s), %d rule(s), %d setting(s)\n",
		path, result.Statements, result.Rules, result.Settings)
	return nil
}

func outputValidationError(formatter *OutputFormatter, scene *Scene, err error) error {
	e := describeError(err)
	result := ValidationResult{Valid: false, Errors: []CLIError{e}}

	if formatter.IsJSON() {
		_ = formatter.encode(CLIResponse{Status: "error", Data: result, Error: &e})
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Validation failed")
		fmt.Fprintln(formatter.Writer)
		fmt.Fprintf(formatter.Writer, "%s:%d:%d\n  %s: %s\n", scene.Path, e.Line, e.Column, e.Code, e.Message)

		var syntaxErr *script.SyntaxError
		if errors.As(err, &syntaxErr) {
			fmt.Fprintln(formatter.Writer)
			fmt.Fprint(formatter.Writer, syntaxErr.Context(scene.Source))
		}
	}
	return WrapExitError(ExitCommandError, "validation failed", err)
}
