package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ruleforge/ucr/internal/rulefile"
)

// PackIssue is one problem found while validating a rule pack.
type PackIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results for a pack.
type ValidationResult struct {
	Valid     bool        `json:"valid"`
	RuleCount int         `json:"ruleCount"`
	FileCount int         `json:"fileCount"`
	Issues    []PackIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <pack-dir>",
		Short: "Validate a CUE rule pack without importing it",
		Long: `Validate a CUE rule pack: syntax, required fields, and rule schema.

Collects every problem in the pack rather than stopping at the first,
so a pack author gets one complete report per run.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, packDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result, loadErrors := rulefile.LoadPack(packDir, rulefile.LoadModeCollectAll)
	if result == nil && len(loadErrors) > 0 {
		return reportLoadError(formatter, loadErrors[0])
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, packDir)

	issues := make([]PackIssue, 0, len(loadErrors))
	for _, err := range loadErrors {
		issues = append(issues, toPackIssue(err))
	}

	out := ValidationResult{
		Valid:     len(issues) == 0,
		RuleCount: len(result.Rules),
		FileCount: result.FileCount,
		Issues:    issues,
	}

	if !out.Valid {
		if formatter.Format == "json" {
			if err := formatter.Success(out); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(formatter.Writer, "Pack invalid: %d issue(s)\n", len(issues))
			for _, issue := range issues {
				fmt.Fprintf(formatter.Writer, "  [%s] %s\n", issue.Code, issue.Message)
			}
		}
		return NewExitError(ExitFailure, fmt.Sprintf("pack has %d issue(s)", len(issues)))
	}

	if formatter.Format == "json" {
		return formatter.Success(out)
	}
	fmt.Fprintf(formatter.Writer, "Pack valid: %d rule(s) in %d file(s)\n", out.RuleCount, out.FileCount)
	return nil
}

// reportLoadError handles fatal pack loading errors (bad path, no files).
func reportLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *rulefile.LoadError
	if errors.As(err, &loadErr) {
		if outErr := formatter.Error(loadErr.Code, loadErr.Message, nil); outErr != nil {
			return outErr
		}
		return NewExitError(ExitCommandError, loadErr.Message)
	}
	if outErr := formatter.Error(rulefile.ErrCodeGeneric, err.Error(), nil); outErr != nil {
		return outErr
	}
	return NewExitError(ExitCommandError, err.Error())
}

// toPackIssue converts a loader error into a reportable issue.
func toPackIssue(err error) PackIssue {
	var loadErr *rulefile.LoadError
	if errors.As(err, &loadErr) {
		issue := PackIssue{Code: loadErr.Code, Message: loadErr.Message}
		if loadErr.Pos.IsValid() {
			issue.File = loadErr.Pos.Filename()
			issue.Line = loadErr.Pos.Line()
		}
		return issue
	}
	return PackIssue{Code: rulefile.ErrCodeGeneric, Message: err.Error()}
}
