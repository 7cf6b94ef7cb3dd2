package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ruleforge/ucr/internal/engine"
	"github.com/ruleforge/ucr/internal/repository"
	"github.com/ruleforge/ucr/internal/rule"
	"github.com/ruleforge/ucr/internal/rulefile"
)

// EvalResult is the output of one evaluation batch.
type EvalResult struct {
	Results  []engine.Result `json:"results"`
	Failures int             `json:"failures"`
	Skipped  int             `json:"skipped"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		packDir     string
		dbPath      string
		tenant      string
		contextPath string
		typeFilter  string
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate a context against a rule set",
		Long: `Load rules from a CUE pack or a rule database and execute them against
a context document (JSON or YAML).

Results are reported per rule in priority order. The command exits
non-zero when any executed rule fails.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (packDir == "") == (dbPath == "") {
				return NewExitError(ExitCommandError, "exactly one of --rules or --db is required")
			}
			if contextPath == "" {
				return NewExitError(ExitCommandError, "--context is required")
			}
			return runEval(rootOpts, packDir, dbPath, tenant, contextPath, typeFilter, cmd)
		},
	}

	cmd.Flags().StringVar(&packDir, "rules", "", "path to a CUE rule pack directory")
	cmd.Flags().StringVar(&dbPath, "db", "", "path to a rule database")
	cmd.Flags().StringVar(&tenant, "tenant", "default", "tenant whose rules to load")
	cmd.Flags().StringVar(&contextPath, "context", "", "path to the context document (JSON or YAML)")
	cmd.Flags().StringVar(&typeFilter, "type", "", "restrict the batch to one rule type")

	return cmd
}

func runEval(opts *RootOptions, packDir, dbPath, tenant, contextPath, typeFilter string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	repo, err := buildRepository(packDir, dbPath, formatter)
	if err != nil {
		return err
	}

	evalCtx, err := loadContext(contextPath)
	if err != nil {
		if outErr := formatter.Error(rulefile.ErrCodeGeneric, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "load context document", err)
	}

	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	eng := engine.New(repo,
		engine.WithLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel}))),
	)

	if err := eng.Load(cmd.Context(), tenant); err != nil {
		if outErr := formatter.Error(rulefile.ErrCodeGeneric, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "load rules", err)
	}
	formatter.VerboseLog("Loaded %d rule(s)", len(eng.Rules()))

	results, err := eng.ExecuteRules(cmd.Context(), evalCtx, rule.Type(typeFilter))
	if err != nil {
		if outErr := formatter.Error(rulefile.ErrCodeGeneric, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "execute rules", err)
	}

	out := EvalResult{Results: results}
	for _, res := range results {
		switch {
		case res.Skipped():
			out.Skipped++
		case !res.Success:
			out.Failures++
		}
	}

	if formatter.Format == "json" {
		if err := formatter.Success(out); err != nil {
			return err
		}
	} else {
		printEvalText(formatter, out)
	}

	if out.Failures > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d rule(s) failed", out.Failures))
	}
	return nil
}

// buildRepository picks the rule source: a compiled pack held in memory, or
// a SQLite database.
func buildRepository(packDir, dbPath string, formatter *OutputFormatter) (repository.Repository, error) {
	if dbPath != "" {
		db, err := repository.Open(dbPath)
		if err != nil {
			if outErr := formatter.Error(rulefile.ErrCodeGeneric, err.Error(), nil); outErr != nil {
				return nil, outErr
			}
			return nil, WrapExitError(ExitCommandError, "open rule database", err)
		}
		return db, nil
	}

	result, loadErrors := rulefile.LoadPack(packDir, rulefile.LoadModeFailFast)
	if len(loadErrors) > 0 {
		return nil, reportLoadError(formatter, loadErrors[0])
	}

	repo := repository.NewMemory()
	for _, r := range result.Rules {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if err := repo.AddRule(r); err != nil {
			if outErr := formatter.Error(rulefile.ErrCodeGeneric, err.Error(), nil); outErr != nil {
				return nil, outErr
			}
			return nil, WrapExitError(ExitCommandError, "stage rule", err)
		}
	}
	return repo, nil
}

// loadContext reads a context document, decoding YAML or JSON by extension.
func loadContext(path string) (engine.Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var ctx map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &ctx); err != nil {
			return nil, fmt.Errorf("parse YAML context: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &ctx); err != nil {
			return nil, fmt.Errorf("parse JSON context: %w", err)
		}
	}
	return engine.Context(ctx), nil
}

// printEvalText renders results for humans.
func printEvalText(formatter *OutputFormatter, out EvalResult) {
	for _, res := range out.Results {
		switch {
		case res.Skipped():
			fmt.Fprintf(formatter.Writer, "SKIP %s (%s)\n", res.RuleID, res.RuleName)
		case res.Success:
			fmt.Fprintf(formatter.Writer, "PASS %s (%s)", res.RuleID, res.RuleName)
			if len(res.Data) > 0 {
				data, _ := json.Marshal(res.Data)
				fmt.Fprintf(formatter.Writer, " %s", data)
			}
			fmt.Fprintln(formatter.Writer)
		default:
			fmt.Fprintf(formatter.Writer, "FAIL %s (%s): %s\n",
				res.RuleID, res.RuleName, strings.Join(res.Errors, "; "))
		}
	}
	fmt.Fprintf(formatter.Writer, "%d result(s), %d failed, %d skipped\n",
		len(out.Results), out.Failures, out.Skipped)
}
