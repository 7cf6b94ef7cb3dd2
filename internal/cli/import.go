package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ruleforge/ucr/internal/repository"
	"github.com/ruleforge/ucr/internal/rulefile"
)

// ImportResult summarizes an import run.
type ImportResult struct {
	Imported int      `json:"imported"`
	Tenant   string   `json:"tenant"`
	RuleIDs  []string `json:"ruleIds"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dbPath string
		tenant string
	)

	cmd := &cobra.Command{
		Use:   "import <pack-dir>",
		Short: "Import a CUE rule pack into a rule database",
		Long: `Compile a CUE rule pack and write its rules to a SQLite rule database.

Import is fail-fast: a pack with any invalid rule imports nothing.
Rules without an explicit id get a generated UUID.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args[0], dbPath, tenant, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "rules.db", "path to the rule database")
	cmd.Flags().StringVar(&tenant, "tenant", "default", "tenant to import rules under")

	return cmd
}

func runImport(opts *RootOptions, packDir, dbPath, tenant string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result, loadErrors := rulefile.LoadPack(packDir, rulefile.LoadModeFailFast)
	if len(loadErrors) > 0 {
		return reportLoadError(formatter, loadErrors[0])
	}

	formatter.VerboseLog("Compiled %d rule(s) from %s", len(result.Rules), packDir)

	db, err := repository.Open(dbPath)
	if err != nil {
		if outErr := formatter.Error(rulefile.ErrCodeGeneric, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "open rule database", err)
	}
	defer db.Close()

	out := ImportResult{Tenant: tenant}
	for _, r := range result.Rules {
		id, err := db.SaveRule(cmd.Context(), tenant, r)
		if err != nil {
			if outErr := formatter.Error(rulefile.ErrCodeGeneric, err.Error(), nil); outErr != nil {
				return outErr
			}
			return WrapExitError(ExitCommandError, fmt.Sprintf("import rule %q", r.Name), err)
		}
		formatter.VerboseLog("Imported %s as %s", r.Name, id)
		out.RuleIDs = append(out.RuleIDs, id)
		out.Imported++
	}

	if formatter.Format == "json" {
		return formatter.Success(out)
	}
	fmt.Fprintf(formatter.Writer, "Imported %d rule(s) into %s (tenant %s)\n", out.Imported, dbPath, tenant)
	return nil
}
