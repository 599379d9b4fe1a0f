package cli

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"bmadflow/internal/agents"
	"bmadflow/internal/validator"
)

// scopeFlags are the agent resolution flags shared by validate, validate-all
// and start.
type scopeFlags struct {
	context string
	squad   string
	strict  bool
}

func (f *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.context, "context", "", "Target context: core, squad or hybrid (default core, or squad when --squad is set)")
	cmd.Flags().StringVar(&f.squad, "squad", "", "Squad whose agents are checked before core agents")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "Treat warnings as errors")
}

// targetContext parses --context. An empty value means squad when a squad
// is named and core otherwise.
func (f *scopeFlags) targetContext() (agents.Context, error) {
	if f.context == "" {
		if f.squad != "" {
			return agents.ContextSquad, nil
		}
		return agents.ContextCore, nil
	}
	ctx, err := agents.ParseContext(f.context)
	if err != nil {
		return "", usageError("%v", err)
	}
	return ctx, nil
}

// validationOptions builds validator options from configuration and flags.
//
// Agent resolution is enabled only when there is somewhere to resolve
// against: a core agents directory, an agent manifest or a named squad.
func (app *App) validationOptions(f *scopeFlags) (validator.Options, agents.Context, error) {
	ctx, err := f.targetContext()
	if err != nil {
		return validator.Options{}, "", err
	}

	opts := validator.Options{
		Strict:             f.strict || app.Config.Validation.Strict,
		AggregateArtifacts: app.Config.Validation.AggregateArtifacts,
		PlaceholderAgents:  app.Config.Validation.PlaceholderAgents,
	}

	layout := app.Config.Layout()
	if !pathExists(layout.CoreAgentsDir) && !pathExists(layout.AgentManifest) && f.squad == "" {
		return opts, ctx, nil
	}

	core, squad, err := agents.Scopes(ctx, f.squad, layout)
	if err != nil {
		return validator.Options{}, "", err
	}
	opts.Core = core
	opts.Squad = squad
	return opts, ctx, nil
}

func pathExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func newValidateCommand(app *App) *cobra.Command {
	var (
		flags    scopeFlags
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "validate <workflow-file> [workflow-file...]",
		Short: "Validate workflow definitions",
		Long: `Validate one or more workflow definition files.

Each file gets a report of errors, warnings and suggestions. Warnings never
make a definition invalid unless --strict is given.

Example:
  bmadflow validate .bmad-core/workflows/greenfield-fullstack.yaml
  bmadflow validate --squad web --json workflows/*.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.validatePaths(cmd, args, &flags, jsonMode, false)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Print reports as JSON")
	return cmd
}

func newValidateAllCommand(app *App) *cobra.Command {
	var (
		flags    scopeFlags
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "validate-all [dir]",
		Short: "Validate every workflow definition in a directory",
		Long: `Validate every .yaml and .yml file under a directory, recursively.

The directory defaults to paths.workflows_dir from the configuration.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := app.Config.Paths.WorkflowsDir
			if len(args) == 1 {
				dir = args[0]
			}
			paths, err := findDefinitions(dir)
			if err != nil {
				return app.fail(err)
			}
			if len(paths) == 0 {
				app.Printer.Error("no workflow definitions found in %s", dir)
				return NewExitError(ExitFailure)
			}
			return app.validatePaths(cmd, paths, &flags, jsonMode, true)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Print reports as JSON")
	return cmd
}

func (app *App) validatePaths(cmd *cobra.Command, paths []string, flags *scopeFlags, jsonMode, summary bool) error {
	opts, _, err := app.validationOptions(flags)
	if err != nil {
		return app.fail(err)
	}

	reports, err := validator.ValidateMany(cmd.Context(), paths, opts, app.Config.Validation.Concurrency)
	if err != nil {
		return app.fail(err)
	}

	if jsonMode {
		if err := app.Printer.JSON(reports); err != nil {
			return app.fail(err)
		}
	} else {
		for _, r := range reports {
			app.Printer.Report(r)
		}
		if summary {
			app.Printer.ReportsSummary(reports)
		}
	}

	for _, r := range reports {
		if !r.Valid {
			return NewExitError(ExitFailure)
		}
	}
	return nil
}

// findDefinitions returns the YAML files under dir in lexical order.
func findDefinitions(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
