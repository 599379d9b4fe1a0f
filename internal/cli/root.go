// Package cli implements the bmadflow command-line interface using Cobra.
//
// Every command is a thin layer over the validator and the lifecycle
// manager: it parses arguments, runs one operation and prints the result.
// There is no daemon; each invocation loads and saves persisted state.
//
// Key types:
//   - [App] holds the dependencies shared by all commands
//   - [ExitError] carries an exit code out of a command
//   - [ExecuteResult] is what [RunWithConfig] returns for testing
//
// Exit codes: 0 success, 1 rejected operation or invalid definition,
// 2 usage error.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bmadflow/internal/config"
	"bmadflow/internal/lifecycle"
	"bmadflow/internal/logging"
	"bmadflow/internal/output"
	"bmadflow/internal/state"
	"bmadflow/internal/store"
)

// App holds the dependencies shared by all commands.
type App struct {
	Config  *config.Config
	Store   *store.Store
	Manager *lifecycle.Manager
	Printer *output.Printer
	Logger  *logging.Logger
}

// NewApp wires an App from configuration. State lives under the configured
// state directory relative to the working directory. A log file that cannot
// be opened is reported on stderr and replaced by a discard logger.
func NewApp(cfg *config.Config) *App {
	st := store.NewStoreWithDir(".", cfg.Paths.StateDir)

	logger, err := logging.New(logging.Options{
		Enabled: cfg.Log.Enabled,
		Level:   cfg.Log.Level,
		Dir:     cfg.LogDir(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		logger = logging.Discard()
	}

	manager := lifecycle.NewManager(st, state.New())
	manager.SetLogger(logger.Logger)

	printer := output.NewPrinter()
	printer.SetColor(cfg.Output.Color)
	printer.SetMarkdown(output.MarkdownOptions{
		Enabled:  cfg.Output.Markdown.Enabled,
		Style:    cfg.Output.Markdown.Style,
		WordWrap: cfg.Output.Markdown.WordWrap,
	})

	return &App{
		Config:  cfg,
		Store:   st,
		Manager: manager,
		Printer: printer,
		Logger:  logger,
	}
}

// NewRootCommand builds the command tree for app.
func NewRootCommand(app *App) *cobra.Command {
	var noColor bool

	rootCmd := &cobra.Command{
		Use:   "bmadflow",
		Short: "Validate BMAD workflow definitions and track their execution",
		Long: `bmadflow checks BMAD workflow definitions before they run and keeps a
persisted record of each workflow instance, so the work can be resumed in a
later session.

Definitions are validated for required fields, agent references, artifact
flow, circular dependencies, conditions, handoff prompts and flow diagrams.
Instances are created with "start" and driven step by step with "begin",
"complete", "skip" and "next".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				app.Printer.SetColor(false)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable styled output")

	rootCmd.AddCommand(
		newValidateCommand(app),
		newValidateAllCommand(app),
		newStartCommand(app),
		newStatusCommand(app),
		newNextCommand(app),
		newBeginCommand(app),
		newCompleteCommand(app),
		newSkipCommand(app),
		newDecideCommand(app),
		newAbortCommand(app),
		newHandoffCommand(app),
		newListCommand(app),
		newAgentsCommand(app),
	)

	return rootCmd
}

// ExecuteResult is the outcome of [RunWithConfig].
type ExecuteResult struct {
	ExitCode int
	Err      error
}

// RunWithConfig builds the application from cfg, runs the command line in
// args and returns the exit code without exiting.
func RunWithConfig(cfg *config.Config, args []string) ExecuteResult {
	app := NewApp(cfg)
	defer app.Logger.Close()
	return run(app, args)
}

func run(app *App, args []string) ExecuteResult {
	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)
	return execute(rootCmd)
}

// execute runs a prepared root command and maps its error to an exit code.
func execute(rootCmd *cobra.Command) ExecuteResult {
	err := rootCmd.Execute()
	if err == nil {
		return ExecuteResult{ExitCode: ExitOK}
	}
	if code, ok := IsExitError(err); ok {
		return ExecuteResult{ExitCode: code, Err: err}
	}

	// Anything Cobra rejects before a command runs is a usage error.
	fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
	fmt.Fprintln(rootCmd.ErrOrStderr(), "Run 'bmadflow --help' for usage.")
	return ExecuteResult{ExitCode: ExitUsage, Err: err}
}

// Execute loads configuration, runs the CLI and exits the process.
func Execute() {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitFailure)
	}

	result := RunWithConfig(cfg, os.Args[1:])
	os.Exit(result.ExitCode)
}
