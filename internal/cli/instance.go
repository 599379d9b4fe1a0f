package cli

import (
	"errors"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bmadflow/internal/lifecycle"
	"bmadflow/internal/state"
)

// parseStepIndex parses a zero-based step index argument.
func parseStepIndex(s string) (int, error) {
	index, err := strconv.Atoi(s)
	if err != nil || index < 0 {
		return 0, usageError("step must be a non-negative integer, got %q", s)
	}
	return index, nil
}

func newStartCommand(app *App) *cobra.Command {
	var (
		flags scopeFlags
		force bool
	)

	cmd := &cobra.Command{
		Use:   "start <workflow-file>",
		Short: "Validate a definition and create a workflow instance",
		Long: `Validate a workflow definition and, if it has no errors, create a new
instance with every step pending. The instance id is printed and is needed
by every other instance command.

Warnings are shown but never block. Use --force to start a definition that
has errors.

Example:
  bmadflow start .bmad-core/workflows/greenfield-fullstack.yaml
  bmadflow start --squad web workflows/feature.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, ctx, err := app.validationOptions(&flags)
			if err != nil {
				return app.fail(err)
			}

			st, report, err := app.Manager.Start(args[0], lifecycle.StartOptions{
				Validation: opts,
				Instance: state.InstanceConfig{
					TargetContext: ctx,
					SquadName:     flags.squad,
				},
				Force: force,
			})
			if report != nil && (len(report.Errors) > 0 || len(report.Warnings) > 0) {
				app.Printer.Report(report)
			}
			if err != nil {
				if errors.Is(err, lifecycle.ErrInvalidDefinition) {
					app.Printer.Error("refusing to start an invalid definition (use --force to override)")
					return &ExitError{Code: ExitFailure, Err: err}
				}
				return app.fail(err)
			}

			app.Printer.Success("Started %s", st.InstanceID)
			app.Printer.StepLine(st)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "Start even when the definition has errors")
	return cmd
}

func newStatusCommand(app *App) *cobra.Command {
	var jsonMode bool

	cmd := &cobra.Command{
		Use:   "status <instance-id>",
		Short: "Show the progress of a workflow instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.Manager.Status(args[0])
			if err != nil {
				return app.fail(err)
			}
			if jsonMode {
				if err := app.Printer.JSON(st); err != nil {
					return app.fail(err)
				}
				return nil
			}
			app.Printer.Status(st)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Print the persisted state as JSON")
	return cmd
}

func newNextCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "next <instance-id>",
		Short: "Show the step to work on next",
		Long: `Show the current step of an instance. When the current step is already
completed or skipped, the instance first advances to the next pending step.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.Manager.Next(args[0])
			if err != nil {
				return app.fail(err)
			}
			app.Printer.StepLine(st)
			return nil
		},
	}
}

func newBeginCommand(app *App) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "begin <instance-id> <step>",
		Short: "Mark a step in progress",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseStepIndex(args[1])
			if err != nil {
				return app.fail(err)
			}
			st, err := app.Manager.Begin(args[0], index, sessionID)
			if err != nil {
				return app.fail(err)
			}
			app.Printer.StepLine(st)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session working on the step")
	return cmd
}

func newCompleteCommand(app *App) *cobra.Command {
	var artifacts []string

	cmd := &cobra.Command{
		Use:   "complete <instance-id> <step>",
		Short: "Mark a step completed",
		Long: `Mark a step completed and record the artifacts it produced. Completing the
current step advances the instance to the next pending step.

Artifacts are given as NAME or NAME=PATH and may be repeated.

Example:
  bmadflow complete greenfield-20261018-090000-0badc0de 1 --artifact prd.md=docs/prd.md`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseStepIndex(args[1])
			if err != nil {
				return app.fail(err)
			}
			parsed := make([]lifecycle.Artifact, 0, len(artifacts))
			for _, a := range artifacts {
				parsed = append(parsed, lifecycle.ParseArtifact(a))
			}
			st, err := app.Manager.Complete(args[0], index, parsed)
			if err != nil {
				return app.fail(err)
			}
			app.Printer.Success("Step %d completed", index)
			app.Printer.StepLine(st)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&artifacts, "artifact", nil, "Artifact produced by the step, as NAME or NAME=PATH")
	return cmd
}

func newSkipCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "skip <instance-id> <step>",
		Short: "Skip an optional step",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseStepIndex(args[1])
			if err != nil {
				return app.fail(err)
			}
			st, err := app.Manager.Skip(args[0], index)
			if err != nil {
				return app.fail(err)
			}
			app.Printer.Success("Step %d skipped", index)
			app.Printer.StepLine(st)
			return nil
		},
	}
}

func newDecideCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "decide <instance-id> <step> <decision...>",
		Short: "Record a decision made during a step",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseStepIndex(args[1])
			if err != nil {
				return app.fail(err)
			}
			if _, err := app.Manager.Decide(args[0], index, strings.Join(args[2:], " ")); err != nil {
				return app.fail(err)
			}
			app.Printer.Success("Decision recorded for step %d", index)
			return nil
		},
	}
}

func newAbortCommand(app *App) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "abort <instance-id>",
		Short: "Abort a workflow instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.Manager.Abort(args[0], reason)
			if err != nil {
				return app.fail(err)
			}
			app.Printer.Warning("%s aborted", st.InstanceID)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the workflow is being abandoned")
	return cmd
}

func newHandoffCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "handoff <instance-id>",
		Short: "Print a markdown summary for resuming the workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := app.Manager.Handoff(args[0])
			if err != nil {
				return app.fail(err)
			}
			app.Printer.Markdown(summary)
			return nil
		},
	}
}

func newListCommand(app *App) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflow instances",
		Long:  `List active workflow instances, oldest first. Use --all to include completed and aborted ones.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list := app.Store.ListActive
			if all {
				list = app.Store.List
			}
			summaries, err := list()
			if summaries == nil && err != nil {
				return app.fail(err)
			}
			app.Printer.List(summaries)
			if err != nil {
				app.Printer.Warning("some state files could not be read: %v", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include finished instances")
	return cmd
}
