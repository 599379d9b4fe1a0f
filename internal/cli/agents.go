package cli

import (
	"github.com/spf13/cobra"

	"bmadflow/internal/agents"
)

func newAgentsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Inspect agent resolution",
	}
	cmd.AddCommand(newAgentsPathsCommand(app))
	return cmd
}

func newAgentsPathsCommand(app *App) *cobra.Command {
	var flags scopeFlags

	cmd := &cobra.Command{
		Use:   "paths",
		Short: "Print the directories searched for agent definitions",
		Long: `Print the directories searched for agent definitions, in priority order.
The squad directory comes first for the squad and hybrid contexts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := flags.targetContext()
			if err != nil {
				return app.fail(err)
			}
			for _, dir := range agents.Paths(ctx, flags.squad, app.Config.Layout()) {
				app.Printer.Text("%s", dir)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.context, "context", "", "Target context: core, squad or hybrid")
	cmd.Flags().StringVar(&flags.squad, "squad", "", "Squad name")
	return cmd
}
