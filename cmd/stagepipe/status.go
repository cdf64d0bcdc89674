package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dusk-indust/stagepipe/internal/a2a"
	"github.com/dusk-indust/stagepipe/internal/agent"
	"github.com/dusk-indust/stagepipe/internal/status"
)

var (
	statusContext string
	statusState   string
	statusTasks   bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the tasks each stage holds",
	Example: `  stagepipe status
  stagepipe status --context 6f1c... --tasks`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		targets := make([]status.Target, 0, len(agent.Roles))
		for _, role := range agent.Roles {
			targets = append(targets, status.Target{Name: string(role), URL: cfg.StageURL(role)})
		}
		stages := status.Collect(cmd.Context(), a2a.NewHTTPClient(), targets, status.Query{
			ContextID: statusContext,
			State:     a2a.TaskState(statusState),
		})

		bold := color.New(color.Bold)
		for _, st := range stages {
			mark := color.GreenString("✓")
			if st.Err != nil {
				mark = color.RedString("✗")
			}
			fmt.Printf("%s %s  %s\n", mark, bold.Sprintf("%-13s", st.Name), st.Summary())
			if !statusTasks {
				continue
			}
			for _, t := range st.Tasks {
				fmt.Printf("    %s  %-14s %s\n", t.ID, t.State, t.Message)
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusContext, "context", "", "only tasks of this context (one pipeline run)")
	statusCmd.Flags().StringVar(&statusState, "state", "", "only tasks in this state, e.g. failed")
	statusCmd.Flags().BoolVar(&statusTasks, "tasks", false, "list each task")
}
