package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dusk-indust/stagepipe/internal/a2a"
	"github.com/dusk-indust/stagepipe/internal/export"
	"github.com/dusk-indust/stagepipe/internal/orchestrator"
)

var (
	runTimeout time.Duration
	runJSON    bool
	runMermaid bool
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Drive a request through the pipeline",
	Long: `Send a request through the planner, orchestrator and reflector stages
and print the final answer. The stages must already be running, for
example with "stagepipe all".`,
	Example: `  stagepipe run "Plan a trip from Paris to Rome with sightseeing"`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if runTimeout > 0 {
			cfg.Timeout = runTimeout
		}
		logger := newLogger(cfg)

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		p := orchestrator.NewPipeline(orchestrator.Config{
			StageURLs: cfg.PipelineURLs(),
			Timeout:   cfg.Timeout,
			Logger:    logger,
		}, a2a.NewHTTPClient())

		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range p.Progress() {
				fmt.Fprintln(os.Stderr, colorProgress(ev))
			}
		}()

		res, err := p.Run(ctx, strings.Join(args, " "))
		p.Close()
		<-done

		if err != nil {
			var se *orchestrator.StageError
			if errors.As(err, &se) {
				fmt.Fprintf(os.Stderr, "\n%s %s\n", color.RedString("✗"), se.Error())
			}
			return err
		}
		return printResult(os.Stdout, res)
	},
}

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "bound the whole run (default from config)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the full run as a JSON export")
	runCmd.Flags().BoolVar(&runMermaid, "mermaid", false, "print the plan as a Mermaid diagram")
}

// colorProgress renders ev with a color per status.
func colorProgress(ev orchestrator.ProgressEvent) string {
	line := orchestrator.FormatProgress(ev)
	switch ev.Status {
	case orchestrator.ProgressPending:
		return color.New(color.Faint).Sprint(line)
	case orchestrator.ProgressWorking:
		return color.CyanString(line)
	case orchestrator.ProgressComplete:
		return color.GreenString(line)
	case orchestrator.ProgressFailed:
		return color.RedString(line)
	}
	return line
}

func printResult(w io.Writer, res *orchestrator.RunResult) error {
	if runJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(export.ExportRun(res))
	}

	fmt.Fprintln(w)
	for _, out := range res.Stages {
		fmt.Fprintf(w, "%s  task %s\n", orchestrator.FormatStageHeader(res.ContextID, out.Stage), out.TaskID)
	}
	if runMermaid {
		if plan := export.ExportRun(res).Plan; len(plan) > 0 {
			fmt.Fprintf(w, "\n%s\n", export.PlanMermaid(plan))
		}
	}
	fmt.Fprintf(w, "\n%s\n%s\n", color.New(color.Bold).Sprint("Final answer:"), res.FinalAnswer)
	return nil
}
