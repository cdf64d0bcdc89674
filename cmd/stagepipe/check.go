package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dusk-indust/stagepipe/internal/a2a"
	"github.com/dusk-indust/stagepipe/internal/agent"
	"github.com/dusk-indust/stagepipe/internal/capability"
	"github.com/dusk-indust/stagepipe/internal/orchestrator"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe every stage and capability server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		targets := make([]orchestrator.Target, 0, len(agent.Roles))
		for _, role := range agent.Roles {
			targets = append(targets, orchestrator.Target{Name: string(role), URL: cfg.StageURL(role)})
		}
		servers := make([]string, 0, len(cfg.MCPEndpoints))
		for name := range cfg.MCPEndpoints {
			servers = append(servers, name)
		}
		sort.Strings(servers)

		d := orchestrator.NewDetector(a2a.NewHTTPClient(), capability.NewMCPCaller(cfg.MCPEndpoints), logger)
		h := d.Detect(cmd.Context(), targets, servers)

		fmt.Println("Stages:")
		for _, s := range h.Stages {
			if s.Err != nil {
				fmt.Printf("  %s %-13s %s: %v\n", color.RedString("✗"), s.Name, s.URL, s.Err)
				continue
			}
			fmt.Printf("  %s %-13s %s (%s, streaming=%v)\n", color.GreenString("✓"), s.Name, s.URL, s.Card.Name, s.Card.Capabilities.Streaming)
		}
		fmt.Println("Capability servers:")
		for _, s := range h.Servers {
			if s.Err != nil {
				fmt.Printf("  %s %-18s %v\n", color.RedString("✗"), s.Server, s.Err)
				continue
			}
			fmt.Printf("  %s %-18s %s\n", color.GreenString("✓"), s.Server, strings.Join(s.Tools, ", "))
		}

		if !h.Ready() {
			return fmt.Errorf("deployment not ready")
		}
		return nil
	},
}
