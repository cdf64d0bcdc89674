package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/stagepipe/internal/orchestrator"
)

// PlanMermaid produces a Mermaid graph TD diagram of a plan. Sub-tasks are
// grouped by capability target and chained in execution order.
func PlanMermaid(plan []orchestrator.SubTask) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString("  R([\"request\"])\n")

	groups := make(map[string][]int)
	for i, st := range plan {
		target := st.CapabilityTarget
		if target == "" {
			target = "unassigned"
		}
		groups[target] = append(groups[target], i)
	}
	targets := make([]string, 0, len(groups))
	for t := range groups {
		targets = append(targets, t)
	}
	sort.Strings(targets)

	for g, target := range targets {
		sb.WriteString(fmt.Sprintf("  subgraph G%d[\"%s\"]\n", g, label(target)))
		for _, i := range groups[target] {
			sb.WriteString(fmt.Sprintf("    T%d[\"%d. %.40s\"]\n", i, i+1, label(plan[i].Task)))
		}
		sb.WriteString("  end\n")
	}

	prev := "R"
	for i := range plan {
		sb.WriteString(fmt.Sprintf("  %s --> T%d\n", prev, i))
		prev = fmt.Sprintf("T%d", i)
	}
	return sb.String()
}

// label makes s safe inside a quoted Mermaid label.
func label(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.Join(strings.Fields(s), " ")
}
