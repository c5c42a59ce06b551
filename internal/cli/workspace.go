package cli

import (
	"fmt"
	"strings"

	"github.com/codefionn/geocopilot/internal/geomap"
	"github.com/codefionn/geocopilot/internal/orchestrator"
)

// RenderTurn formats a turn's workspace as markdown.
func RenderTurn(res *orchestrator.TurnResult) string {
	var sb strings.Builder

	sb.WriteString("## Code\n\n```python\n")
	sb.WriteString(res.Source.Code)
	sb.WriteString("\n```\n\n## Output\n\n```text\n")
	sb.WriteString(strings.TrimRight(res.Output, "\n"))
	sb.WriteString("\n```\n")

	if len(res.Items) > 0 {
		sb.WriteString("\n## Items\n\n| Title | Type | Owner | Modified |\n|---|---|---|---|\n")
		for _, it := range res.Items {
			modified := ""
			if !it.Modified.IsZero() {
				modified = it.Modified.Format("2006-01-02")
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", cell(it.Title), cell(it.Kind), cell(it.Owner), modified)
		}
	}

	if res.Map != nil {
		fmt.Fprintf(&sb, "\n## %s\n\nCenter %.2f, %.2f (zoom %d)\n\n", geomap.Title(res.Map), res.Map.Center.Lat, res.Map.Center.Lon, res.Map.Zoom)
		for _, m := range res.Map.Markers {
			kind := "marker"
			if m.IsZone() {
				kind = fmt.Sprintf("zone %.0f m", m.RadiusM)
			}
			fmt.Fprintf(&sb, "- %s (%.3f, %.3f, %s, %s)\n", m.Label, m.Lat, m.Lon, kind, m.Source)
		}
	}
	return sb.String()
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
