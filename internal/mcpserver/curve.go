package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/leveler/internal/curve"
	"github.com/starford/leveler/internal/models"
)

// CurveMarkdown renders the XP curve as a Markdown document.
func CurveMarkdown(entries []models.CurveEntry, maxLevel int) string {
	var b strings.Builder
	b.WriteString("# XP Curve\n\n")
	b.WriteString("Members earn XP per message. A member at level N moves to N+1 once\n")
	b.WriteString("their cumulative XP reaches the threshold for N (inclusive).\n\n")
	b.WriteString("| Level | Threshold |\n|---:|---:|\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "| %d | %d |\n", e.Level, e.Threshold)
	}
	fmt.Fprintf(&b, "\nReaching the level %d threshold moves a member to level %d, the max\n", maxLevel, maxLevel+1)
	fmt.Fprintf(&b, "level state. Their XP is floored at %d and they never level up again.\n", curve.OverflowFloor)
	return b.String()
}
