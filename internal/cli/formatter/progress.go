package formatter

import (
	"fmt"
	"strings"
)

const (
	filledBlock = "█"
	emptyBlock  = "░"
)

// RenderProgress renders done/total as a bar like [████░░░░] 3/8.
// Green above two thirds, yellow above one third, red below.
func RenderProgress(done, total, width int) string {
	if total <= 0 {
		return Dim("[no tasks]")
	}
	done = min(max(done, 0), total)
	width = max(width, 2)

	pct := float64(done) / float64(total)
	filled := int(pct * float64(width))
	bar := strings.Repeat(filledBlock, filled) + strings.Repeat(emptyBlock, width-filled)

	style := StyleGreen
	if pct < 0.33 {
		style = StyleRed
	} else if pct < 0.66 {
		style = StyleYellow
	}
	return fmt.Sprintf("[%s] %d/%d", style.Render(bar), done, total)
}
