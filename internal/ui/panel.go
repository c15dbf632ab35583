package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/route"
)

func OK(msg string)   { fmt.Println(current.Success.Render(current.SymDone + " " + msg)) }
func Fail(msg string) { fmt.Fprintln(os.Stderr, current.Error.Render("✖ "+msg)) }

// ProgressBar renders a Unicode progress bar with a done/total suffix.
func ProgressBar(done, total, width int) string {
	if total <= 0 {
		total = 1
	}
	if width < 5 {
		width = 5
	}
	filled := int(float64(done) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + fmt.Sprintf("] %d/%d", done, total)
}

// PanelString frames inner with the current theme's border.
func PanelString(inner string) string {
	return lipgloss.NewStyle().
		Border(current.Border).
		BorderForeground(current.BorderColor).
		Padding(0, 1).
		Render(inner)
}

// Panel prints lines inside a frame.
func Panel(lines []string) {
	fmt.Println(PanelString(strings.Join(lines, "\n")))
}

// Counter is the "N items left" footer.
func Counter(n int) string {
	word := "items"
	if n == 1 {
		word = "item"
	}
	return fmt.Sprintf("%s %s left", current.Title.Render(fmt.Sprint(n)), word)
}

// Header summarises the collection.
func Header(total, completed int) string {
	return fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		current.Title.Render("Todos"),
		current.Success.Render(current.SymDone), completed,
		current.Pending.Render(current.SymPending), total-completed,
		current.Accent.Render("Total"), total,
	)
}

// Filters renders the three filter links, highlighting the active one.
func Filters(active model.Filter) string {
	names := []struct {
		f     model.Filter
		label string
	}{
		{model.FilterAll, "All"},
		{model.FilterIncomplete, "Active"},
		{model.FilterCompleted, "Completed"},
	}
	parts := make([]string, 0, len(names))
	for i, n := range names {
		label := fmt.Sprintf("%d %s", i+1, n.label)
		if n.f == active {
			parts = append(parts, current.Selected.Render(label))
		} else {
			parts = append(parts, current.Muted.Render(label))
		}
	}
	return strings.Join(parts, "  ") + current.Muted.Render("  "+route.Href(active))
}

// TodoLine renders one todo with its 1-based index.
func TodoLine(index int, t model.Todo) string {
	box, style := current.Muted.Render(current.BoxUnchecked), lipgloss.NewStyle()
	if t.Completed {
		box, style = current.Success.Render(current.BoxChecked), current.Done
	}
	title := runewidth.Truncate(t.Title, 80, "...")
	return fmt.Sprintf("%s %s %s", current.Muted.Render(fmt.Sprintf("%2d.", index)), box, style.Render(title))
}

// FlatLines lists the todos matching f in order. Numbers are positions in
// todos, starting at 1, so hidden items leave gaps.
func FlatLines(todos []model.Todo, f model.Filter) []string {
	var out []string
	for i, t := range todos {
		if f.Match(t) {
			out = append(out, TodoLine(i+1, t))
		}
	}
	if len(out) == 0 {
		return []string{current.Muted.Render("no items")}
	}
	return out
}

// GroupLines lists pending todos first, then completed ones. Indexes refer
// to the position in todos so they can be passed back to commands.
func GroupLines(todos []model.Todo) []string {
	var pend, done []string
	for i, t := range todos {
		if t.Completed {
			done = append(done, TodoLine(i+1, t))
		} else {
			pend = append(pend, TodoLine(i+1, t))
		}
	}
	none := current.Muted.Render("(none)")
	if len(pend) == 0 {
		pend = []string{none}
	}
	if len(done) == 0 {
		done = []string{none}
	}
	lines := []string{current.Accent.Render("Pending")}
	lines = append(lines, pend...)
	lines = append(lines, "", current.Accent.Render("Done"))
	return append(lines, done...)
}
