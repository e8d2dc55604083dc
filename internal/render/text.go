package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/cylcview/internal/node"
	"github.com/roach88/cylcview/internal/table"
)

var (
	stateStyleFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	stateStyleRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	stateStyleSubmitted = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA"))
	stateStyleWaiting   = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	stateStyleSucceeded = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	stateStyleHeld      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	stateStyleDefault   = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	headerStyle         = lipgloss.NewStyle().Bold(true)
	detailStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
)

// TextOptions controls terminal rendering.
type TextOptions struct {
	// Color enables lipgloss styling. Plain output is stable across
	// terminals and is what golden files use.
	Color bool
	// Indent is repeated once per tree level. Defaults to two spaces.
	Indent string
}

// Text draws the table as an indented tree, one node per line.
func Text(tbl *table.Table, opts TextOptions) string {
	if opts.Indent == "" {
		opts.Indent = "  "
	}
	p := painter{color: opts.Color}

	var b strings.Builder
	if wf := tbl.Workflow(); wf != nil {
		d := wf.Workflow()
		name := wf.Name()
		if name == "" {
			name = wf.ID
		}
		fmt.Fprintf(&b, "%s %s", p.paint(headerStyle, name), p.state(deref(d.Status)))
		if d.Host != nil && d.Port != nil {
			fmt.Fprintf(&b, " %s", p.paint(detailStyle, fmt.Sprintf("%s:%d", *d.Host, *d.Port)))
		}
		b.WriteByte('\n')
	} else {
		b.WriteString(p.paint(detailStyle, "(no workflow)"))
		b.WriteByte('\n')
	}

	tbl.Walk(func(n *node.Node, depth int) {
		b.WriteString(strings.Repeat(opts.Indent, depth))
		b.WriteString(p.line(tbl, n))
		b.WriteByte('\n')
	})
	return b.String()
}

type painter struct {
	color bool
}

func (p painter) paint(style lipgloss.Style, s string) string {
	if !p.color {
		return s
	}
	return style.Render(s)
}

// state renders a node state; ghosts show as "-".
func (p painter) state(s string) string {
	if s == "" {
		return p.paint(stateStyleDefault, "-")
	}
	return p.paint(styleForState(s), s)
}

func (p painter) line(tbl *table.Table, n *node.Node) string {
	switch n.Kind {
	case node.KindCyclePoint:
		s := fmt.Sprintf("%s %s", p.paint(headerStyle, n.Name()), p.state(n.State()))
		if tally, ok := tbl.Tally(n.ID); ok && len(tally.States) > 0 {
			s += " " + p.paint(detailStyle, "["+tallyLine(tally)+"]")
		}
		return s
	case node.KindTaskProxy:
		s := fmt.Sprintf("%s %s", n.Name(), p.state(n.State()))
		d := n.Task()
		for _, flag := range []struct {
			label string
			set   *bool
		}{{"held", d.IsHeld}, {"queued", d.IsQueued}, {"runahead", d.IsRunahead}} {
			if flag.set != nil && *flag.set {
				s += " " + p.paint(stateStyleHeld, flag.label)
			}
		}
		return s
	case node.KindJob:
		d := n.Job()
		s := fmt.Sprintf("#%d %s", n.SubmitNum(), p.state(n.State()))
		if d.JobRunnerName != nil && d.JobID != nil {
			s += " " + p.paint(detailStyle, *d.JobRunnerName+":"+*d.JobID)
		}
		return s
	}
	return fmt.Sprintf("%s %s", n.Name(), p.state(n.State()))
}

func styleForState(state string) lipgloss.Style {
	switch state {
	case "failed", "submit-failed", "expired":
		return stateStyleFailed
	case "running":
		return stateStyleRunning
	case "submitted", "preparing":
		return stateStyleSubmitted
	case "waiting":
		return stateStyleWaiting
	case "succeeded":
		return stateStyleSucceeded
	default:
		return stateStyleDefault
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
