package render

import (
	"fmt"
	"math"
	"slices"

	"github.com/roach88/cylcview/internal/canon"
	"github.com/roach88/cylcview/internal/node"
	"github.com/roach88/cylcview/internal/table"
)

// View returns the table as a tree of canonical values. Absent attributes
// are omitted; ghost states appear as "". Task mean elapsed time is
// reported in whole milliseconds.
func View(tbl *table.Table) map[string]any {
	points := tbl.CyclePoints()
	cps := make([]any, 0, len(points))
	for _, cp := range points {
		cps = append(cps, nodeView(tbl, cp))
	}

	v := map[string]any{
		"cyclePoints": cps,
		"size":        tbl.Len(),
	}
	if wf := tbl.Workflow(); wf != nil {
		v["workflow"] = workflowView(wf)
	}
	return v
}

// Export encodes View(tbl) as canonical JSON.
func Export(tbl *table.Table) ([]byte, error) {
	data, err := canon.Marshal(View(tbl))
	if err != nil {
		return nil, fmt.Errorf("export table: %w", err)
	}
	return data, nil
}

// Digest returns the content digest of the table view. Two tables with the
// same reachable content have the same digest.
func Digest(tbl *table.Table) (string, error) {
	data, err := Export(tbl)
	if err != nil {
		return "", err
	}
	return canon.Digest(canon.DomainTable, data), nil
}

func workflowView(n *node.Node) map[string]any {
	v := map[string]any{"id": n.ID}
	d := n.Workflow()
	putString(v, "name", d.Name)
	putString(v, "status", d.Status)
	putString(v, "owner", d.Owner)
	putString(v, "host", d.Host)
	if d.Port != nil {
		v["port"] = *d.Port
	}
	return v
}

func nodeView(tbl *table.Table, n *node.Node) map[string]any {
	v := map[string]any{
		"id":   n.ID,
		"kind": n.Kind.String(),
	}
	if n.HasState() {
		v["state"] = n.State()
	}

	switch d := n.Data.(type) {
	case *node.CyclePointData:
		v["cyclePoint"] = n.CyclePoint()
		if tally, ok := tbl.Tally(n.ID); ok {
			v["tally"] = tallyView(tally)
		}
	case *node.FamilyProxyData:
		putString(v, "name", d.Name)
		putString(v, "cyclePoint", d.CyclePoint)
		putParent(v, d.FirstParent)
	case *node.TaskProxyData:
		putString(v, "name", d.Name)
		putString(v, "cyclePoint", d.CyclePoint)
		putParent(v, d.FirstParent)
		putBool(v, "isHeld", d.IsHeld)
		putBool(v, "isQueued", d.IsQueued)
		putBool(v, "isRunahead", d.IsRunahead)
		v["progress"] = n.Progress
		if d.Task != nil && d.Task.MeanElapsedTime != nil {
			v["meanElapsedTime"] = int64(math.Round(*d.Task.MeanElapsedTime * 1000))
		}
	case *node.JobData:
		putParent(v, d.FirstParent)
		putString(v, "jobId", d.JobID)
		putString(v, "jobRunnerName", d.JobRunnerName)
		putString(v, "platform", d.Platform)
		putString(v, "submittedTime", d.SubmittedTime)
		putString(v, "startedTime", d.StartedTime)
		putString(v, "finishedTime", d.FinishedTime)
		if d.SubmitNum != nil {
			v["submitNum"] = *d.SubmitNum
		}
		if outputs := n.Outputs(); len(outputs) > 0 {
			list := make([]any, len(outputs))
			for i, o := range outputs {
				list[i] = map[string]any{"label": o.Label, "message": o.Message}
			}
			v["outputs"] = list
		}
	}

	if n.Kind.IsContainer() {
		children := make([]any, len(n.Children))
		for i, c := range n.Children {
			children[i] = nodeView(tbl, c)
		}
		v["children"] = children
	}
	return v
}

func tallyView(t table.Tally) map[string]any {
	states := make(map[string]any, len(t.States))
	for s, count := range t.States {
		states[s] = count
	}
	return map[string]any{
		"states":  states,
		"summary": t.Summary,
	}
}

// tallyLine formats a tally in priority order, unknown states last.
func tallyLine(t table.Tally) string {
	var line string
	seen := make(map[string]bool, len(t.States))
	add := func(state string) {
		if line != "" {
			line += " "
		}
		line += fmt.Sprintf("%s:%d", state, t.States[state])
		seen[state] = true
	}
	for _, s := range table.StatePriority {
		if t.States[s] > 0 {
			add(s)
		}
	}
	var rest []string
	for s := range t.States {
		if !seen[s] {
			rest = append(rest, s)
		}
	}
	slices.Sort(rest)
	for _, s := range rest {
		add(s)
	}
	return line
}

func putString(v map[string]any, key string, s *string) {
	if s != nil {
		v[key] = *s
	}
}

func putBool(v map[string]any, key string, b *bool) {
	if b != nil {
		v[key] = *b
	}
}

func putParent(v map[string]any, p *node.ParentRef) {
	if p != nil && p.ID != "" {
		v["firstParent"] = p.ID
	}
}
