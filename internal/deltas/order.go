package deltas

import (
	"sort"

	"github.com/roach88/cylcview/internal/node"
)

// OrderFamilies returns the records sorted so that every family comes after
// its ancestors in the same list. Families whose parent is not in the list
// (usually a cycle point) have depth 0; equal depths keep their order.
func OrderFamilies(records []node.FamilyProxyRecord) []node.FamilyProxyRecord {
	if len(records) < 2 {
		return records
	}

	inList := make(map[string]bool, len(records))
	parentOf := make(map[string]string, len(records))
	for _, r := range records {
		inList[r.ID] = true
		if r.FirstParent != nil {
			parentOf[r.ID] = r.FirstParent.ID
		}
	}

	// Depth is capped at len(records) so a parent cycle cannot loop.
	depth := make(map[string]int, len(records))
	for _, r := range records {
		d := 0
		for p := parentOf[r.ID]; inList[p] && d < len(records); p = parentOf[p] {
			d++
		}
		depth[r.ID] = d
	}

	out := make([]node.FamilyProxyRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return depth[out[i].ID] < depth[out[j].ID]
	})
	return out
}
