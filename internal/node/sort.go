package node

// Less orders siblings for display.
//
// Jobs sort by submit number descending (newest first), then id. Everything
// else sorts by case-sensitive name, then families before tasks, then id.
func Less(a, b *Node) bool {
	if a.Kind == KindJob && b.Kind == KindJob {
		if sa, sb := a.SubmitNum(), b.SubmitNum(); sa != sb {
			return sa > sb
		}
		return a.ID < b.ID
	}
	if na, nb := a.Name(), b.Name(); na != nb {
		return na < nb
	}
	if ra, rb := rank(a.Kind), rank(b.Kind); ra != rb {
		return ra < rb
	}
	return a.ID < b.ID
}

func rank(k Kind) int {
	switch k {
	case KindFamilyProxy:
		return 0
	case KindTaskProxy:
		return 1
	case KindJob:
		return 3
	}
	return 2
}
