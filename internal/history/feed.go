// Package history provides the read-only feed of recent interactions shown
// in the history panel, plus the recorders the conversation service side
// uses to append to it.
package history

import (
	"sort"

	"github.com/hammamikhairi/armate/internal/domain"
)

// DefaultLimit is how many interactions the panel shows.
const DefaultLimit = 20

// newestFirst returns at most limit interactions ordered by timestamp,
// newest first. The input is not modified.
func newestFirst(in []domain.Interaction, limit int) []domain.Interaction {
	out := append([]domain.Interaction(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// offer replaces whatever snapshot is pending on ch with snap. ch must
// have capacity 1 and a single writer.
func offer(ch chan []domain.Interaction, snap []domain.Interaction) {
	select {
	case <-ch:
	default:
	}
	ch <- snap
}
