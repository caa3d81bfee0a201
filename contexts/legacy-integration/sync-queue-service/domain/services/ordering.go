package services

import (
	"sort"

	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
)

// GroupGate tracks correlation groups that must not advance for the rest of a
// processing round because an earlier item did not complete.
type GroupGate struct {
	blocked map[string]struct{}
}

func NewGroupGate() *GroupGate {
	return &GroupGate{blocked: make(map[string]struct{})}
}

func (g *GroupGate) Block(correlationID string) {
	g.blocked[correlationID] = struct{}{}
}

func (g *GroupGate) Blocked(correlationID string) bool {
	_, ok := g.blocked[correlationID]
	return ok
}

// LaterInGroup returns the claimed items after index i that share its
// correlation group. items must be ordered by (correlation id, sequence).
func LaterInGroup(items []entities.QueueItem, i int) []entities.QueueItem {
	var later []entities.QueueItem
	for j := i + 1; j < len(items); j++ {
		if items[j].CorrelationID != items[i].CorrelationID {
			continue
		}
		later = append(later, items[j])
	}
	return later
}

// SortForProcessing orders a batch by (correlation id, sequence, created at).
func SortForProcessing(items []entities.QueueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return Less(items[i], items[j])
	})
}

// Less is the claim order shared by every queue store implementation.
func Less(a, b entities.QueueItem) bool {
	if a.CorrelationID != b.CorrelationID {
		return a.CorrelationID < b.CorrelationID
	}
	if a.Sequence != b.Sequence {
		return a.Sequence < b.Sequence
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
