package page

import "fundraise/internal/models"

// contributionLog is the append-only accumulator behind the table.
//
// Merging appends events in the order given and skips any event whose
// source log is already held, so fetching the same history twice does not
// duplicate rows. Nothing is ever removed.
type contributionLog struct {
	events []models.ContributionEvent
	seen   map[models.LogKey]struct{}
}

func newContributionLog() *contributionLog {
	return &contributionLog{seen: make(map[models.LogKey]struct{})}
}

// merge appends the unseen events and returns how many were added
func (l *contributionLog) merge(events []models.ContributionEvent) int {
	added := 0
	for _, e := range events {
		key := e.Key()
		if _, ok := l.seen[key]; ok {
			continue
		}
		l.seen[key] = struct{}{}
		l.events = append(l.events, e)
		added++
	}
	return added
}

func (l *contributionLog) len() int {
	return len(l.events)
}

// list returns a copy of the held events in insertion order
func (l *contributionLog) list() []models.ContributionEvent {
	out := make([]models.ContributionEvent, len(l.events))
	copy(out, l.events)
	return out
}
