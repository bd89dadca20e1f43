package collect

import (
	"fmt"
	"sort"
	"sync"

	"github.com/codetrail/ghactivity/pkg/activity"
)

// RunState tracks a collection run through its lifecycle.
type RunState string

const (
	StateIdle        RunState = "idle"
	StateDispatching RunState = "dispatching"
	StateAggregating RunState = "aggregating"
	StateDone        RunState = "done"
	StateFailed      RunState = "failed"
)

// aggregator accumulates adapter records, then merges them once into
// the per-category timeline. Appends are safe from multiple adapter
// goroutines; seal closes the buffer so a late append cannot corrupt
// an already-merged result.
type aggregator struct {
	mu     sync.Mutex
	buffer []activity.Record
	sealed bool
}

func (g *aggregator) append(r activity.Record) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sealed {
		panic(fmt.Sprintf("append to sealed aggregator: %s", r.IdentityKey()))
	}
	g.buffer = append(g.buffer, r)
	recordsCollectedTotal.WithLabelValues(string(r.Source)).Inc()
}

func (g *aggregator) seal() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sealed = true
}

// merge deduplicates the buffer by identity key and partitions the
// survivors by category, newest first. When two records share an
// identity the higher-priority source wins and absorbs the loser's
// extra fields; at equal priority the first-seen record wins.
func (g *aggregator) merge() map[activity.Category][]activity.Record {
	g.mu.Lock()
	defer g.mu.Unlock()

	byKey := make(map[string]activity.Record, len(g.buffer))
	order := make([]string, 0, len(g.buffer))

	for _, r := range g.buffer {
		key := r.IdentityKey()
		existing, seen := byKey[key]
		if !seen {
			byKey[key] = r
			order = append(order, key)
			continue
		}

		recordsMergedTotal.Inc()
		if r.Source.Priority() > existing.Source.Priority() {
			byKey[key] = r.Merge(existing)
		} else {
			byKey[key] = existing.Merge(r)
		}
	}

	timeline := make(map[activity.Category][]activity.Record)
	for _, key := range order {
		r := byKey[key]
		cat := r.Kind.Category()
		timeline[cat] = append(timeline[cat], r)
	}

	for cat := range timeline {
		records := timeline[cat]
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Time.After(records[j].Time)
		})
	}
	return timeline
}
