package collect

import "time"

// Mode selects how much work a run performs.
type Mode string

const (
	// ModeQuick collects a bounded slice of the event feed only.
	ModeQuick Mode = "quick"

	// ModeDeep runs every adapter: feed, search, graph, plus per-repo
	// commit listing.
	ModeDeep Mode = "deep"
)

// Options bound one collection run.
type Options struct {
	// Since and Until frame the collection window. A zero Until means
	// now; a zero Since means one year before Until.
	Since time.Time
	Until time.Time

	// Mode defaults to ModeDeep.
	Mode Mode

	// IncludeScrape is forwarded to downstream consumers of the
	// result; this layer never scrapes.
	IncludeScrape bool

	// MaxRepos caps how many repositories get per-repo commit listing
	// in deep mode. Zero means DefaultMaxRepos.
	MaxRepos int
}

// DefaultMaxRepos bounds deep-mode commit listing to the most recently
// pushed repositories.
const DefaultMaxRepos = 5

// DefaultWindow is the collection window applied when Since is zero.
const DefaultWindow = 365 * 24 * time.Hour

// normalized returns a copy with defaults applied and times in UTC.
func (o Options) normalized(now time.Time) Options {
	if o.Until.IsZero() {
		o.Until = now
	}
	if o.Since.IsZero() {
		o.Since = o.Until.Add(-DefaultWindow)
	}
	o.Since = o.Since.UTC()
	o.Until = o.Until.UTC()
	if o.Mode == "" {
		o.Mode = ModeDeep
	}
	if o.MaxRepos == 0 {
		o.MaxRepos = DefaultMaxRepos
	}
	return o
}
