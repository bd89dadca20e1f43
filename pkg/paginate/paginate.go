// Package paginate provides a generic cursor-following fetch loop for
// paginated API endpoints.
//
// The continuation cursor is opaque: the walker passes it back to the
// caller's fetch function unmodified and never inspects its structure.
// A walk stops on an absent continuation, on MaxPages/MaxItems, or on
// a fetch error, and returns the cursor it would have fetched next so
// a caller can resume a bounded "quick" pass later.
package paginate

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Cursor is an opaque continuation reference. The empty cursor means
// "start from the beginning" on input and "no more pages" on output.
type Cursor string

// Page is one fetched page of items plus the continuation to the next.
type Page[T any] struct {
	Items []T
	Next  Cursor
}

// FetchFunc fetches the page identified by cursor.
type FetchFunc[T any] func(ctx context.Context, cursor Cursor) (Page[T], error)

// Options bound a walk.
type Options struct {
	// Start resumes from a previously saved cursor. Empty starts fresh.
	Start Cursor

	// MaxPages limits fetched pages. Zero means unbounded.
	MaxPages int

	// MaxItems limits emitted items. Zero means unbounded.
	// A page that would overflow the limit is trimmed.
	MaxItems int
}

// Result carries the walked items and resume state.
type Result[T any] struct {
	// Items in continuation order, server-determined within each page.
	Items []T

	// Resume is the cursor the walk would have fetched next.
	// Empty when no further page was advertised.
	Resume Cursor

	// Truncated is true when the walk stopped on a bound rather than
	// on source exhaustion.
	Truncated bool

	// Pages is the number of pages fetched.
	Pages int
}

// Walk follows the cursor chain from opts.Start until exhaustion, a
// bound, a fetch error, or context cancellation. On error the items
// fetched so far are returned alongside it.
func Walk[T any](ctx context.Context, fetch FetchFunc[T], opts Options) (Result[T], error) {
	var res Result[T]
	cursor := opts.Start

	for {
		if err := ctx.Err(); err != nil {
			res.Resume = cursor
			res.Truncated = true
			return res, err
		}

		page, err := fetch(ctx, cursor)
		if err != nil {
			res.Resume = cursor
			return res, err
		}
		res.Pages++

		items := page.Items
		trimmed := false
		if opts.MaxItems > 0 && len(res.Items)+len(items) > opts.MaxItems {
			items = items[:opts.MaxItems-len(res.Items)]
			trimmed = true
		}
		res.Items = append(res.Items, items...)

		log.Debug().
			Int("page", res.Pages).
			Int("items", len(items)).
			Int("total", len(res.Items)).
			Msg("Page fetched")

		if page.Next == "" {
			// A trim on the final page still dropped items the source
			// had; the walk stopped on the bound, not on exhaustion.
			res.Truncated = trimmed
			return res, nil
		}
		cursor = page.Next

		if opts.MaxItems > 0 && len(res.Items) >= opts.MaxItems {
			res.Resume = cursor
			res.Truncated = true
			return res, nil
		}
		if opts.MaxPages > 0 && res.Pages >= opts.MaxPages {
			res.Resume = cursor
			res.Truncated = true
			return res, nil
		}
	}
}
