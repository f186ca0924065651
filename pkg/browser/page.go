// Package browser wraps the headless-browser boundary behind a small
// capability interface so scraping logic never touches chromedp directly.
//
// Selectors are CSS, with one extension: a "text=" prefix matches the
// deepest elements whose text contains the given string (case-insensitive).
// That form exists because the store-selector trigger carries no stable
// class or id and is only findable by its label.
package browser

import (
	"context"
	"time"
)

// Page is the capability set the scraping pipeline consumes. Implementations
// address repeated matches by index; rendered document order is the only
// ordering guarantee.
type Page interface {
	// Navigate loads url and waits for the document body to be ready.
	Navigate(ctx context.Context, url string) error

	// Count returns how many elements currently match selector.
	Count(ctx context.Context, selector string) (int, error)

	// ScrollIntoView scrolls the index-th match into the viewport.
	ScrollIntoView(ctx context.Context, selector string, index int) error

	// WaitVisible polls until the index-th match is visible or the timeout
	// elapses.
	WaitVisible(ctx context.Context, selector string, index int, timeout time.Duration) error

	// Click clicks the index-th match. With force set the click is issued
	// even if another element would intercept it.
	Click(ctx context.Context, selector string, index int, force bool) error

	// Hover moves pointer focus onto the index-th match.
	Hover(ctx context.Context, selector string, index int) error

	// Fill replaces the value of the index-th matching input.
	Fill(ctx context.Context, selector string, index int, text string) error

	// Type appends text into the index-th matching input one key at a time,
	// pausing keyDelay between keys. Autocomplete widgets that listen for
	// individual input events need this instead of Fill.
	Type(ctx context.Context, selector string, index int, text string, keyDelay time.Duration) error

	// InnerText returns the rendered text of the index-th match. The second
	// return value is false when no such element exists.
	InnerText(ctx context.Context, selector string, index int) (string, bool, error)

	// ChildText returns the rendered text of the first childSelector match
	// inside the index-th selector match. The second return value is false
	// when either element is missing.
	ChildText(ctx context.Context, selector string, index int, childSelector string) (string, bool, error)

	// Sleep pauses for d, honoring context cancellation.
	Sleep(ctx context.Context, d time.Duration) error
}
