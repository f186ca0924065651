// Package canadiantire drives the Canadian Tire store-locator overlay on a
// product page and turns the rendered store cards into stock readings.
//
// Two tie-break rules are load-bearing and inherent to scraping this page:
// when the page renders duplicate "check other stores" triggers, the last
// one is the live one (earlier copies are stale rehydration leftovers), and
// among result cards the first one matching the store key is authoritative.
// Markup order is the only disambiguator the page offers, so both rules stay
// isolated here.
package canadiantire

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"stockwatch/pkg/browser"
	"stockwatch/pkg/models"
)

const (
	Source = "CANADIANTIRE"

	triggerSelector    = "text=Check other stores"
	modalInputSelector = "div.nl-overlay div[role='dialog'] input[type='text']"
	suggestionSelector = "li[class*='autocomplete'], li[class*='option']"
	cardSelector       = "div.nl-overlay div[role='dialog'] li:has(h3)"
	cardNameSelector   = "h3"
	stockTagSelector   = "span.nl-tag"

	// UI settle pauses. The overlay re-renders asynchronously after every
	// interaction and acts on clicks before it has repopulated otherwise.
	preClickSettle   = 2 * time.Second
	postTypeSettle   = time.Second
	hoverSettle      = 150 * time.Millisecond
	suggestionSettle = 1200 * time.Millisecond
)

// RetryPolicy bounds the attempts to open the store-selector overlay.
type RetryPolicy struct {
	// Attempts is the total number of open attempts before giving up.
	Attempts int
	// PollInterval is how long to wait when no trigger has rendered yet.
	PollInterval time.Duration
	// Backoff is the pause after an attempt that errored.
	Backoff time.Duration
	// ModalTimeout bounds the wait for the overlay's search input.
	ModalTimeout time.Duration
}

// DefaultRetryPolicy matches the cadence the live page tolerates.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:     3,
		PollInterval: 2 * time.Second,
		Backoff:      500 * time.Millisecond,
		ModalTimeout: 8 * time.Second,
	}
}

// Scraper checks per-store stock through the store-locator overlay.
type Scraper struct {
	Retry RetryPolicy

	// SuggestionTimeout bounds the wait for the locator autocomplete.
	SuggestionTimeout time.Duration
	// ListTimeout bounds the wait for the filtered store-card list.
	ListTimeout time.Duration
	// TypeDelay is the per-key delay while typing the search query.
	TypeDelay time.Duration
}

func NewScraper(retry RetryPolicy) *Scraper {
	return &Scraper{
		Retry:             retry,
		SuggestionTimeout: 5 * time.Second,
		ListTimeout:       5 * time.Second,
		TypeDelay:         25 * time.Millisecond,
	}
}

// OpenStoreSelector tries to open the store-locator overlay on the current
// product page. The page rehydrates its DOM intermittently, so triggers are
// re-located on every attempt and any error counts as attempt failure.
// Returns false after exhausting the retry policy; the page is then in an
// indeterminate state and callers must not assume the overlay is closed.
func (s *Scraper) OpenStoreSelector(ctx context.Context, page browser.Page) bool {
	for attempt := 1; attempt <= s.Retry.Attempts; attempt++ {
		log.Printf("[%s] attempt %d to open store selector", Source, attempt)

		opened, err := s.tryOpen(ctx, page)
		if err != nil {
			log.Printf("[%s] attempt %d failed: %v", Source, attempt, err)
			if err := page.Sleep(ctx, s.Retry.Backoff); err != nil {
				return false
			}
			continue
		}
		if opened {
			log.Printf("[%s] store selector opened", Source)
			return true
		}
	}
	log.Printf("[%s] failed to open store selector after %d attempts", Source, s.Retry.Attempts)
	return false
}

func (s *Scraper) tryOpen(ctx context.Context, page browser.Page) (bool, error) {
	n, err := page.Count(ctx, triggerSelector)
	if err != nil {
		return false, err
	}
	if n == 0 {
		log.Printf("[%s] no store-selector triggers found", Source)
		if err := page.Sleep(ctx, s.Retry.PollInterval); err != nil {
			return false, err
		}
		return false, nil
	}

	// Last trigger wins: the page renders stale duplicates above the live one.
	last := n - 1
	if err := page.ScrollIntoView(ctx, triggerSelector, last); err != nil {
		return false, err
	}
	if err := page.WaitVisible(ctx, triggerSelector, last, s.Retry.ModalTimeout); err != nil {
		return false, err
	}
	if err := page.Sleep(ctx, preClickSettle); err != nil {
		return false, err
	}
	if err := page.Click(ctx, triggerSelector, last, false); err != nil {
		return false, err
	}
	if err := page.WaitVisible(ctx, modalInputSelector, 0, s.Retry.ModalTimeout); err != nil {
		return false, fmt.Errorf("overlay input never appeared: %w", err)
	}
	return true, nil
}

// Resolve searches the opened overlay for searchText and returns the stock
// reading of the first card matching matchLabel. Every failure branch
// resolves to Unreachable and is logged with the raw text that failed, so
// markup drift shows up in the logs instead of as silent zeros.
func (s *Scraper) Resolve(ctx context.Context, page browser.Page, searchText, matchLabel string) models.Quantity {
	log.Printf("[%s] searching for %q using query %q", matchLabel, matchLabel, searchText)

	if err := page.Click(ctx, modalInputSelector, 0, false); err != nil {
		log.Printf("[%s] search input unusable: %v", matchLabel, err)
		return models.Unreachable
	}
	if err := page.Fill(ctx, modalInputSelector, 0, ""); err != nil {
		log.Printf("[%s] could not clear search input: %v", matchLabel, err)
		return models.Unreachable
	}
	if err := page.Type(ctx, modalInputSelector, 0, searchText, s.TypeDelay); err != nil {
		log.Printf("[%s] could not type query: %v", matchLabel, err)
		return models.Unreachable
	}
	if err := page.Sleep(ctx, postTypeSettle); err != nil {
		return models.Unreachable
	}

	// Suggestions render outside the overlay in a portal, and the first one
	// needs a hover before it accepts the click.
	if err := page.WaitVisible(ctx, suggestionSelector, 0, s.SuggestionTimeout); err != nil {
		log.Printf("[%s] autocomplete never appeared: %v", matchLabel, err)
		return models.Unreachable
	}
	if err := page.Hover(ctx, suggestionSelector, 0); err != nil {
		log.Printf("[%s] could not hover suggestion: %v", matchLabel, err)
		return models.Unreachable
	}
	if err := page.Sleep(ctx, hoverSettle); err != nil {
		return models.Unreachable
	}
	if err := page.Click(ctx, suggestionSelector, 0, true); err != nil {
		log.Printf("[%s] could not click suggestion: %v", matchLabel, err)
		return models.Unreachable
	}
	if err := page.Sleep(ctx, suggestionSettle); err != nil {
		return models.Unreachable
	}

	key := matchKey(matchLabel)

	if err := s.waitFilteredCards(ctx, page, key); err != nil {
		log.Printf("[%s] overlay never loaded filtered results: %v", matchLabel, err)
		return models.Unreachable
	}

	n, err := page.Count(ctx, cardSelector)
	if err != nil {
		log.Printf("[%s] could not count store cards: %v", matchLabel, err)
		return models.Unreachable
	}
	log.Printf("[%s] found %d store cards", matchLabel, n)

	for i := 0; i < n; i++ {
		name, ok, err := page.ChildText(ctx, cardSelector, i, cardNameSelector)
		if err != nil {
			log.Printf("[%s] could not read card %d: %v", matchLabel, i, err)
			return models.Unreachable
		}
		if !ok {
			log.Printf("[%s] card %d has no name element, skipping", matchLabel, i)
			continue
		}
		cardName := strings.TrimSpace(name)
		if !strings.Contains(strings.ToLower(cardName), key) {
			continue
		}

		// First matching card is authoritative.
		tag, ok, err := page.ChildText(ctx, cardSelector, i, stockTagSelector)
		if err != nil {
			log.Printf("[%s] could not read stock tag of %q: %v", matchLabel, cardName, err)
			return models.Unreachable
		}
		if !ok {
			log.Printf("[%s] store %q is missing its stock tag", matchLabel, cardName)
			return models.Unreachable
		}

		raw := strings.TrimSpace(tag)
		qty := ParseStockText(raw)
		switch {
		case qty == models.Unreachable:
			log.Printf("[%s] cannot parse stock text %q for %q", matchLabel, raw, cardName)
		case qty == models.OutOfStock:
			log.Printf("[%s] store %q explicitly out of stock", matchLabel, cardName)
		default:
			log.Printf("[%s] store %q stock parsed as %d", matchLabel, cardName, qty)
		}
		return qty
	}

	log.Printf("[%s] no card matched key %q", matchLabel, key)
	return models.Unreachable
}

// waitFilteredCards polls until at least one store card matching key has
// rendered, bounded by ListTimeout.
func (s *Scraper) waitFilteredCards(ctx context.Context, page browser.Page, key string) error {
	deadline := time.Now().Add(s.ListTimeout)
	for {
		n, err := page.Count(ctx, cardSelector)
		if err == nil {
			for i := 0; i < n; i++ {
				name, ok, err := page.ChildText(ctx, cardSelector, i, cardNameSelector)
				if err == nil && ok && strings.Contains(strings.ToLower(name), key) {
					return nil
				}
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %v waiting for a card matching %q", s.ListTimeout, key)
		}
		if err := page.Sleep(ctx, 250*time.Millisecond); err != nil {
			return err
		}
	}
}

// matchKey normalizes a store label into its match key: the portion before
// the first comma, lower-cased. "Richmond, BC" becomes "richmond".
func matchKey(label string) string {
	key, _, _ := strings.Cut(label, ",")
	return strings.ToLower(strings.TrimSpace(key))
}

var digitRun = regexp.MustCompile(`\d+`)

// ParseStockText turns a stock-tag text into a quantity. "out of stock" in
// any case is an explicit zero; otherwise the first run of digits is the
// count; anything else is unparsable and yields Unreachable.
func ParseStockText(text string) models.Quantity {
	t := strings.ToLower(strings.TrimSpace(text))
	if strings.Contains(t, "out of stock") {
		return models.OutOfStock
	}
	if m := digitRun.FindString(t); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil {
			return models.Unreachable
		}
		return models.Quantity(n)
	}
	return models.Unreachable
}
