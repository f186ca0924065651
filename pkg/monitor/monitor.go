// Package monitor sequences the whole check: per product, per store target,
// open the store selector, resolve a reading, then snapshot, diff, alert and
// export. Execution is strictly sequential over one shared browser page.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"time"

	"stockwatch/pkg/browser"
	"stockwatch/pkg/logger"
	"stockwatch/pkg/models"
	"stockwatch/pkg/snapshot"
)

// Scraper is the store-availability pipeline the monitor drives.
type Scraper interface {
	OpenStoreSelector(ctx context.Context, page browser.Page) bool
	Resolve(ctx context.Context, page browser.Page, searchText, matchLabel string) models.Quantity
}

// SnapshotStore persists per-product readings and serves back the newest
// pair for diffing.
type SnapshotStore interface {
	Save(dir string, readings models.Snapshot) (string, error)
	LoadLastTwo(dir string) (previous, latest models.Snapshot, err error)
}

// Notifier delivers increase digests. Errors are fatal for the product run.
type Notifier interface {
	Notify(increases map[string]models.Increase, productLabel, productTitle string) error
}

// History records every reading; failures there are logged, not fatal.
type History interface {
	Append(product string, at time.Time, readings models.Snapshot) error
}

// Prober does the optional static preflight of a product page.
type Prober interface {
	Title(url string) (string, error)
}

// Config is the monitor's explicit runtime configuration; it is never
// mutated after construction.
type Config struct {
	Products []models.Product
	Stores   []models.StoreTarget

	// Interval between passes in Run.
	Interval time.Duration
	// SettleDelay is the initial wait after first navigating to a product
	// page, giving client-side rendering time to finish.
	SettleDelay time.Duration
	// StorePause is the fixed pause between store targets, to avoid
	// hammering the site.
	StorePause time.Duration
	// ExportDir receives the per-product current-stock CSV files.
	ExportDir string
}

// storeSettle is the short wait after the defensive re-navigation before
// each store target.
const storeSettle = 800 * time.Millisecond

type Monitor struct {
	cfg       Config
	page      browser.Page
	scraper   Scraper
	snapshots SnapshotStore
	notifier  Notifier
	history   History
	prober    Prober

	now func() time.Time
}

func New(cfg Config, page browser.Page, scraper Scraper, snapshots SnapshotStore, notifier Notifier, history History, prober Prober) *Monitor {
	return &Monitor{
		cfg:       cfg,
		page:      page,
		scraper:   scraper,
		snapshots: snapshots,
		notifier:  notifier,
		history:   history,
		prober:    prober,
		now:       time.Now,
	}
}

// Run does an immediate pass, then repeats on the configured interval until
// the context is cancelled. Structural errors (persistence, mail delivery)
// stop the loop; scraping failures never do.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.CheckAll(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.CheckAll(ctx); err != nil {
				return err
			}
		}
	}
}

// CheckAll runs one pass over every configured product.
func (m *Monitor) CheckAll(ctx context.Context) error {
	for _, product := range m.cfg.Products {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.CheckProduct(ctx, product); err != nil {
			return err
		}
	}
	return nil
}

// CheckProduct scrapes all store targets for one product, then snapshots,
// diffs, alerts and exports. Per-store failures are recorded as Unreachable
// and never abort the pass.
func (m *Monitor) CheckProduct(ctx context.Context, product models.Product) error {
	log.Printf("checking product %s", product.Label)

	title := ""
	if m.prober != nil {
		t, err := m.prober.Title(product.URL)
		if err != nil {
			log.Printf("[%s] product page probe failed: %v", product.Label, err)
		} else {
			title = t
			log.Printf("[%s] product page title: %s", product.Label, title)
		}
	}

	if err := m.page.Navigate(ctx, product.URL); err != nil {
		log.Printf("[%s] initial navigation failed: %v", product.Label, err)
	} else if err := m.page.Sleep(ctx, m.cfg.SettleDelay); err != nil {
		return err
	}

	readings := make(models.Snapshot, len(m.cfg.Stores))
	for _, target := range m.cfg.Stores {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Printf("[%s] checking %s", product.Label, target.Label)

		// Re-navigate before every target to reset residual overlay state.
		if err := m.page.Navigate(ctx, product.URL); err != nil {
			log.Printf("[%s] navigation failed for %s: %v", product.Label, target.Label, err)
			readings[target.Label] = models.Unreachable
			continue
		}
		if err := m.page.Sleep(ctx, storeSettle); err != nil {
			return err
		}

		if !m.scraper.OpenStoreSelector(ctx, m.page) {
			log.Printf("[%s] skipping %s, store selector did not open", product.Label, target.Label)
			readings[target.Label] = models.Unreachable
			continue
		}

		qty := m.scraper.Resolve(ctx, m.page, target.SearchQuery, target.Label)
		readings[target.Label] = qty
		log.Printf("[%s] %s -> %s in stock", product.Label, target.Label, qty)

		if err := m.page.Sleep(ctx, m.cfg.StorePause); err != nil {
			return err
		}
	}

	if err := m.finishPass(product, title, readings); err != nil {
		return err
	}
	return nil
}

// finishPass persists readings and drives the diff/alert/export tail of a
// product check.
func (m *Monitor) finishPass(product models.Product, title string, readings models.Snapshot) error {
	path, err := m.snapshots.Save(product.SnapshotDir, readings)
	if err != nil {
		return fmt.Errorf("save snapshot for %s: %w", product.Label, err)
	}
	log.Printf("[%s] snapshot saved to %s", product.Label, path)

	previous, latest, err := m.snapshots.LoadLastTwo(product.SnapshotDir)
	switch {
	case errors.Is(err, models.ErrNoHistory):
		log.Printf("[%s] not enough snapshots to compare yet", product.Label)
	case err != nil:
		return fmt.Errorf("load snapshots for %s: %w", product.Label, err)
	default:
		increases := snapshot.Diff(previous, latest)
		m.logIncreases(product.Label, increases)
		if len(increases) > 0 {
			if err := m.notifier.Notify(increases, product.Label, title); err != nil {
				return err
			}
		}
	}

	exportPath := filepath.Join(m.cfg.ExportDir, fmt.Sprintf("current_stock_%s.csv", product.Label))
	if err := snapshot.ExportCurrent(exportPath, m.cfg.Stores, readings); err != nil {
		return fmt.Errorf("export current stock for %s: %w", product.Label, err)
	}

	if m.history != nil {
		if err := m.history.Append(product.Label, m.now(), readings); err != nil {
			log.Printf("[%s] history append failed: %v", product.Label, err)
		}
	}
	return nil
}

func (m *Monitor) logIncreases(label string, increases map[string]models.Increase) {
	if len(increases) == 0 {
		logger.Dedup("[%s] no new stock arrived", label)
		return
	}
	stores := make([]string, 0, len(increases))
	for store := range increases {
		stores = append(stores, store)
	}
	sort.Strings(stores)
	for _, store := range stores {
		inc := increases[store]
		log.Printf("[%s] new stock at %s: %d -> %d", label, store, inc.Old, inc.New)
	}
}
