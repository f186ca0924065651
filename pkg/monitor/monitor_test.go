package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"stockwatch/pkg/browser"
	"stockwatch/pkg/models"
	"stockwatch/pkg/snapshot"
)

type nopPage struct {
	navigations []string
}

func (p *nopPage) Navigate(ctx context.Context, url string) error {
	p.navigations = append(p.navigations, url)
	return ctx.Err()
}
func (p *nopPage) Count(ctx context.Context, selector string) (int, error) { return 0, ctx.Err() }
func (p *nopPage) ScrollIntoView(ctx context.Context, selector string, index int) error {
	return ctx.Err()
}
func (p *nopPage) WaitVisible(ctx context.Context, selector string, index int, timeout time.Duration) error {
	return ctx.Err()
}
func (p *nopPage) Click(ctx context.Context, selector string, index int, force bool) error {
	return ctx.Err()
}
func (p *nopPage) Hover(ctx context.Context, selector string, index int) error { return ctx.Err() }
func (p *nopPage) Fill(ctx context.Context, selector string, index int, text string) error {
	return ctx.Err()
}
func (p *nopPage) Type(ctx context.Context, selector string, index int, text string, keyDelay time.Duration) error {
	return ctx.Err()
}
func (p *nopPage) InnerText(ctx context.Context, selector string, index int) (string, bool, error) {
	return "", false, ctx.Err()
}
func (p *nopPage) ChildText(ctx context.Context, selector string, index int, childSelector string) (string, bool, error) {
	return "", false, ctx.Err()
}
func (p *nopPage) Sleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

// scriptedScraper replays per-target outcomes. Open failures are keyed by
// position in the store-target sequence, readings by match label.
type scriptedScraper struct {
	openFailures map[int]bool
	readings     map[string]models.Quantity
	openCalls    int
	resolved     []string
}

func (s *scriptedScraper) OpenStoreSelector(ctx context.Context, page browser.Page) bool {
	fail := s.openFailures[s.openCalls]
	s.openCalls++
	return !fail
}

func (s *scriptedScraper) Resolve(ctx context.Context, page browser.Page, searchText, matchLabel string) models.Quantity {
	s.resolved = append(s.resolved, matchLabel)
	return s.readings[matchLabel]
}

type recordingNotifier struct {
	calls []map[string]models.Increase
	err   error
}

func (n *recordingNotifier) Notify(increases map[string]models.Increase, productLabel, productTitle string) error {
	n.calls = append(n.calls, increases)
	return n.err
}

func newTestMonitor(t *testing.T, scraper Scraper, notifier Notifier) (*Monitor, models.Product, *snapshot.Store) {
	t.Helper()
	base := t.TempDir()
	product := models.Product{
		Label:       "Car Culture",
		URL:         "https://example.com/pdp/0508182p.html",
		SnapshotDir: filepath.Join(base, "history"),
	}
	cfg := Config{
		Products: []models.Product{product},
		Stores: []models.StoreTarget{
			{Label: "Richmond, BC", SearchQuery: "Richmond, BC"},
			{Label: "Burnaby South, BC", SearchQuery: "Southeast Marine Drive, Burnaby, BC"},
		},
		Interval:  time.Hour,
		ExportDir: base,
	}

	store := snapshot.NewStore()
	clock := time.Date(2026, 8, 30, 7, 0, 0, 0, time.UTC)
	store.Now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	return New(cfg, &nopPage{}, scraper, store, notifier, nil, nil), product, store
}

func TestCheckProductRecordsUnreachableOnOpenFailure(t *testing.T) {
	scraper := &scriptedScraper{
		// The first target's overlay never opens, on either pass.
		openFailures: map[int]bool{0: true, 2: true},
		readings:     map[string]models.Quantity{"Burnaby South, BC": 4},
	}
	notifier := &recordingNotifier{}
	m, product, store := newTestMonitor(t, scraper, notifier)

	if err := m.CheckProduct(context.Background(), product); err != nil {
		t.Fatalf("CheckProduct failed: %v", err)
	}

	// The failed target must not abort the pass: the second one resolves.
	if !reflect.DeepEqual(scraper.resolved, []string{"Burnaby South, BC"}) {
		t.Errorf("resolved targets = %v", scraper.resolved)
	}

	// Saved snapshot must carry the sentinel for the failed target. Reading
	// it back needs a pair, so run a second identical pass.
	if err := m.CheckProduct(context.Background(), product); err != nil {
		t.Fatalf("second CheckProduct failed: %v", err)
	}
	_, latest, err := store.LoadLastTwo(product.SnapshotDir)
	if err != nil {
		t.Fatalf("LoadLastTwo failed: %v", err)
	}
	if latest["Richmond, BC"] != models.Unreachable {
		t.Errorf("Richmond reading = %v, want unreachable", latest["Richmond, BC"])
	}
	if latest["Burnaby South, BC"] != 4 {
		t.Errorf("Burnaby reading = %v, want 4", latest["Burnaby South, BC"])
	}
}

func TestFirstPassSendsNoAlert(t *testing.T) {
	scraper := &scriptedScraper{readings: map[string]models.Quantity{
		"Richmond, BC":      2,
		"Burnaby South, BC": 0,
	}}
	notifier := &recordingNotifier{}
	m, product, _ := newTestMonitor(t, scraper, notifier)

	if err := m.CheckProduct(context.Background(), product); err != nil {
		t.Fatalf("CheckProduct failed: %v", err)
	}
	if len(notifier.calls) != 0 {
		t.Errorf("notifier invoked %d times on first pass, want 0", len(notifier.calls))
	}
}

func TestIncreaseTriggersExactlyOneAlert(t *testing.T) {
	scraper := &scriptedScraper{readings: map[string]models.Quantity{
		"Richmond, BC":      2,
		"Burnaby South, BC": 0,
	}}
	notifier := &recordingNotifier{}
	m, product, _ := newTestMonitor(t, scraper, notifier)

	if err := m.CheckProduct(context.Background(), product); err != nil {
		t.Fatal(err)
	}

	scraper.readings["Richmond, BC"] = 5
	if err := m.CheckProduct(context.Background(), product); err != nil {
		t.Fatal(err)
	}

	if len(notifier.calls) != 1 {
		t.Fatalf("notifier invoked %d times, want exactly 1", len(notifier.calls))
	}
	want := map[string]models.Increase{
		"Richmond, BC": {StoreLabel: "Richmond, BC", Old: 2, New: 5},
	}
	if !reflect.DeepEqual(notifier.calls[0], want) {
		t.Errorf("notified increases = %v, want %v", notifier.calls[0], want)
	}
}

func TestUnchangedReadingsSendNoAlert(t *testing.T) {
	scraper := &scriptedScraper{readings: map[string]models.Quantity{
		"Richmond, BC":      2,
		"Burnaby South, BC": 0,
	}}
	notifier := &recordingNotifier{}
	m, product, _ := newTestMonitor(t, scraper, notifier)

	for i := 0; i < 2; i++ {
		if err := m.CheckProduct(context.Background(), product); err != nil {
			t.Fatal(err)
		}
	}
	if len(notifier.calls) != 0 {
		t.Errorf("notifier invoked %d times for unchanged readings, want 0", len(notifier.calls))
	}
}

func TestDeliveryFailureIsFatalForProduct(t *testing.T) {
	scraper := &scriptedScraper{readings: map[string]models.Quantity{
		"Richmond, BC":      2,
		"Burnaby South, BC": 0,
	}}
	notifier := &recordingNotifier{err: errors.New("535 authentication failed")}
	m, product, _ := newTestMonitor(t, scraper, notifier)

	if err := m.CheckProduct(context.Background(), product); err != nil {
		t.Fatal(err)
	}

	scraper.readings["Richmond, BC"] = 9
	if err := m.CheckProduct(context.Background(), product); err == nil {
		t.Fatal("expected delivery failure to abort the product run")
	}
}

func TestCheckProductWritesCurrentStockExport(t *testing.T) {
	scraper := &scriptedScraper{readings: map[string]models.Quantity{
		"Richmond, BC":      3,
		"Burnaby South, BC": models.Unreachable,
	}}
	notifier := &recordingNotifier{}
	m, product, _ := newTestMonitor(t, scraper, notifier)

	if err := m.CheckProduct(context.Background(), product); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(m.cfg.ExportDir, "current_stock_Car Culture.csv"))
	if err != nil {
		t.Fatalf("export file missing: %v", err)
	}
	want := "Store Name,Stock\n\"Richmond, BC\",3\n\"Burnaby South, BC\",-1\n"
	if string(data) != want {
		t.Errorf("export content:\n%s\nwant:\n%s", data, want)
	}
}
