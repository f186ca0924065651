package models

import "errors"

// ErrNoHistory is returned when a snapshot directory holds fewer than two
// snapshots, so there is nothing to diff yet.
var ErrNoHistory = errors.New("not enough snapshots to compare")

// Product is one watched product page. Loaded from the watch file and never
// mutated at runtime.
type Product struct {
	Label       string `json:"label"`
	URL         string `json:"url"`
	SnapshotDir string `json:"snapshot_dir"`
}

// StoreTarget is one store location to check. Label is the display and match
// key (typically "City, Region"); SearchQuery is what gets typed into the
// store-locator search box.
type StoreTarget struct {
	Label       string `json:"label"`
	SearchQuery string `json:"search_query"`
}

// StockReading is the result of checking one store target.
type StockReading struct {
	StoreLabel string   `json:"store_label"`
	Quantity   Quantity `json:"quantity"`
}

// Snapshot maps store label to quantity for one product at one point in
// time. The timestamp lives in the snapshot filename. Immutable once written.
type Snapshot map[string]Quantity

// Increase records that a store's stock rose between two consecutive
// snapshots. Both values are real stock levels, never Unreachable.
type Increase struct {
	StoreLabel string   `json:"store_label"`
	Old        Quantity `json:"old"`
	New        Quantity `json:"new"`
}
