package snapshot

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"stockwatch/pkg/models"
)

// ExportCurrent overwrites path with the latest readings as a two-column
// CSV, one row per configured store target in configuration order. Targets
// with no recorded reading are exported as unreachable.
func ExportCurrent(path string, targets []models.StoreTarget, readings models.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Store Name", "Stock"}); err != nil {
		f.Close()
		return fmt.Errorf("write export header: %w", err)
	}
	for _, t := range targets {
		qty, ok := readings[t.Label]
		if !ok {
			qty = models.Unreachable
		}
		if err := w.Write([]string{t.Label, strconv.Itoa(int(qty))}); err != nil {
			f.Close()
			return fmt.Errorf("write export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush export: %w", err)
	}
	return f.Close()
}
