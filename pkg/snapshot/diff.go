package snapshot

import "stockwatch/pkg/models"

// Diff returns the stores whose stock strictly increased from old to latest.
// Unreachable readings never participate: a store is skipped when its latest
// value is unknown, or when it is absent from old or unknown there. Pure and
// deterministic over its inputs.
func Diff(old, latest models.Snapshot) map[string]models.Increase {
	increases := make(map[string]models.Increase)
	for store, newQty := range latest {
		if !newQty.Known() {
			continue
		}
		oldQty, ok := old[store]
		if !ok || !oldQty.Known() {
			continue
		}
		if newQty > oldQty {
			increases[store] = models.Increase{StoreLabel: store, Old: oldQty, New: newQty}
		}
	}
	return increases
}
