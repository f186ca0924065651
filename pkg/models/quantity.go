package models

import "strconv"

// Quantity is a per-store stock reading. Non-negative values are real stock
// levels; Unreachable marks a store whose stock could not be determined
// (modal never opened, no matching card, unparsable markup). It encodes as a
// plain integer in JSON, so snapshot files stay a flat store→number mapping.
type Quantity int

const (
	// Unreachable means the check failed; it is never a real stock level and
	// must not be compared against one.
	Unreachable Quantity = -1

	// OutOfStock is an explicit zero reading from the store card.
	OutOfStock Quantity = 0
)

// Known reports whether q is a real stock level rather than a failed check.
func (q Quantity) Known() bool {
	return q >= 0
}

func (q Quantity) String() string {
	if q == Unreachable {
		return "unreachable"
	}
	return strconv.Itoa(int(q))
}
