package domain

import "strings"

var poStatusLabels = map[int]string{
	0: "Released",
	1: "Approved",
	2: "Declined",
	3: "Received",
	4: "Sent",
	5: "Arrived",
}

var poStatusCodes = map[string]int{
	"released": 0,
	"approved": 1,
	"declined": 2,
	"received": 3,
	"sent":     4,
	"arrived":  5,
}

// openPOStatuses are the statuses whose pending quantity is still inbound.
var openPOStatuses = map[int]bool{
	0: true,
	1: true,
	4: true,
}

// POStatusLabel returns a human-readable label for a PO status code.
func POStatusLabel(status int) string {
	if label, ok := poStatusLabels[status]; ok {
		return label
	}

	return "Draft"
}

// ParsePOStatus returns the status code for a given label (case-insensitive).
func ParsePOStatus(label string) (int, bool) {
	code, ok := poStatusCodes[strings.ToLower(strings.TrimSpace(label))]

	return code, ok
}

// IsOpenPOStatus reports whether a purchase order in the given status still
// contributes its pending quantity to the inventory position. Unknown labels
// are treated as open so a new upstream status never hides inbound stock.
func IsOpenPOStatus(label string) bool {
	code, ok := ParsePOStatus(label)
	if !ok {
		return true
	}

	return openPOStatuses[code]
}

// OpenPOStatusLabels lists the lowercase labels counted as open.
func OpenPOStatusLabels() []string {
	labels := make([]string, 0, len(openPOStatuses))
	for code := range openPOStatuses {
		labels = append(labels, strings.ToLower(poStatusLabels[code]))
	}

	return labels
}
