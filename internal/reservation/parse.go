// Package reservation submits operator-entered hardware addresses for
// reservation and tracks the input surface they are typed into.
package reservation

import (
	"strings"

	"dhcpdash/pkg/models"
)

// Parse splits raw input into one address token per line. Tokens are kept
// verbatim, blank lines included; the server validates them.
func Parse(raw string) models.ReservationBatch {
	return models.ReservationBatch{Addresses: strings.Split(raw, "\n")}
}
