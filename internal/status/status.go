// Package status maps allocation states to their presentation category.
package status

import (
	"errors"
	"fmt"

	"dhcpdash/pkg/models"
)

// ErrUnknownState is returned for a state code outside the defined enum.
// It signals protocol drift between the server and this client.
var ErrUnknownState = errors.New("unknown device state")

// Severity orders categories from healthy to critical
type Severity int

const (
	SeverityInactive Severity = iota
	SeverityOK
	SeverityWarning
	SeverityCritical
)

// Category is the presentation of a device state
type Category struct {
	Name     string   `json:"name"`
	Color    string   `json:"color"`
	Severity Severity `json:"severity"`
}

var (
	Amber   = Category{Name: "amber", Color: "#ffdb4d", Severity: SeverityWarning}
	Green   = Category{Name: "green", Color: "#009900", Severity: SeverityOK}
	Red     = Category{Name: "red", Color: "#990000", Severity: SeverityCritical}
	Neutral = Category{Name: "neutral-gray", Color: "#e6e6e6", Severity: SeverityInactive}
)

// Classify returns the category of state
func Classify(state models.DeviceState) (Category, error) {
	switch state {
	case models.Unbound:
		return Amber, nil
	case models.Bound:
		return Green, nil
	case models.Stale:
		return Red, nil
	case models.Stopped:
		return Neutral, nil
	}
	return Category{}, fmt.Errorf("%w: %d", ErrUnknownState, int(state))
}

// MustClassify is like Classify but panics on an unknown state
func MustClassify(state models.DeviceState) Category {
	c, err := Classify(state)
	if err != nil {
		panic(err)
	}
	return c
}
