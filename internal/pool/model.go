// Package pool derives the utilization ring shown for the address pool.
package pool

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"dhcpdash/pkg/models"
)

const (
	// PadAngle separates the two ring segments, in radians
	PadAngle = 0.02

	// NeutralColor is always used for the bound segment
	NeutralColor = "#dddddd"

	// Caption is shown under the ratio label
	Caption = "available"

	fullTurn = 2 * math.Pi
)

var (
	scarce    = colorful.MustParseHex("#ff0000")
	plentiful = colorful.MustParseHex("#008000")
)

// Segment is one arc of the ring
type Segment struct {
	Value      int     `json:"value"`
	StartAngle float64 `json:"startAngle"`
	EndAngle   float64 `json:"endAngle"`
	PadAngle   float64 `json:"padAngle"`
}

// Span returns the angular width of the segment
func (s Segment) Span() float64 {
	return s.EndAngle - s.StartAngle
}

// ChartView is the derived ring. Segments and Colors are indexed bound
// first, available second; angles are laid out largest first.
type ChartView struct {
	Segments   [2]Segment          `json:"segments"`
	Colors     [2]string           `json:"colors"`
	RatioLabel string              `json:"ratioLabel"`
	LabelColor string              `json:"labelColor"`
	Caption    string              `json:"caption"`
	Empty      bool                `json:"empty"`
	Snapshot   models.PoolSnapshot `json:"snapshot"`
}

// Ratio returns available/total, or false when the pool is empty
func (v ChartView) Ratio() (float64, bool) {
	total := v.Snapshot.Total()
	if total <= 0 {
		return 0, false
	}
	return float64(v.Snapshot.Available) / float64(total), true
}

// Derive computes the ring for a snapshot. An empty pool yields a neutral
// ring with zero-width segments.
func Derive(snap models.PoolSnapshot) ChartView {
	total := snap.Total()
	view := ChartView{
		RatioLabel: fmt.Sprintf("%d/%d", snap.Available, total),
		Caption:    Caption,
		Snapshot:   snap,
	}

	if total <= 0 {
		view.Empty = true
		view.Segments = [2]Segment{{}, {}}
		view.Colors = [2]string{NeutralColor, NeutralColor}
		view.LabelColor = NeutralColor
		return view
	}

	values := [2]int{snap.Bound, snap.Available}
	k := (fullTurn - float64(len(values))*PadAngle) / float64(total)
	start := 0.0
	for _, i := range layoutOrder(values) {
		v := values[i]
		end := start + PadAngle
		if v > 0 {
			end += float64(v) * k
		}
		view.Segments[i] = Segment{Value: v, StartAngle: start, EndAngle: end, PadAngle: PadAngle}
		view.Colors[i] = scaleColor(v, total)
		start = end
	}

	view.Colors[0] = NeutralColor
	view.LabelColor = view.Colors[1]
	return view
}

// layoutOrder returns the indexes of values by descending value, ties in
// input order. The largest segment starts at angle zero.
func layoutOrder(values [2]int) [2]int {
	if values[1] > values[0] {
		return [2]int{1, 0}
	}
	return [2]int{0, 1}
}

// scaleColor interpolates red to green over [0, total]
func scaleColor(count, total int) string {
	t := float64(count) / float64(total)
	return scarce.BlendRgb(plentiful, t).Clamped().Hex()
}
