package device

import (
	"math"

	"github.com/robotalks/bang.go/pkg/l0/msgs"
)

// Odometer turns encoder ticks of one motor into Odom reports.
type Odometer struct {
	Encoders *EncoderTable
	Index    int
	Params   msgs.ConfigMotor

	last uint32
}

// Reset skips the ticks accumulated so far.
func (o *Odometer) Reset() {
	o.last = o.Encoders.Read(o.Index)
}

// distance converts ticks to millimeters.
func (o *Odometer) distance(ticks int32) float64 {
	if o.Params.TicksPerRotation == 0 {
		return 0
	}
	coeff := float64(o.Params.Coeff)
	if coeff == 0 {
		coeff = 1
	}
	return float64(ticks) * float64(o.Params.Radius) / float64(o.Params.TicksPerRotation) * coeff
}

// Sample consumes the ticks since the last sample into an Odom report.
// The distance saturates at the range of the field.
func (o *Odometer) Sample() *msgs.Odom {
	d := math.Round(o.distance(o.Encoders.Delta(o.Index, &o.last)))
	if d > math.MaxInt16 {
		d = math.MaxInt16
	} else if d < math.MinInt16 {
		d = math.MinInt16
	}
	return &msgs.Odom{Num: int8(o.Index), DDistMM: int16(d)}
}
