package sim

import (
	"math"
	"time"

	"github.com/robotalks/bang.go/pkg/l0/device"
	"github.com/robotalks/bang.go/pkg/l0/msgs"
	"github.com/robotalks/bang.go/pkg/nav"
)

// speeds below this are treated as a stop
const minSpeed = 0.01

// Motor simulates a motor with a quadrature encoder. The simulated
// speed follows the target immediately, speed control is not modeled.
// Speeds are in meters per second and Radius is the distance in
// millimeters travelled per rotation.
type Motor struct {
	Params msgs.ConfigMotor
	Pid    msgs.Pid

	angle   nav.Angle
	tick    func(forward bool)
	target  float64
	stopped bool
	residue float64
}

// NewMotor creates a Motor emitting encoder ticks to tick.
func NewMotor(num uint8, tick func(forward bool)) *Motor {
	m := &Motor{tick: tick, stopped: true}
	m.SetParams(device.DefaultMotorParams(num))
	return m
}

// SetParams applies a ConfigMotor.
func (m *Motor) SetParams(params msgs.ConfigMotor) {
	m.Params = params
	m.angle = nav.AngleFromDegrees(float64(params.AngleDegrees))
}

// SpeedCallback sets the target speed from the platform velocity.
func (m *Motor) SpeedCallback(x, y, turn float64) {
	spd := m.angle.Cos()*x*float64(m.Params.MaxSpeed) + m.angle.Sin()*y*float64(m.Params.MaxSpeed)
	spd += turn * float64(m.Params.TurnMaxSpeed)
	if -minSpeed < spd && spd < minSpeed {
		m.target, m.stopped = 0, true
		return
	}
	m.target, m.stopped = spd, false
}

// Speed returns the target speed, 0 when stopped.
func (m *Motor) Speed() float64 {
	return m.target
}

// Stopped tells if the motor is stopped.
func (m *Motor) Stopped() bool {
	return m.stopped
}

// Step advances the motor by dt and emits the encoder ticks.
func (m *Motor) Step(dt time.Duration) int {
	if m.stopped || m.Params.Radius == 0 || m.Params.TicksPerRotation == 0 {
		return 0
	}
	coeff := float64(m.Params.Coeff)
	if coeff == 0 {
		coeff = 1
	}
	mm := m.target * 1000 * dt.Seconds()
	m.residue += mm / coeff * float64(m.Params.TicksPerRotation) / float64(m.Params.Radius)
	ticks := math.Trunc(m.residue)
	m.residue -= ticks
	n := int(ticks)
	for i := 0; i < n; i++ {
		m.tick(true)
	}
	for i := 0; i > n; i-- {
		m.tick(false)
	}
	return n
}
