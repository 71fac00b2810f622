package device

import "github.com/robotalks/bang.go/pkg/l0/msgs"

// Motor parameter defaults of the firmware.
const (
	DefaultCoeff            = 1
	DefaultTurnMaxSpeed     = 0.25
	DefaultMaxSpeed         = 0.5
	DefaultTicksPerRotation = 360
)

// DefaultMotorParams returns the parameters of a motor never configured.
func DefaultMotorParams(num uint8) msgs.ConfigMotor {
	return msgs.ConfigMotor{
		Num:              num,
		Coeff:            DefaultCoeff,
		TurnMaxSpeed:     DefaultTurnMaxSpeed,
		MaxSpeed:         DefaultMaxSpeed,
		TicksPerRotation: DefaultTicksPerRotation,
	}
}

// WithDefaults fills zero Coeff, speeds and TicksPerRotation with the
// firmware defaults.
func WithDefaults(c msgs.ConfigMotor) msgs.ConfigMotor {
	if c.Coeff == 0 {
		c.Coeff = DefaultCoeff
	}
	if c.TurnMaxSpeed == 0 {
		c.TurnMaxSpeed = DefaultTurnMaxSpeed
	}
	if c.MaxSpeed == 0 {
		c.MaxSpeed = DefaultMaxSpeed
	}
	if c.TicksPerRotation == 0 {
		c.TicksPerRotation = DefaultTicksPerRotation
	}
	return c
}
