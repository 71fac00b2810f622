package config

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/bang.go/pkg/l0/comm"
	"github.com/robotalks/bang.go/pkg/l0/device"
	"github.com/robotalks/bang.go/pkg/l0/msgs"
)

// MotorConfig is a [[motor]] table. Zero coeff, speeds and ticks take
// the firmware defaults.
type MotorConfig struct {
	Num              uint8   `toml:"num"`
	Radius           float32 `toml:"radius"`
	AngleDegrees     int32   `toml:"angle_degrees"`
	InterCoeff       float32 `toml:"inter_coeff"`
	PropCoeff        float32 `toml:"prop_coeff"`
	DiffCoeff        float32 `toml:"diff_coeff"`
	Coeff            float32 `toml:"coeff"`
	TurnMaxSpeed     float32 `toml:"turn_max_speed"`
	MaxSpeed         float32 `toml:"max_speed"`
	TicksPerRotation int32   `toml:"ticks_per_rotation"`

	Pinout *PinoutConfig `toml:"pinout"`
}

// PinoutConfig assigns the shield pins of a motor.
type PinoutConfig struct {
	EncoderA int8 `toml:"encoder_a"`
	EncoderB int8 `toml:"encoder_b"`
	Enable   int8 `toml:"enable"`
	Fwd      int8 `toml:"fwd"`
	Back     int8 `toml:"back"`
}

// ServoConfig is a [[servo]] table.
type ServoConfig struct {
	Num           int16 `toml:"num"`
	Channel       int16 `toml:"channel"`
	Speed         int16 `toml:"speed"`
	MinVal        int16 `toml:"min_val"`
	MaxVal        int16 `toml:"max_val"`
	StartPercents uint8 `toml:"start_percents"`
}

// Message converts to ConfigMotor.
func (m *MotorConfig) Message() msgs.ConfigMotor {
	return device.WithDefaults(msgs.ConfigMotor{
		Num:              m.Num,
		Radius:           m.Radius,
		AngleDegrees:     m.AngleDegrees,
		InterCoeff:       m.InterCoeff,
		PropCoeff:        m.PropCoeff,
		DiffCoeff:        m.DiffCoeff,
		Coeff:            m.Coeff,
		TurnMaxSpeed:     m.TurnMaxSpeed,
		MaxSpeed:         m.MaxSpeed,
		TicksPerRotation: m.TicksPerRotation,
	})
}

// Messages returns the configuration messages for the device in the
// layouts of registry. Version1 carries the pinout in ConfigMotor.
func (c *Config) Messages(registry *msgs.Registry) []msgs.Message {
	var result []msgs.Message
	for i := range c.Motors {
		m := &c.Motors[i]
		motor := m.Message()
		if registry.Version() == msgs.Version1 {
			msg := &msgs.ConfigMotorV1{ConfigMotor: motor}
			if p := m.Pinout; p != nil {
				msg.EncoderA, msg.EncoderB, msg.Enable, msg.Fwd, msg.Back = p.EncoderA, p.EncoderB, p.Enable, p.Fwd, p.Back
			}
			result = append(result, msg)
			continue
		}
		if p := m.Pinout; p != nil {
			result = append(result, &msgs.ConfigPinout{
				Num:      int8(m.Num),
				EncoderA: p.EncoderA,
				EncoderB: p.EncoderB,
				Enable:   p.Enable,
				Fwd:      p.Fwd,
				Back:     p.Back,
			})
		}
		result = append(result, &motor)
	}
	if _, ok := registry.Lookup(msgs.ConfigServoTypeID); ok {
		for _, s := range c.Servos {
			result = append(result, &msgs.ConfigServo{
				Num:           s.Num,
				Channel:       s.Channel,
				Speed:         s.Speed,
				MinVal:        s.MinVal,
				MaxVal:        s.MaxVal,
				StartPercents: s.StartPercents,
			})
		}
	} else if len(c.Servos) > 0 {
		glog.Warningf("servos not configurable in protocol version %d", registry.Version())
	}
	return result
}

// Push sends the configuration messages, each waiting for its ack, then
// blinks the LED if asked. It stops at the first failure.
func (c *Config) Push(ctx context.Context, s comm.Sender, registry *msgs.Registry) error {
	for _, msg := range c.Messages(registry) {
		if err := c.do(ctx, s, msg); err != nil {
			return fmt.Errorf("push %s: %w", registry.Format(msg), err)
		}
		glog.V(3).Infof("pushed %s", registry.Format(msg))
	}
	if c.Device.Blink {
		if _, ok := registry.Lookup(msgs.TestTypeID); ok {
			for _, led := range []uint8{1, 0, 1} {
				if err := s.SendMsg(&msgs.Test{Led: led}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (c *Config) do(ctx context.Context, s comm.Sender, msg msgs.Message) error {
	if timeout := c.Device.ConfigTimeout.Duration; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return comm.Do(ctx, s, msg)
}
