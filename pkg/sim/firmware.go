// Package sim simulates the firmware of a motor board speaking the link
// protocol, so hosts can be run without hardware.
package sim

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/bang.go/pkg/l0/comm"
	"github.com/robotalks/bang.go/pkg/l0/device"
	"github.com/robotalks/bang.go/pkg/l0/msgs"
)

// DefaultOdomInterval is the period of Odom reports.
const DefaultOdomInterval = 100 * time.Millisecond

// Firmware is a simulated board. Like the real one it's driven by a
// single loop and not safe for concurrent use.
type Firmware struct {
	// OdomInterval is the period of Odom reports.
	OdomInterval time.Duration
	// Echo replies an Echo for every received message.
	Echo bool
	// Now is the clock, time.Now if nil.
	Now func() time.Time

	link      *comm.Link
	encoders  *device.EncoderTable
	motors    [device.MaxMotors]*Motor
	odometers [device.MaxMotors]device.Odometer
	pinouts   map[int8]msgs.ConfigPinout
	servos    map[int16]*Servo
	pins      map[int8]int8
	led       bool
	lastStep  time.Time
	lastOdom  time.Time
}

// Servo is the state of a configured servo.
type Servo struct {
	Config msgs.ConfigServo
	Pos    int16
}

// NewFirmware creates a Firmware talking over rw. Reads from rw should
// time out, otherwise motors only advance when data arrives.
func NewFirmware(rw io.ReadWriter) *Firmware {
	f := &Firmware{
		OdomInterval: DefaultOdomInterval,
		encoders:     device.NewEncoderTable(device.MaxMotors),
		pinouts:      make(map[int8]msgs.ConfigPinout),
		servos:       make(map[int16]*Servo),
		pins:         make(map[int8]int8),
	}
	for i := range f.motors {
		tick, err := f.encoders.Handler(i)
		if err != nil {
			panic(err)
		}
		f.motors[i] = NewMotor(uint8(i), tick)
		f.odometers[i] = device.Odometer{Encoders: f.encoders, Index: i, Params: f.motors[i].Params}
	}
	f.link = comm.NewLink(rw, comm.DefaultLinkFrameSize, msgs.V2, &comm.LogHandler{
		Handler: &comm.HandlerFuncs{Message: f.handleMessage},
		Prefix:  "sim: ",
	})
	return f
}

// Link returns the underlying Link.
func (f *Firmware) Link() *comm.Link {
	return f.link
}

// Motor returns motor num.
func (f *Firmware) Motor(num int) *Motor {
	return f.motors[num]
}

// Servo returns a configured servo.
func (f *Firmware) Servo(num int16) (*Servo, bool) {
	s, ok := f.servos[num]
	return s, ok
}

// Pinout returns the pinout of motor num.
func (f *Firmware) Pinout(num int8) (msgs.ConfigPinout, bool) {
	p, ok := f.pinouts[num]
	return p, ok
}

// Led returns the state of the LED.
func (f *Firmware) Led() bool {
	return f.led
}

// SetPin sets the level of a digital pin reported by ReadPin.
func (f *Firmware) SetPin(pin, value int8) {
	f.pins[pin] = value
}

func (f *Firmware) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// Run is the main loop. It returns when ctx is done or the transport fails.
func (f *Firmware) Run(ctx context.Context) error {
	f.Reset()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := f.link.Poll(ctx); err != nil {
			return err
		}
		if err := f.Step(); err != nil {
			return err
		}
	}
}

// Reset restarts the clocks and skips encoder ticks accumulated so far.
func (f *Firmware) Reset() {
	f.lastStep = f.now()
	f.lastOdom = f.lastStep
	for i := range f.odometers {
		f.odometers[i].Reset()
	}
}

// Step advances the motors to now and reports odometry when due.
func (f *Firmware) Step() error {
	now := f.now()
	if dt := now.Sub(f.lastStep); dt > 0 {
		for _, m := range f.motors {
			m.Step(dt)
		}
		f.lastStep = now
	}
	interval := f.OdomInterval
	if interval <= 0 {
		interval = DefaultOdomInterval
	}
	if now.Sub(f.lastOdom) < interval {
		return nil
	}
	f.lastOdom = now
	for i := range f.odometers {
		odom := f.odometers[i].Sample()
		if odom.DDistMM == 0 {
			continue
		}
		if err := f.link.SendMsg(odom); err != nil {
			return err
		}
	}
	return nil
}

func (f *Firmware) handleMessage(ctx context.Context, pkt *comm.Packet, msg msgs.Message) {
	switch m := msg.(type) {
	case *msgs.Move:
		for _, motor := range f.motors {
			motor.SpeedCallback(float64(m.X), float64(m.Y), float64(m.Theta))
		}
	case *msgs.ConfigMotor:
		if int(m.Num) >= len(f.motors) {
			f.reject(pkt, "motor %d", m.Num)
			return
		}
		f.motors[m.Num].SetParams(*m)
		f.odometers[m.Num].Params = *m
	case *msgs.ConfigPinout:
		if m.Num < 0 || int(m.Num) >= len(f.motors) {
			f.reject(pkt, "motor %d", m.Num)
			return
		}
		f.pinouts[m.Num] = *m
	case *msgs.Pid:
		if m.Motor < 0 || int(m.Motor) >= len(f.motors) {
			f.reject(pkt, "motor %d", m.Motor)
			return
		}
		f.motors[m.Motor].Pid = *m
	case *msgs.ConfigServo:
		f.servos[m.Num] = &Servo{Config: *m, Pos: servoPos(m, m.StartPercents)}
	case *msgs.Servo:
		s, ok := f.servos[m.Servo]
		if !ok {
			f.reject(pkt, "servo %d not configured", m.Servo)
			return
		}
		s.Pos = m.Pos
	case *msgs.Test:
		f.led = m.Led != 0
	case *msgs.ReadPin:
		value, ok := f.pins[m.Pin]
		if !ok && m.Pullup != 0 {
			value = 1
		}
		f.reply(&msgs.ReadPin{Pin: m.Pin, Value: value, Pullup: m.Pullup})
	}
	if f.Echo {
		f.reply(&msgs.Echo{Type: pkt.Type, Size: uint32(len(pkt.Data))})
	}
}

func (f *Firmware) reply(msg msgs.Message) {
	if err := f.link.SendMsg(msg); err != nil {
		glog.Warningf("sim: reply %T: %v", msg, err)
	}
}

func (f *Firmware) reject(pkt *comm.Packet, format string, args ...interface{}) {
	glog.Warningf("sim: %s ignored: %s", pkt, fmt.Sprintf(format, args...))
}

// servoPos maps a percentage to the PWM range of the servo.
func servoPos(c *msgs.ConfigServo, percents uint8) int16 {
	if percents > 100 {
		percents = 100
	}
	return c.MinVal + int16((int32(c.MaxVal)-int32(c.MinVal))*int32(percents)/100)
}
