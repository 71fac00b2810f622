package sim

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/bang.go/pkg/l0/comm"
	"github.com/robotalks/bang.go/pkg/l0/device"
	"github.com/robotalks/bang.go/pkg/l0/msgs"
	"github.com/robotalks/bang.go/pkg/l0/slip"
	"github.com/robotalks/bang.go/pkg/l0/transport"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

type firmwareEnv struct {
	t     *testing.T
	out   bytes.Buffer
	clock fakeClock
	fw    *Firmware
}

func newFirmwareEnv(t *testing.T) *firmwareEnv {
	env := &firmwareEnv{t: t, clock: fakeClock{now: time.Unix(1000, 0)}}
	env.fw = NewFirmware(&env.out)
	env.fw.Now = env.clock.Now
	env.fw.Reset()
	return env
}

func (env *firmwareEnv) send(msg msgs.Message, flags comm.Flags) {
	payload, err := msgs.V2.Marshal(msg)
	require.NoError(env.t, err)
	pkt := &comm.Packet{ID: 7, Type: msg.TypeID(), Flags: flags, Data: payload}
	for _, b := range pkt.Bytes() {
		env.fw.Link().Feed(context.Background(), b)
	}
}

func (env *firmwareEnv) advance(d time.Duration) {
	env.clock.now = env.clock.now.Add(d)
	require.NoError(env.t, env.fw.Step())
}

// received decodes everything written by the firmware, acks excluded.
func (env *firmwareEnv) received() []msgs.Message {
	frames, err := slip.DecodeAll(env.out.Bytes())
	require.NoError(env.t, err)
	env.out.Reset()
	var result []msgs.Message
	for _, frame := range frames {
		pkt, err := comm.DecodePacket(frame)
		require.NoError(env.t, err)
		if pkt.IsAck() {
			continue
		}
		msg, _, err := msgs.V2.Decode(pkt.Type, pkt.Data)
		require.NoError(env.t, err)
		result = append(result, msg)
	}
	return result
}

func (env *firmwareEnv) acks() []uint32 {
	frames, err := slip.DecodeAll(env.out.Bytes())
	require.NoError(env.t, err)
	var ids []uint32
	for _, frame := range frames {
		if id, err := comm.DecodeAck(frame); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func motorConfig(num uint8) *msgs.ConfigMotor {
	c := device.DefaultMotorParams(num)
	c.Radius = 100
	return &c
}

func TestFirmwareMoveReportsOdom(t *testing.T) {
	env := newFirmwareEnv(t)
	env.send(motorConfig(0), comm.FlagRequest)
	require.Equal(t, []uint32{7}, env.acks())
	env.out.Reset()

	env.send(&msgs.Move{X: 1}, 0)
	require.InDelta(t, 0.5, env.fw.Motor(0).Speed(), 1e-9)
	require.False(t, env.fw.Motor(0).Stopped())

	env.advance(50 * time.Millisecond)
	require.Empty(t, env.received())
	env.advance(50 * time.Millisecond)
	require.Equal(t, []msgs.Message{&msgs.Odom{Num: 0, DDistMM: 50}}, env.received())

	env.send(&msgs.Move{}, 0)
	require.True(t, env.fw.Motor(0).Stopped())
	env.advance(100 * time.Millisecond)
	require.Empty(t, env.received())
}

func TestFirmwareConfig(t *testing.T) {
	env := newFirmwareEnv(t)
	env.send(&msgs.ConfigPinout{Num: 1, EncoderA: 2, EncoderB: 3, Enable: 4, Fwd: 5, Back: 6}, 0)
	env.send(&msgs.Pid{Motor: 2, P: 10, I: 1, D: 2}, 0)
	env.send(&msgs.ConfigServo{Num: 4, MinVal: 100, MaxVal: 300, StartPercents: 50}, 0)
	env.send(&msgs.Test{Led: 1}, 0)

	pinout, ok := env.fw.Pinout(1)
	require.True(t, ok)
	require.Equal(t, int8(6), pinout.Back)
	require.Equal(t, int32(10), env.fw.Motor(2).Pid.P)
	servo, ok := env.fw.Servo(4)
	require.True(t, ok)
	require.Equal(t, int16(200), servo.Pos)
	require.True(t, env.fw.Led())

	env.send(&msgs.Servo{Servo: 4, Pos: 150}, 0)
	require.Equal(t, int16(150), servo.Pos)
	env.send(&msgs.Test{}, 0)
	require.False(t, env.fw.Led())
}

func TestFirmwareRejectsUnknownTargets(t *testing.T) {
	env := newFirmwareEnv(t)
	env.send(&msgs.ConfigPinout{Num: 3}, comm.FlagRequest)
	env.send(&msgs.Servo{Servo: 1, Pos: 10}, comm.FlagRequest)
	_, ok := env.fw.Pinout(3)
	require.False(t, ok)
	_, ok = env.fw.Servo(1)
	require.False(t, ok)
	// the frames are still acknowledged
	require.Equal(t, []uint32{7, 7}, env.acks())
}

func TestFirmwareReplies(t *testing.T) {
	env := newFirmwareEnv(t)
	env.fw.SetPin(5, 1)
	env.send(&msgs.ReadPin{Pin: 5}, 0)
	env.send(&msgs.ReadPin{Pin: 6, Pullup: 1}, 0)
	env.send(&msgs.ReadPin{Pin: 7}, 0)
	require.Equal(t, []msgs.Message{
		&msgs.ReadPin{Pin: 5, Value: 1},
		&msgs.ReadPin{Pin: 6, Value: 1, Pullup: 1},
		&msgs.ReadPin{Pin: 7},
	}, env.received())

	env.fw.Echo = true
	env.send(&msgs.Test{Led: 1}, 0)
	require.Equal(t, []msgs.Message{&msgs.Echo{Type: msgs.TestTypeID, Size: 1}}, env.received())
}

func TestMotorTicks(t *testing.T) {
	var fwd, back int
	m := NewMotor(0, func(forward bool) {
		if forward {
			fwd++
		} else {
			back++
		}
	})
	m.SpeedCallback(1, 0, 0)
	// never configured, no radius
	require.Zero(t, m.Step(time.Second))

	params := device.DefaultMotorParams(0)
	params.Radius = 360
	params.AngleDegrees = 90
	m.SetParams(params)
	m.SpeedCallback(0, 0, -1)
	require.InDelta(t, -0.25, m.Speed(), 1e-9)
	require.Equal(t, -250, m.Step(time.Second))
	require.Equal(t, 250, back)

	m.SpeedCallback(0, 1, 0)
	require.Equal(t, 250, m.Step(500*time.Millisecond))
	require.Equal(t, 250, fwd)

	m.SpeedCallback(0.01, 0, 0)
	require.True(t, m.Stopped())
	require.Zero(t, m.Speed())
}

func TestFirmwareOverPipe(t *testing.T) {
	host, board := net.Pipe()
	fw := NewFirmware(transport.WithReadTimeout(board, 5*time.Millisecond))
	fw.SetPin(3, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fwDone := make(chan error, 1)
	go func() { fwDone <- fw.Run(ctx) }()

	replies := make(chan msgs.Message, 4)
	ch := comm.NewChannel(host)
	ch.Handler = &comm.HandlerFuncs{
		Message: func(_ context.Context, _ *comm.Packet, msg msgs.Message) { replies <- msg },
	}
	runner := ch.Start(ctx)

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	require.NoError(t, comm.Do(waitCtx, ch, &msgs.Test{Led: 1}))
	require.NoError(t, ch.SendMsg(&msgs.ReadPin{Pin: 3}))
	select {
	case msg := <-replies:
		require.Equal(t, &msgs.ReadPin{Pin: 3, Value: 1}, msg)
	case <-waitCtx.Done():
		t.Fatal("no reply")
	}

	require.NoError(t, ch.Close())
	require.Error(t, <-fwDone)
	runner.Wait()
}
