package bridge

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/bang.go/pkg/l0/comm"
	"github.com/robotalks/bang.go/pkg/l0/msgs"
	"github.com/robotalks/bang.go/pkg/l0/transport"
	"github.com/robotalks/bang.go/pkg/nav"
	"github.com/robotalks/bang.go/pkg/sim"
)

type fakePubSub struct {
	lock  sync.Mutex
	subs  map[string]Handler
	pubCh chan publication
}

func newFakePubSub() *fakePubSub {
	return &fakePubSub{subs: make(map[string]Handler), pubCh: make(chan publication, 64)}
}

func (p *fakePubSub) Publish(topic string, payload []byte, retain bool) error {
	p.pubCh <- publication{topic: topic, payload: payload, retain: retain}
	return nil
}

func (p *fakePubSub) Subscribe(topic string, handler Handler) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.subs[topic] = handler
	return nil
}

func (p *fakePubSub) subscribed() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.subs) > 0
}

func (p *fakePubSub) deliver(topic string, payload []byte) {
	p.lock.Lock()
	var handlers []Handler
	for filter, h := range p.subs {
		if MatchTopic(topic, filter) {
			handlers = append(handlers, h)
		}
	}
	p.lock.Unlock()
	for _, h := range handlers {
		h(topic, payload)
	}
}

func (p *fakePubSub) next(t *testing.T) publication {
	select {
	case pub := <-p.pubCh:
		return pub
	case <-time.After(5 * time.Second):
		t.Fatal("nothing published")
	}
	return publication{}
}

func requireMeta(t *testing.T, pub publication, online bool) {
	require.Equal(t, "dev/meta", pub.topic)
	require.True(t, pub.retain)
	var meta Meta
	require.NoError(t, json.Unmarshal(pub.payload, &meta))
	require.Equal(t, "dev", meta.Device)
	require.Equal(t, 2, meta.Proto)
	require.Contains(t, meta.Types, "ConfigMotor")
	require.Equal(t, online, meta.Online)
}

func TestBridgeRelay(t *testing.T) {
	host, board := net.Pipe()
	fw := sim.NewFirmware(transport.WithReadTimeout(board, 5*time.Millisecond))
	fw.SetPin(3, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fw.Run(ctx)

	ps := newFakePubSub()
	ch := comm.NewChannel(host)
	b := New("dev", msgs.V2, ch, ps)
	ch.Handler = &comm.LogHandler{Handler: b}
	runner := ch.Start(ctx)
	bridgeDone := make(chan error, 1)
	go func() { bridgeDone <- b.Run(ctx) }()

	requireMeta(t, ps.next(t), true)
	require.Eventually(t, ps.subscribed, time.Second, time.Millisecond)

	payload, err := EncodeMessage(msgs.V2, &msgs.Test{Led: 1})
	require.NoError(t, err)
	ps.deliver("dev/cmd/Test", payload)
	pub := ps.next(t)
	require.Equal(t, "dev/ack/Test", pub.topic)
	ack, err := DecodeAck(pub.payload)
	require.NoError(t, err)
	require.True(t, ack.OK)

	payload, err = EncodeMessage(msgs.V2, &msgs.ReadPin{Pin: 3})
	require.NoError(t, err)
	ps.deliver("dev/cmd/ReadPin", payload)
	pubs := make(map[string][]byte)
	for i := 0; i < 2; i++ {
		pub := ps.next(t)
		pubs[pub.topic] = pub.payload
	}
	require.Contains(t, pubs, "dev/ack/ReadPin")
	msg, err := DecodeMessage(msgs.V2, "ReadPin", pubs["dev/msg/ReadPin"])
	require.NoError(t, err)
	require.Equal(t, &msgs.ReadPin{Pin: 3, Value: 1}, msg)

	ps.deliver("dev/cmd/Nope", nil)
	pub = ps.next(t)
	require.Equal(t, "dev/ack/Nope", pub.topic)
	ack, err = DecodeAck(pub.payload)
	require.NoError(t, err)
	require.False(t, ack.OK)
	require.Contains(t, ack.Error, "unknown message")

	cancel()
	require.Equal(t, context.Canceled, <-bridgeDone)
	requireMeta(t, ps.next(t), false)
	runner.Wait()
}

func TestBridgePose(t *testing.T) {
	b := New("dev", nil, nil, newFakePubSub())
	b.Odometry = nav.NewOdometry([]msgs.ConfigMotor{{AngleDegrees: 0}})
	b.Odometry.ThetaCoeff = 0

	b.HandleMessage(context.Background(), &comm.Packet{Type: msgs.OdomTypeID}, &msgs.Odom{Num: 0, DDistMM: 100})
	pub := <-b.outbox
	require.Equal(t, "dev/msg/Odom", pub.topic)
	pub = <-b.outbox
	require.Equal(t, "dev/pose", pub.topic)
	var pose structpb.Struct
	require.NoError(t, proto.Unmarshal(pub.payload, &pose))
	require.InDelta(t, 0.2, pose.Fields["x"].GetNumberValue(), 1e-9)

	// unknown motors don't move the pose
	b.HandleMessage(context.Background(), &comm.Packet{Type: msgs.OdomTypeID}, &msgs.Odom{Num: 1, DDistMM: 100})
	require.Equal(t, "dev/msg/Odom", (<-b.outbox).topic)
	require.Empty(t, b.outbox)
}

func TestBridgePoseLegacyOdom(t *testing.T) {
	b := New("dev", msgs.V1, nil, newFakePubSub())
	b.Odometry = nav.NewOdometry([]msgs.ConfigMotor{{AngleDegrees: 0}})
	b.Odometry.ThetaCoeff = 0

	b.HandleMessage(context.Background(), &comm.Packet{Type: msgs.OdomTypeID}, &msgs.OdomV1{Num: 0, DDistMM: 0xff9c})
	require.Equal(t, "dev/msg/Odom", (<-b.outbox).topic)
	pub := <-b.outbox
	require.Equal(t, "dev/pose", pub.topic)
	var pose structpb.Struct
	require.NoError(t, proto.Unmarshal(pub.payload, &pose))
	require.InDelta(t, -0.2, pose.Fields["x"].GetNumberValue(), 1e-9)
}

func TestBridgeOutboxFull(t *testing.T) {
	b := New("dev", nil, nil, newFakePubSub())
	for i := 0; i < DefaultOutboxSize+3; i++ {
		b.HandleMessage(context.Background(), &comm.Packet{Type: msgs.TestTypeID}, &msgs.Test{})
	}
	require.Len(t, b.outbox, DefaultOutboxSize)
}
