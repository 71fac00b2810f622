// Package bridge relays a device to MQTT.
//
// Topics under the prefix of the device:
//
//	msg/<Name>   messages received from the device
//	cmd/<Name>   messages to send to the device, acknowledged
//	ack/<Name>   results of the commands
//	pose         pose estimated from Odom reports
//	meta         retained device info
//
// Message payloads are serialized google.protobuf.Struct with a number
// per field.
package bridge

import (
	"context"
	"encoding/json"
	"path"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/bang.go/pkg/l0/comm"
	"github.com/robotalks/bang.go/pkg/l0/msgs"
	"github.com/robotalks/bang.go/pkg/nav"
)

// DefaultOutboxSize is the number of publishes queued before dropping.
const DefaultOutboxSize = 64

// Meta is published retained on the meta topic.
type Meta struct {
	Device string   `json:"device"`
	URI    string   `json:"uri,omitempty"`
	Proto  int      `json:"proto"`
	Types  []string `json:"types"`
	Online bool     `json:"online"`
}

// Bridge relays messages between a device and MQTT. It implements
// comm.Handler for the device side.
type Bridge struct {
	Device   string
	URI      string
	Registry *msgs.Registry
	Sender   comm.Sender
	PubSub   PubSub
	// Odometry enables pose estimation when set.
	Odometry *nav.Odometry

	outbox chan publication
}

type publication struct {
	topic   string
	payload []byte
	retain  bool
}

// New creates a Bridge.
func New(device string, registry *msgs.Registry, sender comm.Sender, pubsub PubSub) *Bridge {
	if registry == nil {
		registry = msgs.V2
	}
	return &Bridge{
		Device:   device,
		Registry: registry,
		Sender:   sender,
		PubSub:   pubsub,
		outbox:   make(chan publication, DefaultOutboxSize),
	}
}

// Name implements framework.Named.
func (b *Bridge) Name() string {
	return "bridge"
}

func (b *Bridge) topic(parts ...string) string {
	return path.Join(append([]string{b.Device}, parts...)...)
}

// HandleMessage implements comm.Handler.
func (b *Bridge) HandleMessage(ctx context.Context, pkt *comm.Packet, msg msgs.Message) {
	d, ok := b.Registry.Lookup(pkt.Type)
	if !ok {
		return
	}
	payload, err := EncodeMessage(b.Registry, msg)
	if err != nil {
		glog.Errorf("bridge: encode %s: %v", d.Name, err)
		return
	}
	b.publish(b.topic("msg", d.Name), payload, false)

	if b.Odometry == nil {
		return
	}
	if odom := odomOf(msg); odom != nil && b.Odometry.Handle(odom) {
		b.publishPose(b.Odometry.Update())
	}
}

// odomOf converts either Odom layout. The legacy one carries the signed
// distance in an unsigned field.
func odomOf(msg msgs.Message) *msgs.Odom {
	switch m := msg.(type) {
	case *msgs.Odom:
		return m
	case *msgs.OdomV1:
		return &msgs.Odom{Num: m.Num, Aux: m.Aux, DDistMM: int16(m.DDistMM)}
	}
	return nil
}

// HandleError implements comm.Handler.
func (b *Bridge) HandleError(ctx context.Context, err error) {}

// HandleLog implements comm.Handler.
func (b *Bridge) HandleLog(ctx context.Context, text string) {}

func (b *Bridge) publishPose(pose nav.Pose2D) {
	payload, err := proto.Marshal(&structpb.Struct{Fields: map[string]*structpb.Value{
		"x":     numberValue(pose.X),
		"y":     numberValue(pose.Y),
		"theta": numberValue(pose.Orientation.Radians()),
	}})
	if err != nil {
		glog.Errorf("bridge: encode pose: %v", err)
		return
	}
	b.publish(b.topic("pose"), payload, false)
}

// publish never blocks the device loop. When the broker falls behind
// messages are dropped.
func (b *Bridge) publish(topic string, payload []byte, retain bool) {
	select {
	case b.outbox <- publication{topic: topic, payload: payload, retain: retain}:
	default:
		glog.Warningf("bridge: outbox full, dropped %s", topic)
	}
}

func (b *Bridge) meta(online bool) []byte {
	m := Meta{Device: b.Device, URI: b.URI, Proto: int(b.Registry.Version()), Online: online}
	for _, d := range b.Registry.Descriptors() {
		m.Types = append(m.Types, d.Name)
	}
	data, err := json.Marshal(&m)
	if err != nil {
		panic(err)
	}
	return data
}

// Run implements framework.Runnable. It relays until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.PubSub.Publish(b.topic("meta"), b.meta(true), true); err != nil {
		return err
	}
	if err := b.PubSub.Subscribe(b.topic("cmd", "+"), b.handleCommand); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			if err := b.PubSub.Publish(b.topic("meta"), b.meta(false), true); err != nil {
				glog.Warningf("bridge: publish meta: %v", err)
			}
			return ctx.Err()
		case p := <-b.outbox:
			if err := b.PubSub.Publish(p.topic, p.payload, p.retain); err != nil {
				glog.Warningf("bridge: publish %s: %v", p.topic, err)
			}
		}
	}
}

func (b *Bridge) handleCommand(topic string, payload []byte) {
	name := path.Base(topic)
	msg, err := DecodeMessage(b.Registry, name, payload)
	if err != nil {
		glog.V(2).Infof("bridge: rejected %s: %v", topic, err)
		b.publishAck(name, err)
		return
	}
	glog.V(3).Infof("bridge: %s", b.Registry.Format(msg))
	cmd := b.Sender.SendMsgWithAck(msg)
	go func() {
		b.publishAck(name, <-cmd.ResultChan())
	}()
}

func (b *Bridge) publishAck(name string, result error) {
	payload, err := EncodeAck(result)
	if err != nil {
		glog.Errorf("bridge: encode ack: %v", err)
		return
	}
	b.publish(b.topic("ack", name), payload, false)
}
