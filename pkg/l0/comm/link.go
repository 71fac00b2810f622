package comm

import (
	"context"
	"io"
	"time"

	"github.com/robotalks/bang.go/pkg/l0/msgs"
	"github.com/robotalks/bang.go/pkg/l0/slip"
)

// DefaultLinkFrameSize is the decoder capacity of a Link: the largest
// message plus the header.
const DefaultLinkFrameSize = 64

// Link is the firmware endpoint. It's driven by a single loop calling Poll
// or Feed and never starts a goroutine. The decoder buffer is preallocated
// and never grows. Link is not safe for concurrent use.
type Link struct {
	rw      io.ReadWriter
	ids     IDGen
	ep      endpoint
	decoder *slip.Decoder
	in      [1]byte
	out     []byte
}

// NewLink creates a Link. frameSize is the decoder capacity,
// DefaultLinkFrameSize if not positive.
func NewLink(rw io.ReadWriter, frameSize int, registry *msgs.Registry, handler Handler) *Link {
	if frameSize <= 0 {
		frameSize = DefaultLinkFrameSize
	}
	l := &Link{
		rw:      rw,
		decoder: slip.NewDecoder(frameSize),
		out:     make([]byte, 0, 2*frameSize+1),
	}
	l.ep.init(registry, handler, nil, false)
	return l
}

// SetMetrics attaches metrics.
func (l *Link) SetMetrics(m *Metrics) {
	l.ep.metrics = m
}

// Pending returns the number of requests waiting for ack.
func (l *Link) Pending() int {
	return l.ep.pending.Len()
}

// Poll reads at most one byte and processes it. A read returning no
// data or timing out is not an error.
func (l *Link) Poll(ctx context.Context) error {
	n, err := l.rw.Read(l.in[:])
	if n > 0 {
		l.Feed(ctx, l.in[0])
	}
	if err != nil && !IsTransient(err) {
		return err
	}
	return nil
}

// Feed processes one received byte.
func (l *Link) Feed(ctx context.Context, b byte) {
	r := l.decoder.Feed(b)
	if r.Err != nil {
		l.ep.frameError(ctx, &FrameError{Stage: stageSlip, Err: r.Err})
		return
	}
	if r.Done {
		if ack := l.ep.processFrame(ctx, r.Frame); ack != nil {
			if err := l.write(ack); err != nil {
				l.ep.handler.HandleError(ctx, err)
			}
		}
	}
}

// Run polls until ctx is done or the transport fails. Pending requests
// are canceled with ErrClosed before it returns.
func (l *Link) Run(ctx context.Context) error {
	defer l.ep.cancelAll(ErrClosed)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := l.Poll(ctx); err != nil {
			l.ep.handler.HandleError(ctx, err)
			return err
		}
	}
}

func (l *Link) write(pkt *Packet) error {
	l.out = pkt.AppendTo(l.out[:0])
	if _, err := l.rw.Write(l.out); err != nil {
		return err
	}
	l.ep.metrics.frameOut()
	return nil
}

// Send writes a message without ack.
func (l *Link) Send(typ uint16, payload []byte) error {
	return l.write(&Packet{ID: l.ids.Next(), Type: typ, Data: payload})
}

// SendWithAck writes a message requesting an ack. If the write fails,
// the error is returned and cont is not invoked.
func (l *Link) SendWithAck(typ uint16, payload []byte, cont Continuation) error {
	if cont == nil {
		cont = func(error) {}
	}
	return l.sendWithAck(l.ids.Next(), typ, payload, cont)
}

func (l *Link) sendWithAck(id uint32, typ uint16, payload []byte, cont Continuation) error {
	if err := l.write(&Packet{ID: id, Type: typ, Flags: FlagRequest, Data: payload}); err != nil {
		return err
	}
	// the ack can't be processed before this returns to the loop
	l.ep.register(context.Background(), id, cont)
	return nil
}

// SendMsg encodes and writes a message without ack.
func (l *Link) SendMsg(msg msgs.Message) error {
	payload, err := l.ep.registry.Marshal(msg)
	if err != nil {
		return err
	}
	return l.Send(msg.TypeID(), payload)
}

// SendMsgWithAck encodes and writes a message requesting an ack.
func (l *Link) SendMsgWithAck(msg msgs.Message) *Command {
	payload, err := l.ep.registry.Marshal(msg)
	if err != nil {
		cmd := newCommand(0)
		cmd.complete(err)
		return cmd
	}
	cmd := newCommand(l.ids.Next())
	if err = l.sendWithAck(cmd.id, msg.TypeID(), payload, cmd.complete); err != nil {
		cmd.complete(err)
	}
	return cmd
}

// Expire fails requests registered before the deadline with ErrTimeout.
func (l *Link) Expire(ctx context.Context, before time.Time) {
	l.ep.expire(ctx, before)
}
