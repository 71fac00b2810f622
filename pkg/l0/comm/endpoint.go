package comm

import (
	"context"
	"fmt"
	"time"

	"github.com/robotalks/bang.go/pkg/l0/msgs"
)

// endpoint is the protocol state shared by Channel and Link. It's only
// accessed from the loop which owns it.
type endpoint struct {
	registry   *msgs.Registry
	handler    Handler
	metrics    *Metrics
	pending    *PendingTable
	strictAcks bool
}

func (e *endpoint) init(registry *msgs.Registry, handler Handler, metrics *Metrics, strictAcks bool) {
	if registry == nil {
		registry = msgs.V2
	}
	if handler == nil {
		handler = &LogHandler{}
	}
	e.registry, e.handler, e.metrics, e.strictAcks = registry, handler, metrics, strictAcks
	if e.pending == nil {
		e.pending = NewPendingTable()
	}
}

// processFrame handles one deframed frame and returns the ack to be
// sent back, if any.
func (e *endpoint) processFrame(ctx context.Context, frame []byte) *Packet {
	e.metrics.frameIn()
	pkt, err := DecodePacket(frame)
	if err != nil {
		e.frameError(ctx, &FrameError{Stage: stageHeader, Err: err})
		return nil
	}
	if pkt.IsAck() {
		e.resolve(ctx, pkt.ID)
		return nil
	}
	if pkt.Flags.IsRequest() && e.strictAcks {
		e.frameError(ctx, &FrameError{Stage: stageHeader, Type: pkt.Type, Err: ErrMalformedAck})
		return nil
	}
	msg, _, err := e.registry.Decode(pkt.Type, pkt.Data)
	if err != nil {
		e.frameError(ctx, &FrameError{Stage: stagePayload, Type: pkt.Type, Err: err})
		return nil
	}
	e.handler.HandleMessage(ctx, pkt, msg)
	if pkt.WantsAck() {
		return NewAck(pkt.ID)
	}
	return nil
}

func (e *endpoint) frameError(ctx context.Context, err *FrameError) {
	e.metrics.frameError(err.Stage)
	e.handler.HandleError(ctx, err)
}

func (e *endpoint) resolve(ctx context.Context, id uint32) {
	if !e.pending.Resolve(id) {
		e.metrics.ack("unmatched", 1)
		e.handler.HandleLog(ctx, fmt.Sprintf("ack#%d matches no request", id))
		return
	}
	e.metrics.ack("acked", 1)
	e.metrics.pending(e.pending.Len())
}

func (e *endpoint) register(ctx context.Context, id uint32, cont Continuation) {
	if e.pending.Register(id, cont) {
		e.metrics.ack("evicted", 1)
		e.handler.HandleLog(ctx, fmt.Sprintf("request#%d evicted by a newer one", id))
	}
	e.metrics.pending(e.pending.Len())
}

// fail drops a registered request whose frame failed to be written.
func (e *endpoint) fail(id uint32, err error) {
	e.pending.Fail(id, err)
	e.metrics.pending(e.pending.Len())
}

func (e *endpoint) expire(ctx context.Context, before time.Time) {
	if n := e.pending.Expire(before); n > 0 {
		e.metrics.ack("expired", n)
		e.metrics.pending(e.pending.Len())
		e.handler.HandleLog(ctx, fmt.Sprintf("%d requests expired", n))
	}
}

func (e *endpoint) cancelAll(reason error) {
	e.metrics.ack("canceled", e.pending.CancelAll(reason))
	e.metrics.pending(0)
}
