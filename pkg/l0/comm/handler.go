package comm

import (
	"context"

	"github.com/golang/glog"

	"github.com/robotalks/bang.go/pkg/l0/msgs"
)

// Handler receives everything surfaced by a Channel or Link. It's called
// from the I/O loop and must not block for long.
type Handler interface {
	// HandleMessage is called with a decoded data frame. pkt.Data is
	// only valid during the call.
	HandleMessage(ctx context.Context, pkt *Packet, msg msgs.Message)
	// HandleError is called with frame errors and transport errors.
	HandleError(ctx context.Context, err error)
	// HandleLog is called with informational events.
	HandleLog(ctx context.Context, text string)
}

// HandlerFuncs implements Handler with optional funcs.
type HandlerFuncs struct {
	Message func(context.Context, *Packet, msgs.Message)
	Error   func(context.Context, error)
	Log     func(context.Context, string)
}

// HandleMessage implements Handler.
func (h *HandlerFuncs) HandleMessage(ctx context.Context, pkt *Packet, msg msgs.Message) {
	if h.Message != nil {
		h.Message(ctx, pkt, msg)
	}
}

// HandleError implements Handler.
func (h *HandlerFuncs) HandleError(ctx context.Context, err error) {
	if h.Error != nil {
		h.Error(ctx, err)
	}
}

// HandleLog implements Handler.
func (h *HandlerFuncs) HandleLog(ctx context.Context, text string) {
	if h.Log != nil {
		h.Log(ctx, text)
	}
}

// LogHandler logs errors and events with glog, then forwards everything
// to the wrapped Handler if any.
type LogHandler struct {
	Handler
	Prefix string
}

// HandleMessage implements Handler.
func (h *LogHandler) HandleMessage(ctx context.Context, pkt *Packet, msg msgs.Message) {
	if glog.V(5) {
		glog.Infof("%sRECV %s", h.Prefix, pkt)
	}
	if h.Handler != nil {
		h.Handler.HandleMessage(ctx, pkt, msg)
	}
}

// HandleError implements Handler.
func (h *LogHandler) HandleError(ctx context.Context, err error) {
	if _, ok := err.(*FrameError); ok {
		glog.V(2).Infof("%sdropped frame: %v", h.Prefix, err)
	} else {
		glog.Warningf("%s%v", h.Prefix, err)
	}
	if h.Handler != nil {
		h.Handler.HandleError(ctx, err)
	}
}

// HandleLog implements Handler.
func (h *LogHandler) HandleLog(ctx context.Context, text string) {
	glog.V(3).Infof("%s%s", h.Prefix, text)
	if h.Handler != nil {
		h.Handler.HandleLog(ctx, text)
	}
}
