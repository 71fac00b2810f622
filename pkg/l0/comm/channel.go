package comm

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/bang.go/pkg/framework"
	"github.com/robotalks/bang.go/pkg/l0/msgs"
	"github.com/robotalks/bang.go/pkg/l0/slip"
)

const (
	// DefaultReadBufferSize is the size of a single transport read.
	DefaultReadBufferSize = 1024
	// MinAckSweepInterval bounds how often pending requests are checked
	// against AckTimeout.
	MinAckSweepInterval = time.Millisecond
)

// Channel is the host endpoint. All decoding, dispatching and pending
// request bookkeeping happen on the goroutine executing Run. Sends are
// safe from any goroutine and are written by the Run goroutine.
//
// Options must be set before Run.
type Channel struct {
	Handler  Handler
	Registry *msgs.Registry
	Metrics  *Metrics
	// MaxFrame caps the size of an inbound frame.
	MaxFrame int
	// ReadBufferSize is the size of a single transport read.
	ReadBufferSize int
	// AckTimeout expires requests not acknowledged in time, 0 disables.
	AckTimeout time.Duration
	// StrictAcks rejects request frames carrying data as malformed acks
	// instead of processing and acknowledging them.
	StrictAcks bool

	rw  io.ReadWriter
	ids IDGen
	ep  endpoint

	lock     sync.Mutex
	queue    sendQueue
	closed   bool
	running  bool
	cancel   context.CancelFunc
	closeErr error
	wakeCh   chan struct{}
	doneCh   chan struct{}
	doneOnce sync.Once
}

type sendItem struct {
	pkt  *Packet
	cont Continuation
	next *sendItem
}

type sendQueue struct {
	head *sendItem
	tail *sendItem
}

func (q *sendQueue) append(item *sendItem) {
	if q.head == nil {
		q.head = item
	} else {
		q.tail.next = item
	}
	q.tail = item
}

func (q *sendQueue) splice(src *sendQueue) {
	q.head, q.tail, src.head, src.tail = src.head, src.tail, nil, nil
}

// NewChannel creates a Channel over a transport. The Channel owns rw and
// closes it if it's an io.Closer, which also stops the reader goroutine.
// A transport which can't be closed leaves the reader blocked in Read
// after Run returns, until Read itself returns.
func NewChannel(rw io.ReadWriter) *Channel {
	return &Channel{
		rw:             rw,
		MaxFrame:       slip.DefaultMaxFrame,
		ReadBufferSize: DefaultReadBufferSize,
		wakeCh:         make(chan struct{}, 1),
		doneCh:         make(chan struct{}),
	}
}

// Send sends a message without ack. Errors writing the frame are
// reported to the Handler.
func (c *Channel) Send(typ uint16, payload []byte) error {
	_, err := c.enqueue(typ, payload, nil)
	return err
}

// SendWithAck sends a message requesting an ack. cont is invoked once
// from the Run goroutine with the result, unless an error is returned.
func (c *Channel) SendWithAck(typ uint16, payload []byte, cont Continuation) error {
	if cont == nil {
		cont = func(error) {}
	}
	_, err := c.enqueue(typ, payload, cont)
	return err
}

// SendMsg encodes and sends a message without ack.
func (c *Channel) SendMsg(msg msgs.Message) error {
	payload, err := c.registry().Marshal(msg)
	if err != nil {
		return err
	}
	return c.Send(msg.TypeID(), payload)
}

// SendMsgWithAck encodes and sends a message requesting an ack.
func (c *Channel) SendMsgWithAck(msg msgs.Message) *Command {
	payload, err := c.registry().Marshal(msg)
	if err != nil {
		cmd := newCommand(0)
		cmd.complete(err)
		return cmd
	}
	var cmd *Command
	id, err := c.enqueueWith(msg.TypeID(), payload, func(id uint32) Continuation {
		cmd = newCommand(id)
		return cmd.complete
	})
	if err != nil {
		cmd = newCommand(id)
		cmd.complete(err)
	}
	return cmd
}

func (c *Channel) registry() *msgs.Registry {
	if c.Registry == nil {
		return msgs.V2
	}
	return c.Registry
}

func (c *Channel) enqueue(typ uint16, payload []byte, cont Continuation) (uint32, error) {
	return c.enqueueWith(typ, payload, func(uint32) Continuation { return cont })
}

func (c *Channel) enqueueWith(typ uint16, payload []byte, contFn func(uint32) Continuation) (uint32, error) {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return 0, ErrClosed
	}
	item := &sendItem{pkt: &Packet{ID: c.ids.Next(), Type: typ, Data: append([]byte(nil), payload...)}}
	if item.cont = contFn(item.pkt.ID); item.cont != nil {
		item.pkt.Flags |= FlagRequest
	}
	c.queue.append(item)
	c.lock.Unlock()
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
	return item.pkt.ID, nil
}

// Run implements framework.Runnable. It returns when ctx is done, the
// Channel is closed or the transport fails permanently. Pending requests
// are canceled with ErrClosed before it returns.
func (c *Channel) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.lock.Lock()
	if c.closed || c.running {
		c.lock.Unlock()
		return ErrClosed
	}
	c.running, c.cancel = true, cancel
	c.lock.Unlock()
	defer c.markDone()

	c.ep.init(c.Registry, c.Handler, c.Metrics, c.StrictAcks)
	size := c.ReadBufferSize
	if size <= 0 {
		size = DefaultReadBufferSize
	}
	readCh, errCh, readerDone := make(chan []byte), make(chan error), make(chan struct{})
	go c.readLoop(ctx, size, readCh, errCh, readerDone)

	var tickCh <-chan time.Time
	if c.AckTimeout > 0 {
		interval := c.AckTimeout / 2
		if interval < MinAckSweepInterval {
			interval = MinAckSweepInterval
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tickCh = ticker.C
	}

	decoder := slip.NewGrowingDecoder(c.MaxFrame)
	err := c.loop(ctx, decoder, readCh, errCh, tickCh)

	c.lock.Lock()
	c.closed = true
	c.lock.Unlock()
	cancel()
	closer, ok := c.rw.(io.Closer)
	if ok {
		c.closeErr = closer.Close()
		<-readerDone
	}
	c.drain()
	c.ep.cancelAll(ErrClosed)
	return err
}

func (c *Channel) loop(ctx context.Context, decoder *slip.Decoder, readCh <-chan []byte, errCh <-chan error, tickCh <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wakeCh:
			c.flush(ctx)
		case data := <-readCh:
			for _, b := range data {
				r := decoder.Feed(b)
				if r.Err != nil {
					c.ep.frameError(ctx, &FrameError{Stage: stageSlip, Err: r.Err})
				} else if r.Done {
					if ack := c.ep.processFrame(ctx, r.Frame); ack != nil {
						c.write(ctx, ack)
					}
				}
			}
		case err := <-errCh:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.ep.handler.HandleError(ctx, err)
			if !IsTransient(err) {
				return err
			}
		case now := <-tickCh:
			c.ep.expire(ctx, now.Add(-c.AckTimeout))
		}
	}
}

func (c *Channel) readLoop(ctx context.Context, size int, readCh chan<- []byte, errCh chan<- error, done chan<- struct{}) {
	defer close(done)
	buf := make([]byte, size)
	for {
		n, err := c.rw.Read(buf)
		if n > 0 {
			select {
			case readCh <- append([]byte(nil), buf[:n]...):
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			select {
			case errCh <- err:
			case <-ctx.Done():
				return
			}
			if !IsTransient(err) {
				return
			}
		}
	}
}

func (c *Channel) flush(ctx context.Context) {
	var items sendQueue
	c.lock.Lock()
	items.splice(&c.queue)
	c.lock.Unlock()
	for item := items.head; item != nil; item = item.next {
		if ctx.Err() != nil {
			failItems(item, ErrClosed)
			return
		}
		if item.cont != nil {
			c.ep.register(ctx, item.pkt.ID, item.cont)
		}
		if err := c.write(ctx, item.pkt); err != nil && item.cont != nil {
			c.ep.fail(item.pkt.ID, err)
		}
	}
}

func (c *Channel) write(ctx context.Context, pkt *Packet) error {
	if _, err := pkt.WriteTo(c.rw); err != nil {
		c.ep.handler.HandleError(ctx, err)
		return err
	}
	c.ep.metrics.frameOut()
	if glog.V(5) {
		glog.Infof("SEND %s", pkt)
	}
	return nil
}

// drain fails sends queued but never written.
func (c *Channel) drain() {
	var items sendQueue
	c.lock.Lock()
	items.splice(&c.queue)
	c.lock.Unlock()
	failItems(items.head, ErrClosed)
}

func failItems(item *sendItem, err error) {
	for ; item != nil; item = item.next {
		if item.cont != nil {
			item.cont(err)
		}
	}
}

// Close stops accepting sends, stops Run and waits for it to return.
// Every pending request is canceled with ErrClosed.
func (c *Channel) Close() error {
	c.lock.Lock()
	if c.closed && !c.running {
		c.lock.Unlock()
		return nil
	}
	alreadyClosed := c.closed
	c.closed = true
	running, cancel := c.running, c.cancel
	c.lock.Unlock()

	if running {
		cancel()
		<-c.doneCh
		if alreadyClosed {
			return nil
		}
		return c.closeErr
	}
	c.drain()
	c.markDone()
	if closer, ok := c.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Channel) markDone() {
	c.doneOnce.Do(func() { close(c.doneCh) })
}

// Done is closed when Run returns, or by Close if Run never started.
func (c *Channel) Done() <-chan struct{} {
	return c.doneCh
}

// Start runs the Channel in the background using a framework.Runner.
func (c *Channel) Start(ctx context.Context) *framework.Runner {
	return framework.NewRunnerWith(ctx).Go(framework.NamedRun("channel", c))
}

// IsTransient checks if a transport error may go away by itself, so the
// Channel should keep reading.
func IsTransient(err error) bool {
	if os.IsTimeout(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
