package comm

import (
	"context"

	"github.com/robotalks/bang.go/pkg/l0/msgs"
)

// Command represents a request waiting for an ack.
type Command struct {
	id       uint32
	resultCh chan error
}

func newCommand(id uint32) *Command {
	return &Command{id: id, resultCh: make(chan error, 1)}
}

// ID returns the request id.
func (c *Command) ID() uint32 {
	return c.id
}

// ResultChan returns the chan to retrieve result, nil on ack.
// Exactly one result is delivered.
func (c *Command) ResultChan() <-chan error {
	return c.resultCh
}

// Wait waits for the result or ctx is done.
func (c *Command) Wait(ctx context.Context) error {
	select {
	case err := <-c.resultCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Command) complete(err error) {
	c.resultCh <- err
}

// Sender is implemented by both Channel and Link.
type Sender interface {
	Send(typ uint16, payload []byte) error
	SendWithAck(typ uint16, payload []byte, cont Continuation) error
	SendMsg(msg msgs.Message) error
	SendMsgWithAck(msg msgs.Message) *Command
}

// Do sends msg with ack and waits for the result.
func Do(ctx context.Context, s Sender, msg msgs.Message) error {
	return s.SendMsgWithAck(msg).Wait(ctx)
}
