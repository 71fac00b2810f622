package comm

import (
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/bang.go/pkg/l0/msgs"
	"github.com/robotalks/bang.go/pkg/l0/slip"
	"github.com/robotalks/bang.go/pkg/l0/transport"
	"github.com/robotalks/bang.go/pkg/l0/uri"
)

// Open opens a Channel from a connection string, e.g.
//
//	serial:/dev/ttyUSB0?baud=115200&proto=2&ack_timeout=500ms
//
// Besides the params of the transport it accepts proto (protocol
// version), bufsize (inbound frame limit) and ack_timeout.
func Open(rawURI string) (*Channel, error) {
	u, err := uri.Parse(rawURI)
	if err != nil {
		return nil, err
	}
	proto, err := u.Int("proto", int(msgs.DefaultVersion))
	if err != nil {
		return nil, err
	}
	registry, err := msgs.ForVersion(msgs.Version(proto))
	if err != nil {
		return nil, err
	}
	maxFrame, err := u.Int("bufsize", slip.DefaultMaxFrame)
	if err != nil {
		return nil, err
	}
	if maxFrame <= HeaderSize {
		return nil, fmt.Errorf("%w: bufsize=%d", uri.ErrInvalidParam, maxFrame)
	}
	ackTimeout, err := u.Duration("ack_timeout", time.Duration(0))
	if err != nil {
		return nil, err
	}
	rw, err := transport.Open(u)
	if err != nil {
		return nil, err
	}
	c := NewChannel(rw)
	c.Registry, c.MaxFrame, c.AckTimeout = registry, maxFrame, ackTimeout
	glog.V(4).Infof("channel %s: protocol version %d", u, registry.Version())
	return c, nil
}
