package transport

import (
	"io"
	"net"
	"strings"
	"time"

	"github.com/robotalks/bang.go/pkg/l0/uri"
)

// DefaultDialTimeout is used when the dial_timeout param is absent.
const DefaultDialTimeout = 5 * time.Second

// openTCP opens tcp:<host>:<port>?timeout=<duration>&dial_timeout=<duration>.
func openTCP(u *uri.URI) (io.ReadWriteCloser, error) {
	dialTimeout, err := u.Duration("dial_timeout", DefaultDialTimeout)
	if err != nil {
		return nil, err
	}
	timeout, err := u.Duration("timeout", 0)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialTimeout("tcp", strings.TrimPrefix(u.Path, "//"), dialTimeout)
	if err != nil {
		return nil, err
	}
	return WithReadTimeout(conn, timeout), nil
}

// WithReadTimeout makes each Read on conn fail with a timeout error when
// no data arrives in time. conn is returned as is if timeout is not
// positive.
func WithReadTimeout(conn net.Conn, timeout time.Duration) net.Conn {
	if timeout <= 0 {
		return conn
	}
	return &deadlineConn{Conn: conn, timeout: timeout}
}

// deadlineConn times out each Read, so the reader can notice the link
// is idle. The timeout is reported as a net.Error.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}
