package comm

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/bang.go/pkg/l0/msgs"
	"github.com/robotalks/bang.go/pkg/l0/slip"
	"github.com/robotalks/bang.go/pkg/l0/transport"
	"github.com/robotalks/bang.go/pkg/l0/uri"
)

func TestOpen(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	c, err := Open("tcp:" + ln.Addr().String())
	require.NoError(t, err)
	require.Same(t, msgs.V2, c.Registry)
	require.Equal(t, slip.DefaultMaxFrame, c.MaxFrame)
	require.Zero(t, c.AckTimeout)
	require.NoError(t, c.Close())

	c, err = Open("tcp:" + ln.Addr().String() + "?proto=1&bufsize=64&ack_timeout=250")
	require.NoError(t, err)
	require.Same(t, msgs.V1, c.Registry)
	require.Equal(t, 64, c.MaxFrame)
	require.Equal(t, 250*time.Millisecond, c.AckTimeout)
	require.NoError(t, c.Close())
}

func TestOpenErrors(t *testing.T) {
	testCases := []struct {
		uri    string
		target error
	}{
		{"no-scheme", uri.ErrInvalidURI},
		{"tcp:127.0.0.1:1?proto=x", uri.ErrInvalidParam},
		{"tcp:127.0.0.1:1?bufsize=8", uri.ErrInvalidParam},
		{"tcp:127.0.0.1:1?ack_timeout=soon", uri.ErrInvalidParam},
		{"usb:/dev/foo", transport.ErrUnsupportedScheme},
		{"serial:/dev/ttyUSB0?baud=0", transport.ErrBaudSetFailed},
	}
	for _, tc := range testCases {
		t.Run(tc.uri, func(t *testing.T) {
			_, err := Open(tc.uri)
			require.True(t, errors.Is(err, tc.target), "%v", err)
		})
	}

	_, err := Open("tcp:127.0.0.1:1?proto=3")
	var verErr *msgs.UnknownVersionError
	require.True(t, errors.As(err, &verErr))
}
