package transport

import (
	"errors"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/bang.go/pkg/l0/uri"
)

func echo(rwc io.ReadWriteCloser) {
	defer rwc.Close()
	io.Copy(rwc, rwc)
}

func roundTrip(t *testing.T, rwc io.ReadWriteCloser) {
	defer rwc.Close()
	msg := []byte{0xc0, 1, 2, 0xdb, 0xc0}
	_, err := rwc.Write(msg)
	require.NoError(t, err)
	buf := make([]byte, len(msg))
	_, err = io.ReadFull(rwc, buf)
	require.NoError(t, err)
	require.Equal(t, msg, buf)
}

func TestOpenTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go echo(conn)
		}
	}()

	rwc, err := OpenString("tcp:" + ln.Addr().String())
	require.NoError(t, err)
	roundTrip(t, rwc)

	rwc, err = OpenString("tcp://" + ln.Addr().String() + "?timeout=20ms")
	require.NoError(t, err)
	roundTrip(t, rwc)
}

func TestTCPReadTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			time.Sleep(200 * time.Millisecond)
			conn.Close()
		}
	}()

	rwc, err := OpenString("tcp:" + ln.Addr().String() + "?timeout=10ms")
	require.NoError(t, err)
	defer rwc.Close()
	_, err = rwc.Read(make([]byte, 1))
	var netErr net.Error
	require.True(t, errors.As(err, &netErr))
	require.True(t, netErr.Timeout())
}

func TestOpenWebSocket(t *testing.T) {
	srv := httptest.NewServer(WebSocketHandler(echo))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	rwc, err := OpenString("ws:" + addr + "/?origin=http://localhost/")
	require.NoError(t, err)
	roundTrip(t, rwc)

	rwc, err = OpenString("ws://" + addr + "/")
	require.NoError(t, err)
	roundTrip(t, rwc)
}

func TestOpenErrors(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedAddr := ln.Addr().String()
	ln.Close()

	testCases := []struct {
		uri    string
		expect error
	}{
		{"usb:/dev/bus/001", ErrUnsupportedScheme},
		{"tcp:" + closedAddr + "?dial_timeout=100ms", ErrConnectionFailed},
		{"serial:/dev/bang-does-not-exist", ErrConnectionFailed},
		{"serial:/dev/ttyACM0?baud=0", ErrBaudSetFailed},
		{"serial:/dev/ttyACM0?baud=fast", uri.ErrInvalidParam},
		{"tcp:" + closedAddr + "?timeout=soon", uri.ErrInvalidParam},
	}
	for _, tc := range testCases {
		t.Run(tc.uri, func(t *testing.T) {
			_, err := OpenString(tc.uri)
			require.Error(t, err)
			require.Truef(t, errors.Is(err, tc.expect), "%v", err)
			require.Contains(t, err.Error(), tc.uri[:strings.Index(tc.uri, ":")])
		})
	}

	_, err = OpenString("no-scheme")
	require.True(t, errors.Is(err, uri.ErrInvalidURI))
}

type nopCloser struct {
	io.ReadWriter
}

func (nopCloser) Close() error { return nil }

func TestRegister(t *testing.T) {
	var opened *uri.URI
	Register("loop", func(u *uri.URI) (io.ReadWriteCloser, error) {
		opened = u
		return nopCloser{}, nil
	})
	require.Contains(t, Schemes(), "loop")
	require.Contains(t, Schemes(), "serial")
	_, err := OpenString("loop:a?x=1")
	require.NoError(t, err)
	require.Equal(t, "a", opened.Path)
	require.Equal(t, "1", opened.Params["x"])
}
