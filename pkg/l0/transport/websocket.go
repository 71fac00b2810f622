package transport

import (
	"io"
	"strings"

	"golang.org/x/net/websocket"

	"github.com/robotalks/bang.go/pkg/l0/uri"
)

// openWebSocket opens ws:<host>[:port]/<path>?origin=<origin>. Frames are
// carried as binary messages and read as a byte stream.
func openWebSocket(u *uri.URI) (io.ReadWriteCloser, error) {
	target := u.Scheme + "://" + strings.TrimPrefix(u.Path, "//")
	origin := u.Get("origin", "http://localhost/")
	conn, err := websocket.Dial(target, "", origin)
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	return conn, nil
}

// WebSocketHandler serves a device over websocket, for simulators and tests.
func WebSocketHandler(serve func(io.ReadWriteCloser)) websocket.Handler {
	return func(conn *websocket.Conn) {
		conn.PayloadType = websocket.BinaryFrame
		serve(conn)
	}
}
