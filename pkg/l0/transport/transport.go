// Package transport opens byte stream transports by connection string.
package transport

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/bang.go/pkg/l0/uri"
)

var (
	// ErrUnsupportedScheme indicates no transport is registered for the scheme.
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	// ErrConnectionFailed indicates the transport can't be opened.
	ErrConnectionFailed = errors.New("connection failed")
	// ErrBaudSetFailed indicates the serial port rejects the baud rate.
	ErrBaudSetFailed = errors.New("baud rate not supported")
)

// Error is the failure of opening a transport. It matches Kind with
// errors.Is and unwraps to Cause.
type Error struct {
	URI   string
	Kind  error
	Cause error
}

// Error implements error.
func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("open %s: %v", e.URI, e.Kind)
	}
	return fmt.Sprintf("open %s: %v: %v", e.URI, e.Kind, e.Cause)
}

// Is matches the kind of error.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Opener opens a transport of a scheme.
type Opener func(u *uri.URI) (io.ReadWriteCloser, error)

var (
	openers     = make(map[string]Opener)
	openersLock sync.RWMutex
)

// Register registers an Opener for scheme, replacing the existing one.
func Register(scheme string, opener Opener) {
	openersLock.Lock()
	openers[scheme] = opener
	openersLock.Unlock()
}

// Schemes lists registered schemes.
func Schemes() []string {
	openersLock.RLock()
	defer openersLock.RUnlock()
	schemes := make([]string, 0, len(openers))
	for s := range openers {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

func init() {
	Register("serial", openSerial)
	Register("tcp", openTCP)
	Register("ws", openWebSocket)
	Register("wss", openWebSocket)
}

// Open opens the transport addressed by u.
func Open(u *uri.URI) (io.ReadWriteCloser, error) {
	openersLock.RLock()
	opener, ok := openers[u.Scheme]
	openersLock.RUnlock()
	if !ok {
		return nil, &Error{URI: u.String(), Kind: ErrUnsupportedScheme}
	}
	rwc, err := opener(u)
	if err != nil {
		var terr *Error
		if !errors.As(err, &terr) {
			err = &Error{URI: u.String(), Kind: ErrConnectionFailed, Cause: err}
		}
		return nil, err
	}
	glog.V(4).Infof("transport %s opened", u)
	return rwc, nil
}

// OpenString parses the connection string and opens the transport.
func OpenString(s string) (io.ReadWriteCloser, error) {
	u, err := uri.Parse(s)
	if err != nil {
		return nil, err
	}
	return Open(u)
}
