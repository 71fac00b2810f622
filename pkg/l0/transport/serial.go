package transport

import (
	"errors"
	"io"

	"go.bug.st/serial"

	"github.com/robotalks/bang.go/pkg/l0/uri"
)

// DefaultBaudRate is used when the baud param is absent.
const DefaultBaudRate = 115200

// openSerial opens serial:<device>?baud=<rate>&timeout=<duration>.
// With a timeout, a Read returns no data when nothing arrives in time.
func openSerial(u *uri.URI) (io.ReadWriteCloser, error) {
	baud, err := u.Int("baud", DefaultBaudRate)
	if err != nil {
		return nil, err
	}
	if baud <= 0 {
		return nil, &Error{URI: u.String(), Kind: ErrBaudSetFailed}
	}
	timeout, err := u.Duration("timeout", 0)
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(u.Path, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, &Error{URI: u.String(), Kind: serialErrorKind(err), Cause: err}
	}
	if timeout > 0 {
		if err = port.SetReadTimeout(timeout); err != nil {
			port.Close()
			return nil, &Error{URI: u.String(), Kind: ErrConnectionFailed, Cause: err}
		}
	}
	return port, nil
}

func serialErrorKind(err error) error {
	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.InvalidSpeed {
		return ErrBaudSetFailed
	}
	return ErrConnectionFailed
}
