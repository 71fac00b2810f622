package slip

// State is the state of a Decoder.
type State int

const (
	// StateNormal accumulates plain bytes.
	StateNormal State = iota
	// StateEscaped means the previous byte was ESC.
	StateEscaped
	// StateError discards bytes until the next END.
	StateError
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateEscaped:
		return "escaped"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Result is the outcome of feeding one byte.
type Result struct {
	State State
	// Done is set when the byte terminated a frame, and Frame holds
	// the decoded payload (possibly empty).
	Done  bool
	Frame []byte
	// Err is set when the byte drove the decoder into StateError.
	Err error
}

// Decoder is a streaming SLIP decoder consuming one byte at a time.
//
// A fixed decoder (NewDecoder) never allocates after construction and the
// frame it emits is only valid until the next call to Feed. A growing
// decoder (NewGrowingDecoder) hands ownership of every emitted frame to
// the caller.
type Decoder struct {
	state State
	buf   []byte
	max   int
	fixed bool
}

// NewDecoder creates a decoder with a preallocated buffer of capacity bytes.
func NewDecoder(capacity int) *Decoder {
	return &Decoder{buf: make([]byte, 0, capacity), max: capacity, fixed: true}
}

// NewGrowingDecoder creates a decoder whose buffer grows up to max bytes.
func NewGrowingDecoder(max int) *Decoder {
	if max <= 0 {
		max = DefaultMaxFrame
	}
	return &Decoder{max: max}
}

// State gets the current state.
func (d *Decoder) State() State {
	return d.state
}

// Buffered returns the number of bytes accumulated for the current frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Capacity returns the maximum frame size.
func (d *Decoder) Capacity() int {
	return d.max
}

// Reset drops any partial frame and returns to StateNormal.
func (d *Decoder) Reset() {
	d.state = StateNormal
	d.buf = d.buf[:0]
}

// Feed consumes one byte.
func (d *Decoder) Feed(b byte) (r Result) {
	switch d.state {
	case StateNormal:
		switch b {
		case ESC:
			d.state = StateEscaped
		case END:
			r.Done, r.Frame = true, d.take()
		default:
			r.Err = d.append(b)
		}
	case StateEscaped:
		switch b {
		case EscapedEnd:
			d.state = StateNormal
			r.Err = d.append(END)
		case EscapedEsc:
			d.state = StateNormal
			r.Err = d.append(ESC)
		case ESC:
			r.Err = d.fail(ErrDoubleEscape)
		default:
			r.Err = d.fail(ErrInvalidEscape)
		}
	case StateError:
		if b == END {
			d.Reset()
		}
	}
	r.State = d.state
	return
}

// Write feeds every byte of p, calling onFrame for each completed frame and
// onError for each error. Either callback may be nil.
func (d *Decoder) Write(p []byte, onFrame func([]byte), onError func(error)) {
	for _, b := range p {
		r := d.Feed(b)
		if r.Err != nil {
			if onError != nil {
				onError(r.Err)
			}
		} else if r.Done && onFrame != nil {
			onFrame(r.Frame)
		}
	}
}

// Finish is called by one-shot callers at the end of input. It reports an
// incomplete frame, if any, and resets the decoder.
func (d *Decoder) Finish() (err error) {
	switch {
	case d.state == StateEscaped:
		err = ErrUnterminatedEscape
	case d.state == StateNormal && len(d.buf) > 0:
		err = ErrNoTerminator
	}
	d.Reset()
	return
}

func (d *Decoder) append(b byte) error {
	if len(d.buf) >= d.max {
		return d.fail(ErrBufferOverflow)
	}
	d.buf = append(d.buf, b)
	return nil
}

func (d *Decoder) fail(err error) error {
	d.state = StateError
	d.buf = d.buf[:0]
	return err
}

func (d *Decoder) take() []byte {
	frame := d.buf
	if d.fixed {
		d.buf = d.buf[:0]
		return frame
	}
	d.buf = nil
	if frame == nil {
		frame = []byte{}
	}
	return frame
}
