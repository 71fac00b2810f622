package msgs

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDescriptorSizes(t *testing.T) {
	testCases := []struct {
		reg  *Registry
		name string
		size int
	}{
		{V2, "Move", 12},
		{V2, "Odom", 4},
		{V2, "Pid", 13},
		{V2, "Servo", 4},
		{V2, "ConfigMotor", 37},
		{V2, "ConfigServo", 11},
		{V2, "Test", 1},
		{V2, "ConfigPinout", 6},
		{V2, "Echo", 6},
		{V2, "ReadPin", 3},
		{V1, "Move", 6},
		{V1, "Odom", 4},
		{V1, "ConfigMotor", 42},
	}
	for _, tc := range testCases {
		d, ok := tc.reg.ByName(tc.name)
		require.Truef(t, ok, "v%d %s", tc.reg.Version(), tc.name)
		require.Equalf(t, tc.size, d.Size(), "v%d %s", tc.reg.Version(), tc.name)
		require.Equalf(t, tc.size, sizeOf(d), "v%d %s", tc.reg.Version(), tc.name)
	}
}

func sizeOf(d *Descriptor) (n int) {
	for _, f := range d.Fields {
		n += f.Kind.Size()
	}
	return
}

func TestDescriptorsOrdered(t *testing.T) {
	var tags []uint16
	for _, d := range V2.Descriptors() {
		tags = append(tags, d.Type)
	}
	require.Equal(t, []uint16{1, 2, 3, 4, 5, 6, 7, 8, 9, 12}, tags)
	require.Len(t, V1.Descriptors(), 5)
}

func TestForVersion(t *testing.T) {
	r, err := ForVersion(Version1)
	require.NoError(t, err)
	require.Same(t, V1, r)
	r, err = ForVersion(DefaultVersion)
	require.NoError(t, err)
	require.Same(t, V2, r)
	_, err = ForVersion(Version(3))
	var verr *UnknownVersionError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, Version(3), verr.Version)
}

func TestEncodeLittleEndian(t *testing.T) {
	testCases := []struct {
		name   string
		reg    *Registry
		msg    Message
		expect []byte
	}{
		{"servo", V2, &Servo{Servo: 1, Pos: -2}, []byte{1, 0, 0xfe, 0xff}},
		{"odom", V2, &Odom{Num: 1, Aux: -1, DDistMM: 0x0102}, []byte{1, 0xff, 2, 1}},
		{"odom v1", V1, &OdomV1{Num: 1, DDistMM: 0xfffe}, []byte{1, 0, 0xfe, 0xff}},
		{"move v1", V1, &MoveV1{X: 1, Y: 2, Theta: 3}, []byte{1, 0, 2, 0, 3, 0}},
		{"echo", V2, &Echo{Type: 5, Size: 0x01020304}, []byte{5, 0, 4, 3, 2, 1}},
		{"test", V2, &Test{Led: 1}, []byte{1}},
		{"pid", V2, &Pid{Motor: 2, P: 1, I: -1, D: 256},
			[]byte{2, 1, 0, 0, 0, 0xff, 0xff, 0xff, 0xff, 0, 1, 0, 0}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := tc.reg.Marshal(tc.msg)
			require.NoError(t, err)
			require.Equal(t, tc.expect, buf)
		})
	}
}

func TestEncodeFloat(t *testing.T) {
	buf, err := V2.Marshal(&Move{X: 1.5, Y: -2, Theta: 0})
	require.NoError(t, err)
	require.Len(t, buf, 12)
	require.Equal(t, []byte{0, 0, 0xc0, 0x3f}, buf[0:4])
	require.Equal(t, []byte{0, 0, 0, 0xc0}, buf[4:8])
	require.Equal(t, []byte{0, 0, 0, 0}, buf[8:12])
}

func TestDecodeRoundTrip(t *testing.T) {
	msgs := []Message{
		&Move{X: 0.25, Y: -1, Theta: float32(math.Pi)},
		&Odom{Num: 3, Aux: 7, DDistMM: -120},
		&Pid{Motor: 1, P: 100, I: -20, D: 3},
		&Servo{Servo: 2, Pos: 900},
		&ConfigMotor{Num: 1, Radius: 32.5, AngleDegrees: 120, MaxSpeed: 1.2, TicksPerRotation: 360},
		&ConfigServo{Num: 1, Channel: 4, Speed: 10, MinVal: 150, MaxVal: 600, StartPercents: 50},
		&Test{Led: 1},
		&ConfigPinout{Num: 1, EncoderA: 2, EncoderB: 3, Enable: 4, Fwd: 5, Back: 6},
		&Echo{Type: 3, Size: 13},
		&ReadPin{Pin: 7, Value: 1, Pullup: 1},
	}
	for _, msg := range msgs {
		buf, err := V2.Marshal(msg)
		require.NoError(t, err)
		// trailing bytes are ignored
		buf = append(buf, 0xaa)
		decoded, n, err := V2.Decode(msg.TypeID(), buf)
		require.NoError(t, err)
		require.Equal(t, len(buf)-1, n)
		require.Equal(t, msg, decoded)
	}
}

func TestDecodeV1ConfigMotor(t *testing.T) {
	msg := &ConfigMotorV1{
		ConfigMotor: ConfigMotor{Num: 2, Radius: 30, TicksPerRotation: 20},
		EncoderA:    2,
		EncoderB:    3,
		Enable:      9,
		Fwd:         10,
		Back:        11,
	}
	buf, err := V1.Marshal(msg)
	require.NoError(t, err)
	require.Equal(t, []byte{2, 3, 9, 10, 11}, buf[37:])
	decoded, _, err := V1.Decode(ConfigMotorTypeID, buf)
	require.NoError(t, err)
	require.Equal(t, msg, decoded)
}

func TestDecodeErrors(t *testing.T) {
	_, _, err := V2.Decode(ServoTypeID, []byte{1, 2, 3})
	require.Equal(t, ErrNotEnoughData, err)

	_, _, err = V2.Decode(100, []byte{1, 2, 3})
	var typeErr *UnknownTypeError
	require.True(t, errors.As(err, &typeErr))
	require.Equal(t, uint16(100), typeErr.Type)

	_, _, err = V1.Decode(TestTypeID, []byte{1})
	require.True(t, errors.As(err, &typeErr))
}

func TestUnmarshalLeavesMessageOnShortData(t *testing.T) {
	msg := &Servo{Servo: 5, Pos: 6}
	_, err := V2.Unmarshal([]byte{1, 0, 2}, msg)
	require.Equal(t, ErrNotEnoughData, err)
	require.Equal(t, &Servo{Servo: 5, Pos: 6}, msg)

	n, err := V2.Unmarshal([]byte{1, 0, 2, 0}, msg)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, &Servo{Servo: 1, Pos: 2}, msg)
}

func TestEncodeErrors(t *testing.T) {
	_, err := V2.Encode(&Servo{}, make([]byte, 3))
	require.Equal(t, ErrBufferTooSmall, err)

	_, err = V2.Marshal(&MoveV1{})
	require.True(t, errors.Is(err, ErrLayoutMismatch))

	_, err = V1.Marshal(&Move{})
	require.True(t, errors.Is(err, ErrLayoutMismatch))
}
