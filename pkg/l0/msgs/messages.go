package msgs

// Type tags.
const (
	MoveTypeID         uint16 = 1
	OdomTypeID         uint16 = 2
	PidTypeID          uint16 = 3
	ServoTypeID        uint16 = 4
	ConfigMotorTypeID  uint16 = 5
	ConfigServoTypeID  uint16 = 6
	TestTypeID         uint16 = 7
	ConfigPinoutTypeID uint16 = 8
	EchoTypeID         uint16 = 9
	ReadPinTypeID      uint16 = 12
)

// Move commands the platform velocity.
type Move struct {
	X     float32
	Y     float32
	Theta float32
}

// TypeID implements Message.
func (m *Move) TypeID() uint16 { return MoveTypeID }

// Values implements Message.
func (m *Move) Values() []interface{} { return []interface{}{&m.X, &m.Y, &m.Theta} }

// MoveV1 is the legacy Move layout.
type MoveV1 struct {
	X     uint16
	Y     uint16
	Theta uint16
}

// TypeID implements Message.
func (m *MoveV1) TypeID() uint16 { return MoveTypeID }

// Values implements Message.
func (m *MoveV1) Values() []interface{} { return []interface{}{&m.X, &m.Y, &m.Theta} }

// Odom reports the distance a motor travelled since the last report.
type Odom struct {
	Num     int8
	Aux     int8
	DDistMM int16
}

// TypeID implements Message.
func (m *Odom) TypeID() uint16 { return OdomTypeID }

// Values implements Message.
func (m *Odom) Values() []interface{} { return []interface{}{&m.Num, &m.Aux, &m.DDistMM} }

// OdomV1 is the legacy Odom layout.
type OdomV1 struct {
	Num     int8
	Aux     int8
	DDistMM uint16
}

// TypeID implements Message.
func (m *OdomV1) TypeID() uint16 { return OdomTypeID }

// Values implements Message.
func (m *OdomV1) Values() []interface{} { return []interface{}{&m.Num, &m.Aux, &m.DDistMM} }

// Pid tunes the speed controller of a motor.
type Pid struct {
	Motor int8
	P     int32
	I     int32
	D     int32
}

// TypeID implements Message.
func (m *Pid) TypeID() uint16 { return PidTypeID }

// Values implements Message.
func (m *Pid) Values() []interface{} { return []interface{}{&m.Motor, &m.P, &m.I, &m.D} }

// Servo sets the target position of a servo.
type Servo struct {
	Servo int16
	Pos   int16
}

// TypeID implements Message.
func (m *Servo) TypeID() uint16 { return ServoTypeID }

// Values implements Message.
func (m *Servo) Values() []interface{} { return []interface{}{&m.Servo, &m.Pos} }

// ConfigMotor configures the parameters of a motor.
type ConfigMotor struct {
	Num              uint8
	Radius           float32
	AngleDegrees     int32
	InterCoeff       float32
	PropCoeff        float32
	DiffCoeff        float32
	Coeff            float32
	TurnMaxSpeed     float32
	MaxSpeed         float32
	TicksPerRotation int32
}

// TypeID implements Message.
func (m *ConfigMotor) TypeID() uint16 { return ConfigMotorTypeID }

// Values implements Message.
func (m *ConfigMotor) Values() []interface{} {
	return []interface{}{
		&m.Num, &m.Radius, &m.AngleDegrees,
		&m.InterCoeff, &m.PropCoeff, &m.DiffCoeff, &m.Coeff,
		&m.TurnMaxSpeed, &m.MaxSpeed, &m.TicksPerRotation,
	}
}

// ConfigMotorV1 is the legacy ConfigMotor layout which also carries the pinout.
type ConfigMotorV1 struct {
	ConfigMotor
	EncoderA int8
	EncoderB int8
	Enable   int8
	Fwd      int8
	Back     int8
}

// Values implements Message.
func (m *ConfigMotorV1) Values() []interface{} {
	return append(m.ConfigMotor.Values(), &m.EncoderA, &m.EncoderB, &m.Enable, &m.Fwd, &m.Back)
}

// ConfigServo configures a servo channel.
type ConfigServo struct {
	Num           int16
	Channel       int16
	Speed         int16
	MinVal        int16
	MaxVal        int16
	StartPercents uint8
}

// TypeID implements Message.
func (m *ConfigServo) TypeID() uint16 { return ConfigServoTypeID }

// Values implements Message.
func (m *ConfigServo) Values() []interface{} {
	return []interface{}{&m.Num, &m.Channel, &m.Speed, &m.MinVal, &m.MaxVal, &m.StartPercents}
}

// Test toggles the on-board LED.
type Test struct {
	Led uint8
}

// TypeID implements Message.
func (m *Test) TypeID() uint16 { return TestTypeID }

// Values implements Message.
func (m *Test) Values() []interface{} { return []interface{}{&m.Led} }

// ConfigPinout assigns the shield pins of a motor.
type ConfigPinout struct {
	Num      int8
	EncoderA int8
	EncoderB int8
	Enable   int8
	Fwd      int8
	Back     int8
}

// TypeID implements Message.
func (m *ConfigPinout) TypeID() uint16 { return ConfigPinoutTypeID }

// Values implements Message.
func (m *ConfigPinout) Values() []interface{} {
	return []interface{}{&m.Num, &m.EncoderA, &m.EncoderB, &m.Enable, &m.Fwd, &m.Back}
}

// Echo is replied by the firmware for a received message.
type Echo struct {
	Type uint16
	Size uint32
}

// TypeID implements Message.
func (m *Echo) TypeID() uint16 { return EchoTypeID }

// Values implements Message.
func (m *Echo) Values() []interface{} { return []interface{}{&m.Type, &m.Size} }

// ReadPin queries or reports a digital pin.
type ReadPin struct {
	Pin    int8
	Value  int8
	Pullup int8
}

// TypeID implements Message.
func (m *ReadPin) TypeID() uint16 { return ReadPinTypeID }

// Values implements Message.
func (m *ReadPin) Values() []interface{} { return []interface{}{&m.Pin, &m.Value, &m.Pullup} }
