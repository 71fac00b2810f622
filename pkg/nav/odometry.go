package nav

import (
	"sync"

	"github.com/robotalks/bang.go/pkg/l0/msgs"
)

// DefaultBaseRadius is the distance from the platform center to the
// wheels in meters.
const DefaultBaseRadius = 0.15

// Odometry integrates Odom reports of omni-wheel motors into a pose.
// Each motor drives along the direction given by its mounting angle.
type Odometry struct {
	BaseRadius float64
	ThetaCoeff float64
	XCoeff     float64
	YCoeff     float64

	lock   sync.Mutex
	motors []odomMotor
	pose   Pose2D
	hits   int
}

type odomMotor struct {
	angle Angle
	ddist float64
}

// NewOdometry creates Odometry for the motors in order of their number.
func NewOdometry(motors []msgs.ConfigMotor) *Odometry {
	o := &Odometry{
		BaseRadius: DefaultBaseRadius,
		ThetaCoeff: 1,
		XCoeff:     1,
		YCoeff:     1,
		motors:     make([]odomMotor, len(motors)),
	}
	for i := range motors {
		o.motors[i].angle = AngleFromDegrees(float64(motors[i].AngleDegrees))
	}
	return o
}

// Handle accumulates a report. Reports of unknown motors are ignored
// and false is returned.
func (o *Odometry) Handle(msg *msgs.Odom) bool {
	o.lock.Lock()
	defer o.lock.Unlock()
	if msg.Num < 0 || int(msg.Num) >= len(o.motors) {
		return false
	}
	o.hits++
	o.motors[msg.Num].ddist += float64(msg.DDistMM) / 1000
	return true
}

// Hits returns the number of reports accepted.
func (o *Odometry) Hits() int {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.hits
}

// Update consumes the accumulated distances and returns the new pose.
// Positions are in meters.
func (o *Odometry) Update() Pose2D {
	o.lock.Lock()
	defer o.lock.Unlock()
	count := float64(len(o.motors))
	if count == 0 {
		return o.pose
	}
	var turn float64
	for _, m := range o.motors {
		turn += m.ddist / count / o.BaseRadius * o.ThetaCoeff
	}
	o.pose.Orientation = o.pose.Orientation.AddRadians(turn)
	for i := range o.motors {
		m := &o.motors[i]
		d := o.pose.Orientation.Add(m.angle).Project(m.ddist / count * 2)
		o.pose.OffsetBy(Pos2D{X: d.X * o.XCoeff, Y: d.Y * o.YCoeff})
		m.ddist = 0
	}
	return o.pose
}

// Pose returns the last updated pose.
func (o *Odometry) Pose() Pose2D {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.pose
}
