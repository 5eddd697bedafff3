// Package robot provides proxies for the NAO services used by the demo.
package robot

// Joint identifies a joint or actuator of the robot.
type Joint string

// Right arm joints, in shoulder-to-hand order.
const (
	RShoulderPitch Joint = "RShoulderPitch"
	RShoulderRoll  Joint = "RShoulderRoll"
	RElbowYaw      Joint = "RElbowYaw"
	RElbowRoll     Joint = "RElbowRoll"
	RWristYaw      Joint = "RWristYaw"
	RHand          Joint = "RHand"
)

// Left arm joints.
const (
	LShoulderPitch Joint = "LShoulderPitch"
	LShoulderRoll  Joint = "LShoulderRoll"
	LElbowYaw      Joint = "LElbowYaw"
	LElbowRoll     Joint = "LElbowRoll"
	LWristYaw      Joint = "LWristYaw"
	LHand          Joint = "LHand"
)

// Head joints.
const (
	HeadYaw   Joint = "HeadYaw"
	HeadPitch Joint = "HeadPitch"
)

// Body names the whole-body chain, used for stiffness.
const Body = "Body"

// Limits is the mechanical range of a joint in radians, or a 0..1 opening
// for hands.
type Limits struct {
	Min float64
	Max float64
}

var jointLimits = map[Joint]Limits{
	HeadYaw:   {-2.0857, 2.0857},
	HeadPitch: {-0.6720, 0.5149},

	RShoulderPitch: {-2.0857, 2.0857},
	RShoulderRoll:  {-1.3265, 0.3142},
	RElbowYaw:      {-2.0857, 2.0857},
	RElbowRoll:     {0.0349, 1.5446},
	RWristYaw:      {-1.8238, 1.8238},
	RHand:          {0, 1},

	LShoulderPitch: {-2.0857, 2.0857},
	LShoulderRoll:  {-0.3142, 1.3265},
	LElbowYaw:      {-2.0857, 2.0857},
	LElbowRoll:     {-1.5446, -0.0349},
	LWristYaw:      {-1.8238, 1.8238},
	LHand:          {0, 1},
}

// RightArm returns the right arm joints in shoulder-to-hand order.
func RightArm() []Joint {
	return []Joint{
		RShoulderPitch,
		RShoulderRoll,
		RElbowYaw,
		RElbowRoll,
		RWristYaw,
		RHand,
	}
}

// Limits returns the range of j, and false for unknown joints.
func (j Joint) Limits() (Limits, bool) {
	l, ok := jointLimits[j]
	return l, ok
}

// Contains reports whether angle is within the limits.
func (l Limits) Contains(angle float64) bool {
	return angle >= l.Min && angle <= l.Max
}

// Clamp limits angle to the range of j. Unknown joints pass through.
func (j Joint) Clamp(angle float64) float64 {
	l, ok := jointLimits[j]
	if !ok {
		return angle
	}
	return max(l.Min, min(angle, l.Max))
}

// IsHand reports whether j is a hand actuator.
func (j Joint) IsHand() bool {
	return j == RHand || j == LHand
}
