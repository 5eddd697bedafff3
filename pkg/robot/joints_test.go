package robot

import (
	"math"
	"testing"
)

func TestJoint_Clamp(t *testing.T) {
	tests := []struct {
		joint    Joint
		angle    float64
		expected float64
	}{
		{RElbowRoll, 1.0, 1.0},       // in range
		{RElbowRoll, 2.0, 1.5446},    // above max
		{RElbowRoll, -1.0, 0.0349},   // below min
		{RShoulderRoll, -1.2, -1.2},  // wave pose
		{RShoulderRoll, 1.0, 0.3142}, // right arm cannot roll outwards
		{LElbowRoll, 1.0, -0.0349},   // mirrored range
		{RHand, 1.5, 1.0},            // hands open 0..1
		{Joint("Tail"), 42.0, 42.0},  // unknown joints pass through
	}

	for _, tt := range tests {
		got := tt.joint.Clamp(tt.angle)
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("%s.Clamp(%f) = %f, want %f", tt.joint, tt.angle, got, tt.expected)
		}
	}
}

func TestJoint_Limits(t *testing.T) {
	for _, j := range RightArm() {
		l, ok := j.Limits()
		if !ok {
			t.Fatalf("no limits for %s", j)
		}
		if l.Min >= l.Max {
			t.Errorf("%s limits %+v are empty", j, l)
		}
	}

	if _, ok := Joint("Tail").Limits(); ok {
		t.Error("Limits of unknown joint should return false")
	}
}

func TestRightArm_Order(t *testing.T) {
	arm := RightArm()
	if arm[0] != RShoulderPitch || arm[len(arm)-1] != RHand {
		t.Errorf("RightArm() = %v, want shoulder first and hand last", arm)
	}
}

func TestJoint_IsHand(t *testing.T) {
	if !RHand.IsHand() || !LHand.IsHand() {
		t.Error("hands not recognized")
	}
	if RElbowRoll.IsHand() {
		t.Error("RElbowRoll is not a hand")
	}
}
