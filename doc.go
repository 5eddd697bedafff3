// Package naohello makes a NAO humanoid robot stand up, say "Hello, World!"
// while waving its right hand, and sit back down.
//
// The robot is driven over the network through NAOqi, the middleware running
// on the robot, using a small native client for its messaging protocol.
//
// # Installation
//
//	go install github.com/gwillem/naohello/cmd/naohello@latest
//
// # Usage
//
// First, enter the robot's address:
//
//	naohello setup
//
// Then run the demo, optionally with a terminal view of the arm's joint
// targets:
//
//	naohello run --tui
//
// The address can also be given per run with --host or NAO_HOST.
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/naohello: CLI with setup, run, say, posture and info commands
//   - pkg/qi: NAOqi messaging client (framing, type signatures, sessions)
//   - pkg/qi/qitest: in-process fake robot for tests
//   - pkg/robot: Motion, speech and posture proxies, joints and settings
//   - pkg/choreo: The hello-world sequence and wave gesture
package naohello
