package agilis

import (
	"fmt"
	"strconv"
)

// JogSpeed selects one of the controller's fixed jog speeds.
type JogSpeed int

const (
	JogStop      JogSpeed = iota // stop
	JogSpeed5                    // 5 steps/s at the defined step amplitude
	JogSpeed100                  // 100 steps/s at maximum step amplitude
	JogSpeed1700                 // 1700 steps/s at maximum step amplitude
	JogSpeed666                  // 666 steps/s at the defined step amplitude
)

// StepsPerSecond returns the nominal step rate of s.
func (s JogSpeed) StepsPerSecond() int {
	switch s {
	case JogSpeed5:
		return 5
	case JogSpeed100:
		return 100
	case JogSpeed1700:
		return 1700
	case JogSpeed666:
		return 666
	default:
		return 0
	}
}

func (s JogSpeed) String() string {
	if s == JogStop {
		return "stop"
	}
	if r := s.StepsPerSecond(); r > 0 {
		return strconv.Itoa(r) + " steps/s"
	}

	return fmt.Sprintf("JogSpeed(%d)", int(s))
}

func (s JogSpeed) valid() bool {
	return s >= JogStop && s <= JogSpeed666
}

// AxisStatus is the state reported by TS.
type AxisStatus int

const (
	AxisReady         AxisStatus = 0
	AxisStepping      AxisStatus = 1 // executing PR
	AxisJogging       AxisStatus = 2 // executing JA with a non-zero speed
	AxisMovingToLimit AxisStatus = 3 // executing MV, MA or PA
)

func (s AxisStatus) String() string {
	switch s {
	case AxisReady:
		return "Ready"
	case AxisStepping:
		return "Stepping"
	case AxisJogging:
		return "Jogging"
	case AxisMovingToLimit:
		return "Moving to limit"
	default:
		return "Unknown"
	}
}

// ErrorCode is a value reported by TE, plus a few codes reserved for
// host-side communication failures.
type ErrorCode int

const (
	NoError                  ErrorCode = 0
	UnknownCommand           ErrorCode = -1
	AxisOutOfRange           ErrorCode = -2
	WrongParameterFormat     ErrorCode = -3
	ParameterOutOfRange      ErrorCode = -4
	NotAllowedInLocalMode    ErrorCode = -5
	NotAllowedInCurrentState ErrorCode = -6

	CommSyncFailed   ErrorCode = 1
	ErrorQueryFailed ErrorCode = 8
	WriteFailed      ErrorCode = 9
)

var errorTexts = map[ErrorCode]string{
	NoError:                  "No error.",
	UnknownCommand:           "Unknown command.",
	AxisOutOfRange:           "Axis out of range (must be 1 or 2, or must not be specified).",
	WrongParameterFormat:     "Wrong format for parameter nn (or must not be specified).",
	ParameterOutOfRange:      "Parameter nn out of range.",
	NotAllowedInLocalMode:    "Not allowed in local mode.",
	NotAllowedInCurrentState: "Not allowed in current state.",
	CommSyncFailed:           "Communication sync failed so reconfigure the port.",
	ErrorQueryFailed:         "TE command failed to sent.",
	WriteFailed:              "Write serial failed.",
}

// Text returns the description of c.
func (c ErrorCode) Text() string {
	if text, ok := errorTexts[c]; ok {
		return text
	}

	return "Undefined error code."
}

func (c ErrorCode) String() string {
	return strconv.Itoa(int(c)) + ": " + c.Text()
}

// ErrorText returns "<code>: <description>" for a numeric error code.
func ErrorText(code int) string {
	return ErrorCode(code).String()
}

// DeviceError is a non-zero error code reported by the controller.
type DeviceError struct {
	Code ErrorCode
}

func (e *DeviceError) Error() string {
	return "agilis: device error " + e.Code.String()
}
