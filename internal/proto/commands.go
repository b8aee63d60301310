// Package proto defines the JSON wire protocol spoken over the Channel:
// integer-valued commands and events, fixed for wire compatibility with
// the controller.
package proto

import "fmt"

// Command identifies an inbound request from the controller.
type Command int

const (
	CmdShutdown            Command = 1
	CmdQueryMachineInfo     Command = 2
	CmdStart                Command = 3
	CmdStop                 Command = 4
	CmdSetVolume            Command = 5
	CmdGameFocusChanged     Command = 6
	CmdAddGameSource        Command = 7
	CmdStartReplayCapture   Command = 8
	CmdStopReplayCapture    Command = 9
	CmdTobiiGaze            Command = 10
	CmdSetBRB               Command = 11
	CmdSplitVideo           Command = 12
)

func (c Command) String() string {
	switch c {
	case CmdShutdown:
		return "SHUTDOWN"
	case CmdQueryMachineInfo:
		return "QUERY_MACHINE_INFO"
	case CmdStart:
		return "START"
	case CmdStop:
		return "STOP"
	case CmdSetVolume:
		return "SET_VOLUME"
	case CmdGameFocusChanged:
		return "GAME_FOCUS_CHANGED"
	case CmdAddGameSource:
		return "ADD_GAME_SOURCE"
	case CmdStartReplayCapture:
		return "START_REPLAY_CAPTURE"
	case CmdStopReplayCapture:
		return "STOP_REPLAY_CAPTURE"
	case CmdTobiiGaze:
		return "TOBII_GAZE"
	case CmdSetBRB:
		return "SET_BRB"
	case CmdSplitVideo:
		return "SPLIT_VIDEO"
	default:
		return fmt.Sprintf("CMD(%d)", int(c))
	}
}

// RecorderType distinguishes the three output pipelines.
type RecorderType int

const (
	RecorderVideo     RecorderType = 1
	RecorderReplay    RecorderType = 2
	RecorderStreaming RecorderType = 3
)

func (r RecorderType) String() string {
	switch r {
	case RecorderVideo:
		return "VIDEO"
	case RecorderReplay:
		return "REPLAY"
	case RecorderStreaming:
		return "STREAMING"
	default:
		return fmt.Sprintf("RECORDER_TYPE(%d)", int(r))
	}
}

// Valid reports whether r is one of the three known recorder types.
func (r RecorderType) Valid() bool {
	switch r {
	case RecorderVideo, RecorderReplay, RecorderStreaming:
		return true
	default:
		return false
	}
}
