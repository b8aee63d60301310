package proto

import "encoding/json"

// Identifier is the controller-supplied correlation key. IdentifierNone
// denotes "none/idle".
type Identifier int

const IdentifierNone Identifier = -1

// Envelope is the raw shape every inbound frame decodes into first: just
// enough to route on Cmd before unmarshaling the rest into a typed payload.
type Envelope struct {
	Cmd          Command      `json:"cmd"`
	Identifier   Identifier   `json:"identifier,omitempty"`
	RecorderType RecorderType `json:"recorder_type,omitempty"`
	Raw          json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the full frame in Raw while also decoding the
// routing fields, so handlers can re-unmarshal Raw into a specific payload
// type without a second read of the transport.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	type alias Envelope
	a := alias{}
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = Envelope(a)
	e.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// OutEvent is the shape every outbound frame is serialized from.
type OutEvent struct {
	Event      Event      `json:"event"`
	Identifier Identifier `json:"identifier,omitempty"`
	Code       *int       `json:"code,omitempty"`
	Desc       string     `json:"desc,omitempty"`
}

// StartPayload mirrors the START command's sub-objects (spec.md §4.2.1).
type StartPayload struct {
	Cmd          Command      `json:"cmd"`
	Identifier   Identifier   `json:"identifier"`
	RecorderType RecorderType `json:"recorder_type"`

	Video         VideoSettings         `json:"video_settings"`
	VideoEncoder  VideoEncoderSettings  `json:"video_encoder_settings"`
	ExtraVideo    ExtraVideoOptions     `json:"extra_video_options"`
	Audio         AudioSettings         `json:"audio_settings"`
	Scene         SceneSettings         `json:"scene"`
	Replay        ReplaySettings        `json:"replay"`
	Streaming     StreamingSettings     `json:"streaming"`
	FileOutput    FileOutputSettings    `json:"file_output"`
}

type VideoSettings struct {
	BaseWidth         int    `json:"base_width"`
	BaseHeight        int    `json:"base_height"`
	OutputWidth       int    `json:"output_width"`
	OutputHeight      int    `json:"output_height"`
	FPS               int    `json:"fps"`
	CompatibilityMode bool   `json:"compatibility_mode"`
	GameCursor        bool   `json:"game_cursor"`
	ColorFormat       string `json:"color_format"`
	ColorSpace        string `json:"color_space"`
}

type VideoEncoderSettings struct {
	EncoderID        string            `json:"encoder_id"`
	BitrateKbps      int               `json:"bitrate"`
	RateControl      string            `json:"rate_control"`
	CustomParameters  map[string]any    `json:"custom_parameters,omitempty"`
}

type ExtraVideoOptions struct {
	DisableAutoShutdownOnGameExit bool             `json:"disable_auto_shutdown_on_game_exit"`
	CustomSources                 []json.RawMessage `json:"custom_sources,omitempty"`
	FragmentedVideoFile           bool             `json:"fragmented_video_file"`
}

type AudioSettings struct {
	SampleRate           int                  `json:"sample_rate"`
	Output               *LegacyAudioDevice   `json:"output,omitempty"`
	Input                *LegacyAudioDevice   `json:"input,omitempty"`
	SeparateTracks       bool                 `json:"separate_tracks"`
	AudioCaptureProcess2 []ProcessAudioEntry  `json:"audio_capture_process2,omitempty"`
	ExplicitTracks       int                  `json:"tracks,omitempty"`
	ExtraOptions         AudioExtraOptions    `json:"extra_options"`
}

type AudioExtraOptions struct {
	AudioSources []V2AudioSourceEntry `json:"audio_sources,omitempty"`
}

type LegacyAudioDevice struct {
	DeviceID string `json:"device_id"`
}

type V2AudioSourceEntry struct {
	Name            string `json:"name"`
	DeviceID        string `json:"device_id"`
	Type            string `json:"type"` // "input" or "output"
	Volume          int    `json:"volume"`
	Mono            bool   `json:"mono"`
	UseDeviceTiming bool   `json:"use_device_timing"`
	Tracks          int    `json:"tracks"`
	Enable          bool   `json:"enable"`
}

type ProcessAudioEntry struct {
	ProcessName string `json:"process_name"`
	Enable      bool   `json:"enable"`
	Mono        bool   `json:"mono"`
	Volume      int    `json:"volume"`
	Tracks      int    `json:"tracks"`
}

type SceneSettings struct {
	Monitor            *MonitorSourceSettings `json:"monitor,omitempty"`
	WindowCapture       *WindowSourceSettings  `json:"window_capture,omitempty"`
	Game                *GameSourceSettings    `json:"game,omitempty"`
	BRB                 *BRBSourceSettings     `json:"brb,omitempty"`
	Tobii                *TobiiSourceSettings   `json:"tobii,omitempty"`
	AuxSources           []AuxSourceSettings    `json:"auxSources,omitempty"`
	KeepGameRecording    bool                   `json:"keep_game_recording"`
}

type MonitorSourceSettings struct {
	MonitorID     int    `json:"monitor_id"`
	MonitorHandle int64  `json:"monitor_handle"`
	Force         bool   `json:"force"`
}

type WindowSourceSettings struct {
	WindowHandle int64  `json:"window_handle"`
	Title        string `json:"title"`
}

type GameSourceSettings struct {
	ProcessID  int  `json:"process_id"`
	Foreground bool `json:"foreground"`
}

type BRBSourceSettings struct {
	ImagePath string `json:"image_path"`
}

type TobiiSourceSettings struct {
	Enabled bool `json:"enabled"`
}

type AuxSourceSettings struct {
	Name          string `json:"name"`
	SecondaryFile bool   `json:"secondaryFile"`
}

type ReplaySettings struct {
	MaxTimeSec int `json:"max_time_sec"`
	MaxSizeMB  int `json:"max_size_mb"`
}

type StreamingSettings struct {
	Type      string `json:"type"` // rtmp_common | rtmp_custom
	ServerURL string `json:"server_url"`
	StreamKey string `json:"stream_key"`
	UseAuth   bool   `json:"use_auth,omitempty"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
}

type FileOutputSettings struct {
	Filename            string `json:"filename"`
	MaxFileSizeBytes    int64  `json:"max_file_size_bytes"`
	EnableOnDemandSplit bool   `json:"enable_on_demand_split"`
	IncludeFullVideo    bool   `json:"include_full_video"`
	MaxTimeSec          int    `json:"max_time_sec"`
}

// StopPayload mirrors the STOP command (spec.md §4.2.2).
type StopPayload struct {
	Identifier   Identifier   `json:"identifier"`
	RecorderType RecorderType `json:"recorder_type"`
	Force        bool         `json:"force,omitempty"`
}

// StartReplayCapturePayload mirrors START_REPLAY_CAPTURE (spec.md §4.5).
type StartReplayCapturePayload struct {
	HeadDurationMS  int    `json:"head_duration_ms"`
	Path            string `json:"path"`
	ThumbnailFolder string `json:"thumbnail_folder"`
}

// StopReplayCapturePayload mirrors STOP_REPLAY_CAPTURE (spec.md §4.5).
type StopReplayCapturePayload struct {
	Force bool `json:"force,omitempty"`
}

// SetVolumePayload mirrors SET_VOLUME (spec.md §8 round-trip law).
type SetVolumePayload struct {
	Output *struct {
		Volume int `json:"volume"`
	} `json:"output,omitempty"`
	Input *struct {
		Volume int `json:"volume"`
	} `json:"input,omitempty"`
	Name   string `json:"name,omitempty"`
	Volume int    `json:"volume,omitempty"`
}

// GameFocusChangedPayload mirrors GAME_FOCUS_CHANGED.
type GameFocusChangedPayload struct {
	Foreground bool `json:"foreground"`
	Minimized  bool `json:"minimized"`
}

// AddGameSourcePayload mirrors ADD_GAME_SOURCE.
type AddGameSourcePayload struct {
	ProcessID int `json:"process_id"`
}

// TobiiGazePayload mirrors TOBII_GAZE.
type TobiiGazePayload struct {
	Enabled bool `json:"enabled"`
}

// SetBRBPayload mirrors SET_BRB.
type SetBRBPayload struct {
	ImagePath string `json:"image_path"`
	Visible   bool   `json:"visible"`
}

// SplitVideoPayload mirrors SPLIT_VIDEO.
type SplitVideoPayload struct {
	Identifier Identifier `json:"identifier"`
}
