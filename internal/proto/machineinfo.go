package proto

// MachineInfoResult is the QUERY_MACHINE_INFO response body (spec.md §4.2
// step 2).
type MachineInfoResult struct {
	AudioIn              []AudioDeviceInfo `json:"audio_in"`
	AudioOut             []AudioDeviceInfo `json:"audio_out"`
	VideoEncoders        []VideoEncoderInfo `json:"video_encoders"`
	WinRTCaptureSupported bool             `json:"winrt_capture_supported"`
}

// AudioDeviceInfo describes one enumerated audio endpoint.
type AudioDeviceInfo struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	Default  bool   `json:"default"`
}

// VideoEncoderInfo describes one probed encoder (§9 exception-for-control-flow).
type VideoEncoderInfo struct {
	EncoderID string `json:"encoder_id"`
	Name      string `json:"name"`
	Valid     bool   `json:"valid"`
	Status    string `json:"status"` // "ok" | "unsupported" | "crash"
	Code      string `json:"code,omitempty"`
}
