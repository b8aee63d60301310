package audio

import (
	"strings"
	"testing"
)

func TestSanitizeDeviceNameBasic(t *testing.T) {
	cases := map[string]string{
		"BlueYeti":          "BlueYeti",
		"USB_Audio_Device":  "USB_Audio_Device",
		"Blue Yeti":         "Blue_Yeti",
		"USB-Audio-Device":  "USB_Audio_Device",
		"Audio(Stereo)":     "Audio_Stereo",
		"Device[USB]":       "Device_USB",
	}
	for input, want := range cases {
		if got := SanitizeDeviceName(input); got != want {
			t.Errorf("SanitizeDeviceName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestSanitizeDeviceNameDigitPrefix(t *testing.T) {
	got := SanitizeDeviceName("5GHz Receiver")
	if !strings.HasPrefix(got, "dev_") {
		t.Fatalf("expected dev_ prefix for leading digit, got %q", got)
	}
}

func TestSanitizeDeviceNameRejectsSuspiciousPatterns(t *testing.T) {
	for _, input := range []string{"../etc/passwd", "$(rm -rf /)", "-flag"} {
		got := SanitizeDeviceName(input)
		if !strings.HasPrefix(got, "unknown_device_") {
			t.Errorf("SanitizeDeviceName(%q) = %q, want timestamp fallback", input, got)
		}
	}
}

func TestSanitizeDeviceNameEmptyFallsBack(t *testing.T) {
	got := SanitizeDeviceName("")
	if !strings.HasPrefix(got, "unknown_device_") {
		t.Fatalf("expected fallback for empty input, got %q", got)
	}
}

func TestSanitizeDeviceNameFoldsAccentedCharacters(t *testing.T) {
	got := SanitizeDeviceName("Café Microphone")
	if strings.Contains(got, "é") {
		t.Fatalf("expected accented character folded to ASCII, got %q", got)
	}
	if !strings.HasPrefix(got, "Caf") {
		t.Fatalf("expected folded prefix Caf, got %q", got)
	}
}

func TestSanitizeDeviceNameTruncatesLongNames(t *testing.T) {
	long := strings.Repeat("A", 200)
	got := SanitizeDeviceName(long)
	if len(got) > MaxDeviceNameLength {
		t.Fatalf("expected truncation to %d chars, got %d", MaxDeviceNameLength, len(got))
	}
}

func TestSanitizeDeviceNameRejectsControlChars(t *testing.T) {
	got := SanitizeDeviceName("bad\x01name")
	if !strings.HasPrefix(got, "unknown_device_") {
		t.Fatalf("expected fallback for control characters, got %q", got)
	}
}
