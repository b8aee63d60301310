package audio

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxDeviceNameLength bounds the sanitized identifier derived from an
	// engine.AudioDevice.Name, kept stable across runs so Legacy/V2 audio
	// settings saved by a controller can re-match the same physical
	// device on a later start (spec.md §4.7).
	MaxDeviceNameLength = 64

	// MaxRawInputLength rejects implausibly long device names up front.
	MaxRawInputLength = 1024
)

var foldToASCII = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeDeviceName produces a stable ASCII identifier from an audio
// device's display name, used as the persistent key in legacy/V2 audio
// settings (spec.md §3 AudioSource device fields). Non-ASCII names are
// folded to their closest ASCII form before the usual
// alphanumeric-plus-underscore reduction, so e.g. a localized device
// name with accented characters still produces a stable, re-derivable
// identifier instead of falling back to a timestamp every run.
func SanitizeDeviceName(name string) string {
	if name == "" {
		return timestampFallback()
	}
	if len(name) > MaxRawInputLength {
		return timestampFallback()
	}
	if containsControlChars(name) {
		return timestampFallback()
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, "/$") || strings.HasPrefix(name, "-") {
		return timestampFallback()
	}

	folded, _, err := transform.String(foldToASCII, name)
	if err != nil || folded == "" {
		folded = name
	}

	if len(folded) > MaxDeviceNameLength {
		folded = folded[:MaxDeviceNameLength]
	}

	sanitized := replaceNonAlphanumeric(folded)
	sanitized = collapseUnderscores(sanitized)
	sanitized = strings.Trim(sanitized, "_")

	if len(sanitized) > 0 && isDigit(sanitized[0]) {
		sanitized = "dev_" + sanitized
	}
	if sanitized == "" {
		return timestampFallback()
	}
	return sanitized
}

func replaceNonAlphanumeric(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAlphanumeric(c) {
			b.WriteByte(c)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

var underscoreRun = regexp.MustCompile(`_+`)

func collapseUnderscores(s string) string {
	return underscoreRun.ReplaceAllString(s, "_")
}

func isAlphanumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func timestampFallback() string {
	return fmt.Sprintf("unknown_device_%d", time.Now().Unix())
}

func containsControlChars(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 && c != 0x09 && c != 0x0A && c != 0x0D {
			return true
		}
		if c == 0x7F {
			return true
		}
	}
	return false
}
