package identity

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/DuyAnh662/Fileshare/internal/model"
)

// Components returns the fingerprint inputs in their fixed order.
func Components(attrs model.DeviceAttributes) []string {
	cores := "unknown"
	if attrs.Cores > 0 {
		cores = strconv.Itoa(attrs.Cores)
	}

	return []string{
		attrs.UserAgent,
		attrs.Locale,
		fmt.Sprintf("%dx%d", attrs.ScreenWidth, attrs.ScreenHeight),
		strconv.Itoa(attrs.ColorDepth),
		strconv.Itoa(attrs.TimezoneOffset),
		cores,
		attrs.Platform,
	}
}

// Compute derives the 16 hex digit fingerprint for a set of device attributes.
func Compute(attrs model.DeviceAttributes) string {
	return Hash(strings.Join(Components(attrs), "|"))
}

// Hash folds s through h = h*31 + c over UTF-16 code units with 32-bit
// wraparound and renders |h| as zero padded hex. Not collision resistant.
func Hash(s string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}

	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}

	return fmt.Sprintf("%016x", abs)
}
