package identity

import (
	"testing"

	"github.com/DuyAnh662/Fileshare/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestHash(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "0000000000000000"},
		{"a", "0000000000000061"},
		{"ab", "0000000000000c21"},
		{"hello world", "000000006aefe2c4"},
		// wraps negative before abs
		{"Mozilla/5.0|en-US|1920x1080|24|-420|8|Win32", "00000000404db617"},
		// surrogate pair hashes as two code units
		{"😀", "00000000001b0d63"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Hash(tt.in))
		})
	}
}

func TestCompute(t *testing.T) {
	attrs := model.DeviceAttributes{
		UserAgent:      "Mozilla/5.0",
		Locale:         "vi",
		ScreenWidth:    390,
		ScreenHeight:   844,
		ColorDepth:     24,
		TimezoneOffset: -420,
		Platform:       "iPhone",
	}

	assert.Equal(t,
		[]string{"Mozilla/5.0", "vi", "390x844", "24", "-420", "unknown", "iPhone"},
		Components(attrs))
	assert.Equal(t, "000000006853684b", Compute(attrs))
	assert.Len(t, Compute(attrs), 16)

	attrs.Cores = 8
	assert.Equal(t, "8", Components(attrs)[5])
	assert.NotEqual(t, "000000006853684b", Compute(attrs))
}
