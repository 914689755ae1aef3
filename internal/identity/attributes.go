package identity

import (
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/DuyAnh662/Fileshare/internal/model"
)

// Headers the front end sets from screen, Intl and navigator values.
const (
	HeaderScreen         = "X-Device-Screen"
	HeaderColorDepth     = "X-Device-Color-Depth"
	HeaderTimezoneOffset = "X-Device-Timezone-Offset"
	HeaderCores          = "X-Device-Cores"
	HeaderPlatform       = "Sec-CH-UA-Platform"
)

// AttributesFromRequest collects the fingerprint inputs from request headers.
// Missing or malformed numeric headers read as zero.
func AttributesFromRequest(r *http.Request) model.DeviceAttributes {
	attrs := model.DeviceAttributes{
		UserAgent:      r.UserAgent(),
		Locale:         primaryLocale(r.Header.Get("Accept-Language")),
		ColorDepth:     atoi(r.Header.Get(HeaderColorDepth)),
		TimezoneOffset: atoi(r.Header.Get(HeaderTimezoneOffset)),
		Cores:          atoi(r.Header.Get(HeaderCores)),
		Platform:       strings.Trim(r.Header.Get(HeaderPlatform), `"`),
	}

	w, h, ok := strings.Cut(r.Header.Get(HeaderScreen), "x")
	if ok {
		attrs.ScreenWidth = atoi(w)
		attrs.ScreenHeight = atoi(h)
	}

	return attrs
}

func primaryLocale(header string) string {
	if header == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return ""
	}
	return tags[0].String()
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
