package model

// Identity is the (fingerprint, IP) pair quota and tier state are keyed by.
type Identity struct {
	Fingerprint string
	IPAddress   string
	UserAgent   string
}

// DeviceAttributes are the browser properties folded into a fingerprint.
type DeviceAttributes struct {
	UserAgent      string
	Locale         string
	ScreenWidth    int
	ScreenHeight   int
	ColorDepth     int
	TimezoneOffset int // minutes, same sign convention as Date.getTimezoneOffset
	Cores          int // 0 when unknown
	Platform       string
}
