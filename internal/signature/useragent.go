package signature

import (
	"regexp"
	"strings"
)

// BrowserInfo is the parsed browser/OS portion of a signing snapshot.
type BrowserInfo struct {
	BrowserName    string
	BrowserVersion string
	OS             string
}

var (
	chromeVersion  = regexp.MustCompile(`Chrome/(\d+)`)
	firefoxVersion = regexp.MustCompile(`Firefox/(\d+)`)
	safariVersion  = regexp.MustCompile(`Version/(\d+)`)
	edgeVersion    = regexp.MustCompile(`Edg/(\d+)`)
)

// ParseUserAgent extracts browser name, major version and operating system
// from a User-Agent header. Unknown agents yield "Unknown" fields; the raw
// header is stored alongside either way.
func ParseUserAgent(ua string) BrowserInfo {
	info := BrowserInfo{BrowserName: "Unknown", BrowserVersion: "Unknown", OS: "Unknown"}

	switch {
	case strings.Contains(ua, "Edg/"):
		info.BrowserName = "Edge"
		info.BrowserVersion = firstGroup(edgeVersion, ua)
	case strings.Contains(ua, "Chrome"):
		info.BrowserName = "Chrome"
		info.BrowserVersion = firstGroup(chromeVersion, ua)
	case strings.Contains(ua, "Firefox"):
		info.BrowserName = "Firefox"
		info.BrowserVersion = firstGroup(firefoxVersion, ua)
	case strings.Contains(ua, "Safari"):
		info.BrowserName = "Safari"
		info.BrowserVersion = firstGroup(safariVersion, ua)
	}

	switch {
	case strings.Contains(ua, "Android"):
		info.OS = "Android"
	case strings.Contains(ua, "iPhone"), strings.Contains(ua, "iPad"), strings.Contains(ua, "iOS"):
		info.OS = "iOS"
	case strings.Contains(ua, "Win"):
		info.OS = "Windows"
	case strings.Contains(ua, "Mac"):
		info.OS = "macOS"
	case strings.Contains(ua, "Linux"):
		info.OS = "Linux"
	}

	return info
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return "Unknown"
	}

	return m[1]
}
