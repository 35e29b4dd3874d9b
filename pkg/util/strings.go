package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Str2List splits str on sep, trimming blanks and dropping duplicates.
func Str2List(str string, sep string) []string {
	list := make([]string, 0)
	if str == "" {
		return list
	}

	seen := make(map[string]bool)
	for _, elem := range strings.Split(str, sep) {
		elem = strings.TrimSpace(elem)
		if len(elem) == 0 || seen[elem] {
			continue
		}
		seen[elem] = true
		list = append(list, elem)
	}
	return list
}

// ParseTimecode accepts "hh:mm:ss", "mm:ss", plain seconds ("90", "12.5")
// or a Go duration ("1m30s"). An empty string is zero.
func ParseTimecode(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if !strings.Contains(s, ":") {
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			if secs < 0 {
				return 0, fmt.Errorf("negative timecode %q", s)
			}
			return time.Duration(secs * float64(time.Second)).Round(time.Millisecond), nil
		}
		d, err := time.ParseDuration(s)
		if err != nil || d < 0 {
			return 0, fmt.Errorf("invalid timecode %q", s)
		}
		return d, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timecode %q", s)
	}
	var total float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid timecode %q", s)
		}
		// Every field but the first is bounded by 60.
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("invalid timecode %q", s)
		}
		total = total*60 + v
	}
	return time.Duration(total * float64(time.Second)).Round(time.Millisecond), nil
}

// FormatTimecode renders d as mm:ss, or hh:mm:ss from one hour up.
func FormatTimecode(d time.Duration) string {
	secs := int64(d / time.Second)
	h, m, s := secs/3600, secs/60%60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
