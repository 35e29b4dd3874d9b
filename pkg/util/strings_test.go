package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimecode(t *testing.T) {
	cases := map[string]time.Duration{
		"":         0,
		"90":       90 * time.Second,
		"12.5":     12500 * time.Millisecond,
		"1m30s":    90 * time.Second,
		"02:30":    150 * time.Second,
		"1:02:03":  time.Hour + 2*time.Minute + 3*time.Second,
		"00:00.25": 250 * time.Millisecond,
	}
	for in, want := range cases {
		got, err := ParseTimecode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"abc", "1:75", "-3", "1:2:3:4", "a:10"} {
		_, err := ParseTimecode(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatTimecode(t *testing.T) {
	assert.Equal(t, "02:30", FormatTimecode(150*time.Second))
	assert.Equal(t, "1:02:03", FormatTimecode(time.Hour+2*time.Minute+3*time.Second))
}

func TestStr2List(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Str2List(" a, b ,a,,", ","))
	assert.Empty(t, Str2List("", ","))
}

func TestServeURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:5031", ServeURL("127.0.0.1:5031"))
	assert.Equal(t, "http://[::1]:80", ServeURL("[::1]:80"))
	assert.Contains(t, ServeURL(":5031"), ":5031")
}
