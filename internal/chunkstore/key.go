package chunkstore

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/cespare/xxhash"
)

// Key identifies the cached transcript of one segment of one job.
type Key struct {
	Base   string
	Layout string
	Index  int
}

func (k Key) String() string {
	return fmt.Sprintf("%s_chunk_%d_%s", k.Base, k.Index, k.Layout)
}

// TextName is the file name of the chunk's transcript record.
func (k Key) TextName() string {
	return k.String() + ".txt"
}

// AudioName is the file name of the chunk's transient audio.
func (k Key) AudioName() string {
	return k.String() + ".wav"
}

// Layout fingerprints the segmentation parameters. Records cached under one
// layout are never read back under another, so changing the chunk length
// cannot attribute old text to new segment boundaries.
func Layout(chunkMS int64) string {
	return WindowLayout(chunkMS, 0, 0)
}

// WindowLayout is Layout for audio trimmed to [startMS, endMS) before
// segmentation. endMS <= 0 means the end of the audio.
func WindowLayout(chunkMS, startMS, endMS int64) string {
	params := "chunk_ms=" + strconv.FormatInt(chunkMS, 10)
	if startMS > 0 || endMS > 0 {
		params += fmt.Sprintf(";start_ms=%d;end_ms=%d", startMS, endMS)
	}
	return fmt.Sprintf("%08x", uint32(xxhash.Sum64String(params)))
}

// chunkPattern matches any chunk artifact of base, capturing index, layout and extension.
func chunkPattern(base string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `_chunk_(\d+)_([0-9a-f]{8})\.(txt|wav)$`)
}

func parseName(re *regexp.Regexp, base, name string) (Key, string, bool) {
	m := re.FindStringSubmatch(name)
	if m == nil {
		return Key{}, "", false
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil {
		return Key{}, "", false
	}
	return Key{Base: base, Layout: m[2], Index: idx}, m[3], true
}
