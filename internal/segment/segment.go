// Package segment partitions decoded audio into fixed-length, contiguous,
// index-ordered segments.
package segment

import (
	"errors"
	"fmt"

	"github.com/sjzar/tubescribe/internal/audio"
)

// ErrInvalidChunkLength is returned when the chunk length is not positive.
var ErrInvalidChunkLength = errors.New("chunk length must be positive")

// Span is the half-open interval [StartMS, EndMS) covered by segment Index.
type Span struct {
	Index   int
	StartMS int64
	EndMS   int64
}

// DurationMS returns the length of the span.
func (s Span) DurationMS() int64 {
	return s.EndMS - s.StartMS
}

func (s Span) String() string {
	return fmt.Sprintf("chunk %d: [%d, %d)", s.Index, s.StartMS, s.EndMS)
}

// Segment is a Span together with the audio it covers.
type Segment struct {
	Span
	Audio *audio.Buffer
}

// Count returns ceil(durationMS / chunkMS).
func Count(durationMS, chunkMS int64) int {
	if durationMS <= 0 || chunkMS <= 0 {
		return 0
	}
	return int((durationMS + chunkMS - 1) / chunkMS)
}

// Spans computes the segment boundaries for a recording of durationMS.
func Spans(durationMS, chunkMS int64) ([]Span, error) {
	if chunkMS <= 0 {
		return nil, ErrInvalidChunkLength
	}
	n := Count(durationMS, chunkMS)
	spans := make([]Span, n)
	for i := 0; i < n; i++ {
		start := int64(i) * chunkMS
		spans[i] = Span{
			Index:   i,
			StartMS: start,
			EndMS:   min(start+chunkMS, durationMS),
		}
	}
	return spans, nil
}

// Split slices buf into segments of chunkMS milliseconds. The last segment
// may be shorter. Zero-length audio yields no segments.
func Split(buf *audio.Buffer, chunkMS int64) ([]Segment, error) {
	spans, err := Spans(buf.DurationMS(), chunkMS)
	if err != nil {
		return nil, err
	}
	segments := make([]Segment, len(spans))
	for i, sp := range spans {
		segments[i] = Segment{Span: sp, Audio: buf.Slice(sp.StartMS, sp.EndMS)}
	}
	return segments, nil
}
