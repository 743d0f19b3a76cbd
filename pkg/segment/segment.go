// Package segment turns streamed text fragments into speakable sentences.
//
// Generation sources emit text in arbitrary-length fragments with no regard
// for word or sentence boundaries. The Segmenter accumulates fragments and
// yields complete sentences as soon as they are long enough to be worth
// synthesizing, so playback can begin while the rest of the response is
// still being generated. Emission preserves every character: the
// concatenation of emitted sentences plus the remaining buffer always
// equals the text appended so far.
package segment

import (
	"strings"
	"unicode/utf8"
)

// Defaults tuned for the appliance's TTS: sentences shorter than ~30
// characters produce choppy audio, so short fragments are held and merged
// with the following sentence.
const (
	DefaultMinLength  = 30
	DefaultDelimiters = ".!?:;"
)

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithMinLength sets the minimum emission length in characters (runes).
// Values below 1 are treated as 1.
func WithMinLength(n int) Option {
	return func(s *Segmenter) {
		if n < 1 {
			n = 1
		}
		s.minLen = n
	}
}

// WithDelimiters sets the sentence-ending delimiter set. Delimiters must
// be ASCII; an empty string keeps the default set.
func WithDelimiters(d string) Option {
	return func(s *Segmenter) {
		if d != "" {
			s.delims = d
		}
	}
}

// Segmenter accumulates streamed text and emits complete sentences.
// Not safe for concurrent use; each generation turn owns one instance
// or calls Reset before reuse.
type Segmenter struct {
	minLen int
	delims string
	buf    string
}

// New creates a Segmenter with the default delimiter set and minimum length.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{
		minLen: DefaultMinLength,
		delims: DefaultDelimiters,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Push appends a fragment and returns the complete sentences it unlocked,
// in order. A sentence ends at a delimiter and is emitted only once the
// prefix up to that delimiter reaches the minimum length; shorter prefixes
// are merged forward to the next delimiter.
func (s *Segmenter) Push(fragment string) []string {
	s.buf += fragment

	var out []string
	for {
		sentence, ok := s.scanOnce()
		if !ok {
			break
		}
		out = append(out, sentence)
	}
	return out
}

// scanOnce emits the earliest long-enough sentence from the buffer, walking
// delimiter to delimiter until the prefix meets the minimum length. Returns
// false when no delimiter closes a long-enough prefix yet.
func (s *Segmenter) scanOnce() (string, bool) {
	from := 0
	for {
		i := strings.IndexAny(s.buf[from:], s.delims)
		if i < 0 {
			return "", false
		}
		end := from + i
		prefix := s.buf[:end+1]
		if utf8.RuneCountInString(prefix) >= s.minLen {
			s.buf = s.buf[end+1:]
			return prefix, true
		}
		from = end + 1
	}
}

// Flush unconditionally emits whatever remains in the buffer, even below
// the minimum length. The second return is false when there was nothing
// to flush.
func (s *Segmenter) Flush() (string, bool) {
	if s.buf == "" {
		return "", false
	}
	rest := s.buf
	s.buf = ""
	return rest, true
}

// Reset discards any buffered text. Call at the start of a generation turn.
func (s *Segmenter) Reset() {
	s.buf = ""
}

// Buffered returns the text held back waiting for more input.
func (s *Segmenter) Buffered() string {
	return s.buf
}

// MinLength returns the configured minimum emission length.
func (s *Segmenter) MinLength() int {
	return s.minLen
}
