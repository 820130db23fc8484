// Package chunk splits extracted document text into overlapping fragments
// sized for embedding.
//
// The splitter slides a fixed window across the text and prefers to cut at
// a sentence boundary near the end of each window, so fragments tend to end
// on complete sentences instead of mid-word. Consecutive fragments share an
// overlap region to preserve context across the cut.
package chunk

import "strings"

const (
	// DefaultTargetSize is the window size in bytes.
	DefaultTargetSize = 2000

	// DefaultOverlap is how many bytes consecutive fragments share.
	DefaultOverlap = 200

	// MinChars is the length floor for fragments. Fragments whose trimmed
	// length is MinChars or less are dropped; they carry too little signal
	// to be worth a vector.
	MinChars = 50

	// boundaryFraction is how far into the window a sentence boundary must
	// sit before the splitter will cut there. Cutting earlier would produce
	// fragments far below the target size.
	boundaryFraction = 0.8
)

// Options configure Split. Zero values fall back to the package defaults.
type Options struct {
	TargetSize int
	Overlap    int
	MinChars   int
}

// Option mutates Options.
type Option func(*Options)

// WithTargetSize overrides the window size.
func WithTargetSize(n int) Option {
	return func(o *Options) { o.TargetSize = n }
}

// WithOverlap overrides the overlap between consecutive fragments.
func WithOverlap(n int) Option {
	return func(o *Options) { o.Overlap = n }
}

// WithMinChars overrides the minimum kept fragment length.
func WithMinChars(n int) Option {
	return func(o *Options) { o.MinChars = n }
}

// Split breaks text into overlapping fragments.
//
// Each window of TargetSize bytes is cut at the last period found past
// boundaryFraction of the window; when no such period exists the full
// window becomes the fragment. The next window starts Overlap bytes before
// the cut, so neighbouring fragments share context. The final window is
// always taken whole. Fragments whose trimmed length is MinChars or less
// are dropped.
func Split(text string, opts ...Option) []string {
	o := Options{
		TargetSize: DefaultTargetSize,
		Overlap:    DefaultOverlap,
		MinChars:   MinChars,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.TargetSize <= 0 {
		o.TargetSize = DefaultTargetSize
	}
	if o.Overlap < 0 || o.Overlap >= o.TargetSize {
		o.Overlap = DefaultOverlap
	}

	var out []string
	keep := func(fragment string) {
		if trimmed := strings.TrimSpace(fragment); len(trimmed) > o.MinChars {
			out = append(out, trimmed)
		}
	}

	boundary := int(float64(o.TargetSize) * boundaryFraction)

	i := 0
	for i < len(text) {
		if i+o.TargetSize >= len(text) {
			// Final window: take the remainder whole, no sentence cut.
			keep(text[i:])
			break
		}

		window := text[i : i+o.TargetSize]
		cut := len(window)
		if idx := strings.LastIndexByte(window, '.'); idx >= boundary {
			cut = idx + 1
		}
		keep(window[:cut])

		advance := cut - o.Overlap
		if advance <= 0 {
			// Degenerate overlap settings must still make progress.
			advance = cut
		}
		i += advance
	}

	return out
}
