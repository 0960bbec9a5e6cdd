package pipeline

import (
	"regexp"
	"strings"
)

// Preprocess applies a first-difference high-pass approximation blended with
// the original signal, then peak-normalizes to 0.8 of full scale.
func Preprocess(samples []float32) []float32 {
	out := make([]float32, len(samples))
	if len(samples) == 0 {
		return out
	}

	prev := samples[0]
	for i, s := range samples {
		filtered := s - prev
		out[i] = filtered*0.95 + s*0.05
		prev = s
	}

	var peak float32
	for _, s := range out {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	if peak > 0 {
		scale := 0.8 / peak
		for i := range out {
			out[i] *= scale
		}
	}
	return out
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// PostprocessText trims the transcript, collapses repeated whitespace and
// removes stray spaces before terminal punctuation.
func PostprocessText(text string) string {
	text = strings.TrimSpace(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	for _, p := range []string{".", ",", "?", "!"} {
		text = strings.ReplaceAll(text, " "+p, p)
	}
	return text
}
