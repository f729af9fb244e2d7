// Package chunker splits document text into indexable chunks.
package chunker

import (
	"strings"
)

const (
	DefaultTargetSize = 400
	DefaultMaxSize    = 600
)

// Options configures chunking behavior.
type Options struct {
	TargetSize int
	MaxSize    int
}

// DefaultOptions returns default chunking options.
func DefaultOptions() Options {
	return Options{
		TargetSize: DefaultTargetSize,
		MaxSize:    DefaultMaxSize,
	}
}

// Chunk splits text into chunks sized for embedding and search. Short text
// (<= MaxSize) returns a single chunk; empty text returns nil.
func Chunk(text string, opts Options) []string {
	if opts.TargetSize == 0 {
		opts = DefaultOptions()
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= opts.MaxSize {
		return []string{text}
	}

	blocks := splitBlocks(text)
	return packBlocks(blocks, opts)
}

// splitBlocks splits text on markdown headings and paragraph breaks.
func splitBlocks(text string) []string {
	var blocks []string
	var current []string

	flush := func() {
		t := strings.TrimSpace(strings.Join(current, "\n"))
		if t != "" {
			blocks = append(blocks, t)
		}
		current = nil
	}

	prevEmpty := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "#") && len(current) > 0 {
			flush()
		}
		if trimmed == "" {
			if prevEmpty && len(current) > 0 {
				flush()
			}
			prevEmpty = true
			current = append(current, line)
			continue
		}
		prevEmpty = false
		current = append(current, line)
	}
	flush()

	return blocks
}

// packBlocks greedily merges adjacent blocks up to the target size and
// hard-splits any block that still exceeds the max.
func packBlocks(blocks []string, opts Options) []string {
	var chunks []string
	accum := ""

	flush := func() {
		t := strings.TrimSpace(accum)
		accum = ""
		if t == "" {
			return
		}
		if len(t) > opts.MaxSize {
			chunks = append(chunks, hardSplit(t, opts.TargetSize)...)
			return
		}
		chunks = append(chunks, t)
	}

	for _, b := range blocks {
		if accum == "" {
			accum = b
			continue
		}
		if len(accum)+len(b)+2 <= opts.TargetSize {
			accum += "\n\n" + b
		} else {
			flush()
			accum = b
		}
	}
	flush()

	return chunks
}

// hardSplit breaks oversized text on line boundaries near the target size.
func hardSplit(text string, target int) []string {
	var chunks []string
	var current []string
	size := 0

	emit := func() {
		t := strings.TrimSpace(strings.Join(current, "\n"))
		if t != "" {
			chunks = append(chunks, t)
		}
		current = nil
		size = 0
	}

	for _, line := range strings.Split(text, "\n") {
		if size+len(line) > target && len(current) > 0 {
			emit()
		}
		current = append(current, line)
		size += len(line) + 1
	}
	emit()

	return chunks
}
