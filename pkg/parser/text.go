package parser

import (
	"bufio"
	"context"
	"io"
	"strings"
	"unicode"
)

// maxTextBytes caps how much content the plain-text parser reads, so a huge
// binary mistaken for text cannot exhaust memory.
const maxTextBytes = 32 << 20

// linesPerPage approximates pagination for formats without page structure.
const linesPerPage = 50

// TextParser is the catch-all parser: it treats the stream as text, dropping
// non-printable bytes. Binary formats extracted this way yield little useful
// content but never fail the indexing pass.
type TextParser struct{}

// Parse reads the stream as text.
func (p *TextParser) Parse(ctx context.Context, r io.Reader, params Params) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxTextBytes))
	if err != nil {
		return "", &ParsingError{FileName: params.FileName, Err: err}
	}

	var b strings.Builder
	b.Grow(len(data))
	for _, ru := range string(data) {
		if unicode.IsPrint(ru) || unicode.IsSpace(ru) {
			b.WriteRune(ru)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// CountPages counts pages by line blocks.
func (p *TextParser) CountPages(r io.Reader, filename string) (int, error) {
	scanner := bufio.NewScanner(io.LimitReader(r, maxTextBytes))
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	lines := 0
	for scanner.Scan() {
		lines++
	}
	if err := scanner.Err(); err != nil {
		return 1, err
	}
	pages := lines/linesPerPage + 1
	return pages, nil
}
