// Package parser defines content extraction for full-text indexing. Parsers
// are selected by filename extension; formats without a dedicated parser fall
// through to a plain-text catch-all.
package parser

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Params carries the context a parser may need while extracting content.
type Params struct {
	FileName    string
	FileVersion string
	Locale      string
	Tenant      string
}

// Parser extracts searchable text from a document's binary content.
type Parser interface {
	// Parse extracts the full text of the stream.
	Parse(ctx context.Context, r io.Reader, params Params) (string, error)

	// CountPages estimates the page count of the stream. Implementations
	// return 1 when the format has no page concept.
	CountPages(r io.Reader, filename string) (int, error)
}

// Registry maps filename extensions to parsers.
type Registry struct {
	mu       sync.RWMutex
	parsers  map[string]Parser
	catchAll Parser
}

// NewRegistry creates a registry with the plain-text catch-all installed.
func NewRegistry() *Registry {
	return &Registry{
		parsers:  make(map[string]Parser),
		catchAll: &TextParser{},
	}
}

// Register installs a parser for the given extensions (without dots).
func (r *Registry) Register(p Parser, extensions ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range extensions {
		r.parsers[strings.ToLower(ext)] = p
	}
}

// ForFilename selects the parser for a filename by its extension, falling
// back to the catch-all.
func (r *Registry) ForFilename(filename string) Parser {
	ext := ""
	if idx := strings.LastIndex(filename, "."); idx >= 0 && idx < len(filename)-1 {
		ext = strings.ToLower(filename[idx+1:])
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.parsers[ext]; ok {
		return p
	}
	return r.catchAll
}

// ParsingError reports a content extraction failure.
type ParsingError struct {
	FileName string
	Err      error
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("cannot parse %s: %v", e.FileName, e.Err)
}

func (e *ParsingError) Unwrap() error {
	return e.Err
}
