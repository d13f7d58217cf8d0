package source

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Parser turns the content of one handler source file into a File.
type Parser interface {
	Parse(ctx context.Context, path string, content []byte) (*File, error)
}

// ParserFactory creates a Parser. baseInitializers are the function names
// whose first string argument declares a class scope, for languages that
// have no built-in notion of one.
type ParserFactory func(baseInitializers []string) Parser

// Registry maps file extensions to language parsers. The first
// registration for an extension wins.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]ParserFactory // language -> factory
	extMap  map[string]string        // extension -> language
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{
		parsers: make(map[string]ParserFactory),
		extMap:  make(map[string]string),
	}
}

// DefaultRegistry is populated by the language packages' init functions.
var DefaultRegistry = NewRegistry()

// Register adds a parser factory for the given extensions. Extensions
// include the leading dot.
func (r *Registry) Register(language string, extensions []string, factory ParserFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.parsers[language] = factory
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if _, exists := r.extMap[ext]; !exists {
			r.extMap[ext] = language
		}
	}
}

// Language returns the language registered for the extension of path.
func (r *Registry) Language(path string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lang, ok := r.extMap[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}

// ParserFor creates the parser for the extension of path.
func (r *Registry) ParserFor(path string, baseInitializers []string) (Parser, error) {
	lang, ok := r.Language(path)
	if !ok {
		return nil, fmt.Errorf("no parser registered for %q", filepath.Ext(path))
	}

	r.mu.RLock()
	factory := r.parsers[lang]
	r.mu.RUnlock()

	return factory(baseInitializers), nil
}

// Languages returns the registered language names, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.parsers))
	for name := range r.parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
