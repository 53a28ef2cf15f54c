package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/codemeta2mp/internal/cache"
	"github.com/ppiankov/codemeta2mp/internal/model"
)

// StdinSource is the source name that reads from standard input
const StdinSource = "-"

// Source is a raw source document
type Source struct {
	Name   string // As given by the caller
	Data   []byte
	Remote bool
	Cached bool // Served from the cache
}

// Loader reads sources from files, stdin or http(s) URLs
type Loader struct {
	fetcher *Fetcher
	cache   cache.Cache
	stdin   io.Reader
}

// NewLoader creates a loader; a nil store disables caching of remote sources
func NewLoader(fetcher *Fetcher, store cache.Cache, stdin io.Reader) *Loader {
	if store == nil {
		store = cache.Nop{}
	}
	if stdin == nil {
		stdin = os.Stdin
	}
	return &Loader{fetcher: fetcher, cache: store, stdin: stdin}
}

// IsRemote reports whether a source name is an http(s) URL
func IsRemote(name string) bool {
	return strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://")
}

// Load reads one source document
func (l *Loader) Load(ctx context.Context, name string) (*Source, error) {
	switch {
	case name == StdinSource:
		data, err := io.ReadAll(l.stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return &Source{Name: name, Data: data}, nil

	case IsRemote(name):
		key := cache.Key("source", name)
		if data, ok := l.cache.Get(key); ok {
			return &Source{Name: name, Data: data, Remote: true, Cached: true}, nil
		}
		if l.fetcher == nil {
			return nil, fmt.Errorf("load %s: remote sources are not enabled", name)
		}
		result, err := l.fetcher.FetchWithRetry(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		data, err := unwrapHTML(name, result.FinalURL, result.ContentType, result.Body)
		if err != nil {
			return nil, err
		}
		_ = l.cache.Set(key, data, 0)
		return &Source{Name: name, Data: data, Remote: true}, nil

	default:
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		data, err = unwrapHTML(name, name, "", data)
		if err != nil {
			return nil, err
		}
		return &Source{Name: name, Data: data}, nil
	}
}

// unwrapHTML replaces an HTML page with the JSON-LD it embeds; other
// documents pass through. location is where the data was read from, after
// redirects, and decides when there is no Content-Type.
func unwrapHTML(name, location, contentType string, data []byte) ([]byte, error) {
	if !isHTML(contentType, location) {
		return data, nil
	}
	embedded, err := ExtractJSONLD(data)
	if err != nil {
		return nil, &model.ParseError{Source: name, Err: err}
	}
	return embedded, nil
}
