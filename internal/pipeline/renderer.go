package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ppiankov/codemeta2mp/internal/model"
)

// Renderer writes tool records as JSON. It remembers the files it has
// written so records of one run never overwrite each other.
type Renderer struct {
	pretty bool

	mu      sync.Mutex
	written map[string]bool
}

// NewRenderer creates a renderer; pretty indents each document
func NewRenderer(pretty bool) *Renderer {
	return &Renderer{pretty: pretty, written: make(map[string]bool)}
}

// claim reserves the first free path of base-n.json in dir, counting up from n.
// n == 0 tries base.json first and continues with base-2.json.
func (r *Renderer) claim(dir, base string, n int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		name := base
		if n > 0 {
			name = fmt.Sprintf("%s-%d", base, n)
		}
		path := filepath.Join(dir, name+".json")
		if !r.written[path] {
			r.written[path] = true
			return path
		}
		if n == 0 {
			n = 2
		} else {
			n++
		}
	}
}

func (r *Renderer) marshal(v any) ([]byte, error) {
	if r.pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// RenderRecords writes one JSON document per record, each followed by a newline
func (r *Renderer) RenderRecords(w io.Writer, conversions []*model.Conversion) error {
	for _, conv := range conversions {
		data, err := r.marshal(conv.Record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// RenderJSON writes the records of a result to dir as stem.json, one file per
// record (stem-N.json when there are several). A name already written by this
// renderer moves on to the next free number. It returns the paths written.
func (r *Renderer) RenderJSON(result *Result, dir, stem string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	base := stem
	if base == "" {
		base = OutputName(result.Source)
	}
	var paths []string
	for i, conv := range result.Conversions {
		n := 0
		if len(result.Conversions) > 1 {
			n = i + 1
		}
		path := r.claim(dir, base, n)

		data, err := r.marshal(conv.Record)
		if err != nil {
			return paths, fmt.Errorf("marshal record: %w", err)
		}
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// RenderSummary prints warnings and submissions of a result
func (r *Renderer) RenderSummary(w io.Writer, result *Result) {
	for _, conv := range result.Conversions {
		label := conv.Record.Label
		if label == "" {
			label = conv.SourceID
		}
		_, _ = fmt.Fprintf(w, "%s: %s (%d warnings)\n", result.Source, label, len(conv.Warnings))
		for _, warn := range conv.Warnings {
			_, _ = fmt.Fprintf(w, "  [%s] %s: %s\n", warn.Code, warn.Field, warn.Message)
		}
	}
	for _, sub := range result.Submissions {
		_, _ = fmt.Fprintf(w, "  %s -> %s\n", sub.Method, sub.Item.PersistentID)
	}
}

// OutputName derives a file name stem from a source path or URL.
// A generic codemeta.json takes the name of its parent directory.
func OutputName(source string) string {
	if source == StdinSource {
		return "stdin"
	}
	name := source
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}

	var segments []string
	for _, seg := range strings.FieldsFunc(filepath.ToSlash(name), func(r rune) bool { return r == '/' }) {
		seg = strings.TrimSuffix(strings.TrimSuffix(seg, ".json"), ".jsonld")
		if seg != "" && !strings.HasSuffix(seg, ":") {
			segments = append(segments, seg)
		}
	}

	switch n := len(segments); {
	case n == 0:
		return "record"
	case segments[n-1] == "codemeta" && n > 1:
		return segments[n-2]
	default:
		return segments[n-1]
	}
}
