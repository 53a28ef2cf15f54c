package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// ErrNoEmbeddedJSONLD is returned for an HTML page without a JSON-LD script
var ErrNoEmbeddedJSONLD = errors.New("no application/ld+json script in HTML page")

// isHTML reports whether a document should be searched for embedded JSON-LD,
// judged by its Content-Type or, lacking one, its file extension
func isHTML(contentType, name string) bool {
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		return err == nil && (mediaType == "text/html" || mediaType == "application/xhtml+xml")
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return false
}

// ExtractJSONLD returns the JSON-LD embedded in an HTML page. A single
// script is returned as is; several are combined into a JSON array so every
// software node on the page gets converted. Scripts that are not valid JSON
// are skipped.
func ExtractJSONLD(page []byte) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	var blocks []json.RawMessage
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" && isJSONLDScript(n) {
			var text strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					text.WriteString(c.Data)
				}
			}
			if block := bytes.TrimSpace([]byte(text.String())); json.Valid(block) {
				blocks = append(blocks, block)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	switch len(blocks) {
	case 0:
		return nil, ErrNoEmbeddedJSONLD
	case 1:
		return blocks[0], nil
	default:
		return json.Marshal(blocks)
	}
}

func isJSONLDScript(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key == "type" {
			mediaType, _, err := mime.ParseMediaType(attr.Val)
			return err == nil && mediaType == "application/ld+json"
		}
	}
	return false
}
