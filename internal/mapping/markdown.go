package mapping

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

var (
	// Block and inline tags seen in descriptions copied from package registries
	markupRe         = regexp.MustCompile(`(?i)</?(p|br|a|ul|ol|li|b|i|em|strong|code|pre|h[1-6]|div|span|blockquote|table)\b[^>]*>`)
	excessiveLinesRe = regexp.MustCompile(`\n{3,}`)
)

var markdownConverter = newMarkdownConverter()

func newMarkdownConverter() *md.Converter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return converter
}

// hasMarkup reports whether text carries HTML tags
func hasMarkup(text string) bool {
	return markupRe.MatchString(text)
}

// toMarkdown converts an HTML description to the Markdown the Marketplace
// renders. Plain text is returned unchanged.
func toMarkdown(text string) (string, error) {
	if !hasMarkup(text) {
		return text, nil
	}
	out, err := markdownConverter.ConvertString(text)
	if err != nil {
		return "", err
	}

	lines := strings.Split(out, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	out = excessiveLinesRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(out), nil
}
