package persona

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"synthetic_panel/pkg/core/utils"
)

// maxBriefChars caps how much brief text gets injected into a prompt.
const maxBriefChars = 4000

// LoadBrief reads a concept brief from disk and reduces it to plain text
// suitable for prompt injection. HTML briefs are stripped down to their
// visible text; anything else is treated as plain text.
func LoadBrief(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read brief %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".html" || ext == ".htm" {
		return briefFromHTML(string(data))
	}
	return truncateBrief(utils.CollapseWhitespaceKeepParagraphs(string(data))), nil
}

func briefFromHTML(raw string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to parse brief html: %w", err)
	}
	doc.Find("script, style, nav, header, footer").Remove()

	var paragraphs []string
	doc.Find("h1, h2, h3, p, li").Each(func(_ int, sel *goquery.Selection) {
		if text := utils.CollapseWhitespace(sel.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		// No structural elements; fall back to the body text.
		if text := utils.CollapseWhitespace(doc.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	return truncateBrief(strings.Join(paragraphs, "\n\n")), nil
}

func truncateBrief(s string) string {
	if len(s) <= maxBriefChars {
		return s
	}
	return s[:maxBriefChars]
}
