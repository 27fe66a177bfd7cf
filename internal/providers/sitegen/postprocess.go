package sitegen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrEmptyDocument is returned when a provider answers with no usable markup.
var ErrEmptyDocument = errors.New("generated document is empty")

const (
	viewportMeta  = `<meta name="viewport" content="width=device-width, initial-scale=1.0">`
	chatContainer = `<div id="ai-chat-container"></div>`
)

// PostProcess strips markdown fences from model output and makes sure the
// document has a doctype, a viewport meta tag and the chat container.
func PostProcess(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	text = strings.ReplaceAll(text, "```html", "")
	text = strings.ReplaceAll(text, "```HTML", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyDocument
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return "", fmt.Errorf("parse generated html: %w", err)
	}
	body := doc.Find("body")
	if strings.TrimSpace(body.Text()) == "" && body.Children().Length() == 0 {
		return "", ErrEmptyDocument
	}

	if doc.Find(`meta[name="viewport"]`).Length() == 0 {
		doc.Find("head").PrependHtml(viewportMeta)
	}
	if doc.Find("#ai-chat-container").Length() == 0 {
		if footer := body.Find("footer").First(); footer.Length() > 0 {
			footer.BeforeHtml(chatContainer)
		} else {
			body.AppendHtml(chatContainer)
		}
	}

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("render generated html: %w", err)
	}
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(out)), "<!DOCTYPE") {
		out = "<!DOCTYPE html>\n" + out
	}
	return out, nil
}
