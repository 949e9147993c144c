package content

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/vuldin/socrev-cms/pkg/models"
)

// Iframes do not survive HTML-to-Markdown conversion, so before converting we
// swap each one for a text token carrying its src. The tokens pass through the
// converter untouched and are picked back up during classification.
const (
	embedTokenStart = "IFRAME-START"
	embedTokenEnd   = "IFRAME-END"
)

var embedTokenRe = regexp.MustCompile(embedTokenStart + `(.*?)` + embedTokenEnd)

var (
	youtubeRe = regexp.MustCompile(`(?:youtube\.com/(?:[^/\s]+/\S+/|(?:v|e(?:mbed)?)/|\S*?[?&]v=)|youtu\.be/)([\w-]{11})`)
	vimeoRe   = regexp.MustCompile(`vimeo\.com/(?:channels/(?:\w+/)?|groups/[^/]*/videos/|video/)?(\d+)`)
)

// tokenizeEmbeds replaces every iframe element in raw with an embed token.
// Malformed input is returned unchanged; the tokenizer never fails a post.
func tokenizeEmbeds(raw string) string {
	if !strings.Contains(raw, "<iframe") {
		return raw
	}
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return raw
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for child := n.FirstChild; child != nil; {
			next := child.NextSibling
			if child.Type == html.ElementNode && child.Data == "iframe" {
				token := &html.Node{
					Type: html.TextNode,
					Data: embedTokenStart + attrValue(child, "src") + embedTokenEnd,
				}
				n.InsertBefore(token, child)
				n.RemoveChild(child)
			} else {
				walk(child)
			}
			child = next
		}
	}
	walk(doc)

	body := findElement(doc, "body")
	if body == nil {
		return raw
	}
	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return raw
		}
	}
	return buf.String()
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

// extractEmbeds pulls embed tokens out of a markdown unit and returns the
// embedded src URLs alongside the remaining text.
func extractEmbeds(text string) ([]string, string) {
	matches := embedTokenRe.FindAllStringSubmatch(text, -1)
	if matches == nil {
		return nil, text
	}
	srcs := make([]string, 0, len(matches))
	for _, m := range matches {
		srcs = append(srcs, m[1])
	}
	rest := strings.TrimSpace(embedTokenRe.ReplaceAllString(text, " "))
	return srcs, rest
}

// videoBlock maps an embed src to a provider block. Only YouTube (including
// youtu.be short links) and Vimeo are recognized; anything else is dropped.
func videoBlock(src string) (models.ContentBlock, bool) {
	if m := youtubeRe.FindStringSubmatch(src); m != nil {
		return models.ContentBlock{Key: models.BlockYouTube, Val: m[1]}, true
	}
	if m := vimeoRe.FindStringSubmatch(src); m != nil {
		return models.ContentBlock{Key: models.BlockVimeo, Val: m[1]}, true
	}
	return models.ContentBlock{}, false
}
