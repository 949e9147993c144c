package content

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/vuldin/socrev-cms/pkg/logging"
	"github.com/vuldin/socrev-cms/pkg/models"
)

// RefResolver rewrites the href side of a reference table. The returned map
// carries the same keys as the input; hrefs that cannot be resolved come back
// with a fallback value rather than an error.
type RefResolver interface {
	Resolve(ctx context.Context, refs map[string]string) map[string]string
}

// Caption heuristic: short text without a sentence terminator.
const captionMaxLen = 200

var (
	imageTokenRe = regexp.MustCompile(`!\[.*?\]\((.*?)\)`)
	refMarkRe    = regexp.MustCompile(`\[(\d{1,3})\]`)
	refDefRe     = regexp.MustCompile(`^\[(\d{1,3})\]:\s+(\S+)`)
	headingRe    = regexp.MustCompile(`^#{1,6}\s+`)
	sentenceRe   = regexp.MustCompile(`[.!?]['")\]]*(\s|$)`)
)

// Parser converts a rendered HTML article body into an ordered sequence of
// typed content blocks.
type Parser struct {
	converter *md.Converter
	resolver  RefResolver
	logger    logging.Logger
}

func NewParser(resolver RefResolver, logger logging.Logger) *Parser {
	converter := md.NewConverter("", true, &md.Options{
		LinkStyle:          "referenced",
		LinkReferenceStyle: "full",
	})
	return &Parser{
		converter: converter,
		resolver:  resolver,
		logger:    logger,
	}
}

// Parse tokenizes iframe embeds, converts the body to Markdown with
// referenced links, splits it into blank-line units and classifies each unit
// into content blocks. Block order follows document order.
func (p *Parser) Parse(ctx context.Context, rawHTML string) ([]models.ContentBlock, error) {
	markdown, err := p.converter.ConvertString(tokenizeEmbeds(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("converting article body to markdown: %w", err)
	}

	units := strings.Split(markdown, "\n\n")
	units, refs := splitRefTable(units)
	if len(refs) > 0 && p.resolver != nil {
		refs = p.resolver.Resolve(ctx, refs)
	}

	blocks := []models.ContentBlock{}
	for _, unit := range units {
		blocks = append(blocks, p.classifyUnit(unit, refs)...)
	}
	return blocks, nil
}

// Clean converts a rendered HTML fragment (title, excerpt) to Markdown text.
// Conversion failures fall back to the raw input.
func (p *Parser) Clean(rawHTML string) string {
	text, err := p.converter.ConvertString(rawHTML)
	if err != nil {
		return strings.TrimSpace(rawHTML)
	}
	return strings.TrimSpace(text)
}

// CleanExcerpt is Clean with any image tokens removed. Excerpts sometimes
// lead with the featured image, which the mirror renders separately.
func (p *Parser) CleanExcerpt(rawHTML string) string {
	text := imageTokenRe.ReplaceAllString(p.Clean(rawHTML), " ")
	return strings.TrimSpace(text)
}

// classifyUnit runs one markdown unit through the classification rules in
// precedence order: images, then video embeds, then heading, then reference
// expansion and the caption/paragraph split.
func (p *Parser) classifyUnit(unit string, refs map[string]string) []models.ContentBlock {
	var blocks []models.ContentBlock

	images, rest := extractImages(unit)
	for _, url := range images {
		blocks = append(blocks, models.ContentBlock{Key: models.BlockImage, Val: url})
	}

	embeds, rest := extractEmbeds(rest)
	for _, src := range embeds {
		block, ok := videoBlock(src)
		if !ok {
			p.logger.WithField("src", src).Warn("Dropping embed from unrecognized provider")
			continue
		}
		blocks = append(blocks, block)
	}

	text := strings.TrimSpace(rest)
	if text == "" {
		return blocks
	}

	// A unit that carried an image is never a heading; its leftover text is
	// prose (usually a caption for the image just extracted).
	if headingRe.MatchString(text) {
		stripped := strings.TrimSpace(headingRe.ReplaceAllString(text, ""))
		if len(images) == 0 {
			return append(blocks, models.ContentBlock{Key: models.BlockHeading, Val: stripped})
		}
		text = stripped
		if text == "" {
			return blocks
		}
	}

	key := models.BlockParagraph
	if isCaption(text) {
		key = models.BlockCaption
	}
	expanded, err := expandRefs(text, refs)
	if err != nil {
		p.logger.WithError(err).Warn("Emitting block with unresolved link reference")
		expanded = text
	}
	return append(blocks, models.ContentBlock{Key: key, Val: expanded})
}

// extractImages returns the URLs of all image tokens in document order and
// the unit text with the tokens removed.
func extractImages(text string) ([]string, string) {
	matches := imageTokenRe.FindAllStringSubmatch(text, -1)
	if matches == nil {
		return nil, text
	}
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		// an inline title ("url \"title\"") is not part of the URL
		if fields := strings.Fields(m[1]); len(fields) > 0 {
			urls = append(urls, fields[0])
		}
	}
	rest := strings.TrimSpace(imageTokenRe.ReplaceAllString(text, " "))
	return urls, rest
}

// splitRefTable detaches the trailing reference-definition unit the converter
// appends when the article contains links. A trailing unit qualifies only
// when every line is a numeric reference definition.
func splitRefTable(units []string) ([]string, map[string]string) {
	if len(units) == 0 {
		return units, nil
	}
	last := strings.TrimSpace(units[len(units)-1])
	if last == "" {
		return units, nil
	}
	table := make(map[string]string)
	for _, line := range strings.Split(last, "\n") {
		m := refDefRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			return units, nil
		}
		table[m[1]] = m[2]
	}
	return units[:len(units)-1], table
}

// expandRefs re-attaches the reference definitions a unit's link marks point
// at, so each block is self-contained. A mark with no matching definition
// fails the whole unit; the caller emits the unexpanded text instead.
func expandRefs(text string, refs map[string]string) (string, error) {
	marks := refMarkRe.FindAllStringSubmatch(text, -1)
	if len(marks) == 0 || len(refs) == 0 {
		return text, nil
	}
	var defs strings.Builder
	seen := make(map[string]bool)
	for _, m := range marks {
		num := m[1]
		if seen[num] {
			continue
		}
		seen[num] = true
		href, ok := refs[num]
		if !ok {
			return text, fmt.Errorf("no reference definition for link mark [%s]", num)
		}
		defs.WriteString("\n[" + num + "]: " + href)
	}
	return text + "\n" + defs.String(), nil
}

func isCaption(text string) bool {
	return len(text) < captionMaxLen && !sentenceRe.MatchString(text)
}
