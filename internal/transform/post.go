package transform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vuldin/socrev-cms/internal/catalog"
	"github.com/vuldin/socrev-cms/internal/provider/wordpress"
	"github.com/vuldin/socrev-cms/pkg/logging"
	"github.com/vuldin/socrev-cms/pkg/models"
)

// CMSClient is the slice of the WordPress client the transformer needs to
// resolve featured media.
type CMSClient interface {
	GetMedia(ctx context.Context, id int) (*wordpress.Media, error)
}

// RedirectClient recovers legacy-site authorship for posts that carry no
// editorial byline.
type RedirectClient interface {
	ByNewID(ctx context.Context, id int) (*models.RedirectRecord, error)
}

// BlockParser turns rendered HTML into content blocks and cleans up the
// short rendered fields.
type BlockParser interface {
	Parse(ctx context.Context, rawHTML string) ([]models.ContentBlock, error)
	Clean(rawHTML string) string
	CleanExcerpt(rawHTML string) string
}

// TagResolver maps tag ids to display names.
type TagResolver interface {
	Resolve(ctx context.Context, ids []int) ([]string, error)
}

const (
	// Byline used when neither the CMS nor the redirect records name an author.
	defaultAuthor = "IMT member"

	// Media shown for posts with no featured media and no usable body media.
	fallbackMediaURL = "/static/imt-wil-logo.jpg"

	cmsTimeLayout     = "2006-01-02T15:04:05"
	displayDateLayout = "20060102"
)

// Transformer assembles mirror-ready posts from raw CMS posts.
type Transformer struct {
	cms       CMSClient
	redirects RedirectClient
	parser    BlockParser
	tags      TagResolver
	logger    logging.Logger
}

func NewTransformer(cms CMSClient, redirects RedirectClient, parser BlockParser, tags TagResolver, logger logging.Logger) *Transformer {
	return &Transformer{
		cms:       cms,
		redirects: redirects,
		parser:    parser,
		tags:      tags,
		logger:    logger,
	}
}

// Transform builds the mirror representation of a post. cats is the flat
// category list for the current sync cycle; the post's category ids are
// expanded to their ancestor closure against it.
func (t *Transformer) Transform(ctx context.Context, post wordpress.Post, cats []models.Category) (*models.TransformedPost, error) {
	blocks, err := t.parser.Parse(ctx, post.Content.Rendered)
	if err != nil {
		return nil, fmt.Errorf("parsing content of post %d: %w", post.ID, err)
	}

	media, blocks, err := t.resolveMedia(ctx, &post, blocks)
	if err != nil {
		return nil, err
	}

	tagNames, err := t.tags.Resolve(ctx, post.Tags)
	if err != nil {
		return nil, fmt.Errorf("resolving tags of post %d: %w", post.ID, err)
	}

	return &models.TransformedPost{
		ID:         post.ID,
		Slug:       post.Slug,
		Status:     post.Status,
		IsSticky:   post.Sticky,
		Title:      t.parser.Clean(post.Title.Rendered),
		Date:       resolveDate(post.Date, post.ACF.Date),
		Modified:   ParseCMSTime(post.Modified),
		Authors:    t.resolveAuthors(ctx, &post),
		Excerpt:    t.parser.CleanExcerpt(post.Excerpt.Rendered),
		Media:      media,
		Categories: catalog.Closure(post.Categories, cats),
		Tags:       tagNames,
		Content:    blocks,
	}, nil
}

// ParseCMSTime converts a CMS timestamp to epoch milliseconds. Unparseable
// input yields 0, which orders the post before any real cursor.
func ParseCMSTime(value string) int64 {
	ts, err := time.Parse(cmsTimeLayout, value)
	if err != nil {
		return 0
	}
	return ts.UnixMilli()
}

// resolveDate prefers the editorial display date over the CMS publish date.
// The display date only carries a day, so it maps to midnight UTC.
func resolveDate(cmsDate, displayDate string) int64 {
	if len(displayDate) == len(displayDateLayout) {
		if ts, err := time.Parse(displayDateLayout, displayDate); err == nil {
			return ts.UnixMilli()
		}
	}
	return ParseCMSTime(cmsDate)
}

// resolveAuthors prefers the editorial byline, then the author recorded in
// the redirect collection, then the house byline. Legacy records join
// multiple authors with " & " or " and ".
func (t *Transformer) resolveAuthors(ctx context.Context, post *wordpress.Post) []string {
	if len(post.ACF.Author) > 0 {
		return post.ACF.Author
	}

	record, err := t.redirects.ByNewID(ctx, post.ID)
	if err != nil {
		t.logger.WithFields(logging.Fields{"post_id": post.ID, "error": err}).Warn("Redirect author lookup failed")
		return []string{defaultAuthor}
	}
	if record == nil || record.Author == "" {
		return []string{defaultAuthor}
	}
	if strings.Contains(record.Author, " & ") {
		return strings.Split(record.Author, " & ")
	}
	if strings.Contains(record.Author, " and ") {
		return strings.Split(record.Author, " and ")
	}
	return []string{record.Author}
}

// resolveMedia picks the post's display media. A featured media id wins;
// otherwise the first image block is promoted out of the content, then the
// first video embed, then the house fallback image.
func (t *Transformer) resolveMedia(ctx context.Context, post *wordpress.Post, blocks []models.ContentBlock) (models.Media, []models.ContentBlock, error) {
	if post.FeaturedMedia > 0 {
		m, err := t.cms.GetMedia(ctx, post.FeaturedMedia)
		if err != nil {
			return models.Media{}, nil, fmt.Errorf("fetching featured media %d of post %d: %w", post.FeaturedMedia, post.ID, err)
		}
		return models.Media{URL: m.SourceURL}, dropRepeatedMedia(blocks, m.SourceURL), nil
	}

	for i, block := range blocks {
		switch block.Key {
		case models.BlockImage:
			rest := make([]models.ContentBlock, 0, len(blocks)-1)
			rest = append(rest, blocks[:i]...)
			rest = append(rest, blocks[i+1:]...)
			return models.Media{URL: block.Val}, rest, nil
		case models.BlockYouTube:
			return models.Media{URL: "https://www.youtube.com/watch?v=" + block.Val, IsVideo: true}, blocks, nil
		case models.BlockVimeo:
			return models.Media{URL: "https://vimeo.com/" + block.Val, IsVideo: true}, blocks, nil
		}
	}
	return models.Media{URL: fallbackMediaURL}, blocks, nil
}

// dropRepeatedMedia removes content blocks that repeat the featured media
// URL, so the lead image is not rendered twice.
func dropRepeatedMedia(blocks []models.ContentBlock, mediaURL string) []models.ContentBlock {
	kept := blocks[:0:0]
	for _, block := range blocks {
		switch block.Key {
		case models.BlockImage, models.BlockYouTube, models.BlockVimeo:
			if block.Val == mediaURL {
				continue
			}
		}
		kept = append(kept, block)
	}
	return kept
}
