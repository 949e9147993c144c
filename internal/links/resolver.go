package links

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vuldin/socrev-cms/internal/provider/wordpress"
	"github.com/vuldin/socrev-cms/pkg/logging"
	"github.com/vuldin/socrev-cms/pkg/models"
)

// CMSClient is the slice of the WordPress client the resolver needs to chase
// ?p= permalink references.
type CMSClient interface {
	GetPost(ctx context.Context, id int) (*wordpress.Post, error)
}

// RedirectClient looks up redirect records by legacy article id.
type RedirectClient interface {
	ByOldID(ctx context.Context, id int) (*models.RedirectRecord, error)
}

// Config names the two hostnames whose links get rewritten to mirror-local
// paths. Links to any other host pass through untouched.
type Config struct {
	LegacyHost string
	CMSHost    string
}

var (
	relativeRe  = regexp.MustCompile(`^/{1,2}[0-9a-zA-Z]`)
	legacyIDRe  = regexp.MustCompile(`/(\d+)`)
	permalinkRe = regexp.MustCompile(`^p=(\d{4,5})$`)
)

// Resolver rewrites article hrefs so the mirror never links back to the old
// site or the CMS admin.
type Resolver struct {
	cms       CMSClient
	redirects RedirectClient
	config    Config
	logger    logging.Logger
}

func NewResolver(cms CMSClient, redirects RedirectClient, config Config, logger logging.Logger) *Resolver {
	return &Resolver{
		cms:       cms,
		redirects: redirects,
		config:    config,
		logger:    logger,
	}
}

// Resolve rewrites every href in a reference table concurrently. The result
// carries exactly the input's keys; individual failures fall back per href,
// so Resolve itself never fails.
func (r *Resolver) Resolve(ctx context.Context, refs map[string]string) map[string]string {
	resolved := make(map[string]string, len(refs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for num, href := range refs {
		g.Go(func() error {
			out := r.resolveOne(gctx, href)
			mu.Lock()
			resolved[num] = out
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return resolved
}

func (r *Resolver) resolveOne(ctx context.Context, href string) string {
	if href == "" {
		return "/"
	}
	if relativeRe.MatchString(href) {
		return href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		r.logger.WithFields(logging.Fields{"href": href, "error": err}).Warn("Leaving unparseable href untouched")
		return href
	}
	host := parsed.Hostname()
	switch {
	case r.config.LegacyHost != "" && strings.Contains(host, r.config.LegacyHost):
		return r.resolveLegacy(ctx, parsed)
	case r.config.CMSHost != "" && strings.Contains(host, r.config.CMSHost):
		return r.resolveCMS(ctx, parsed)
	default:
		return href
	}
}

// resolveLegacy maps an old-site article URL to the mirror slug recorded for
// it. Legacy URLs carry the article id as the first number in the path.
func (r *Resolver) resolveLegacy(ctx context.Context, u *url.URL) string {
	m := legacyIDRe.FindStringSubmatch(u.Path)
	if m == nil {
		if u.Path == "" || u.Path == "/" {
			return "/"
		}
		r.logger.WithField("href", u.String()).Warn("Legacy link without an article id")
		return "/404"
	}
	id, _ := strconv.Atoi(m[1])

	record, err := r.redirects.ByOldID(ctx, id)
	if err != nil {
		r.logger.WithFields(logging.Fields{"old_id": id, "error": err}).Warn("Redirect lookup failed")
		return "/"
	}
	if record == nil || record.Slug == "" {
		return "/"
	}
	return "/" + record.Slug
}

// resolveCMS handles links pointing at the CMS itself: admin URLs are dead
// ends, ?p= permalinks resolve to the post id, everything else keeps its path.
func (r *Resolver) resolveCMS(ctx context.Context, u *url.URL) string {
	if strings.Contains(u.Path, "wp-admin") {
		return "/404"
	}
	m := permalinkRe.FindStringSubmatch(u.RawQuery)
	if m == nil {
		return u.Path
	}
	id, _ := strconv.Atoi(m[1])

	post, err := r.cms.GetPost(ctx, id)
	if err != nil {
		r.logger.WithFields(logging.Fields{"post_id": id, "error": err}).Info("Permalink target not found")
		return "/404"
	}
	return fmt.Sprintf("/%d", post.ID)
}
