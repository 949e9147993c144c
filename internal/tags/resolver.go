package tags

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vuldin/socrev-cms/internal/provider/wordpress"
	"github.com/vuldin/socrev-cms/pkg/logging"
)

// CMSClient is the slice of the WordPress client used for tag lookups.
type CMSClient interface {
	ListAllTags(ctx context.Context) ([]wordpress.Tag, error)
	GetTag(ctx context.Context, id int) (*wordpress.Tag, error)
}

// Resolver maps tag ids to display names. Names are cached for the lifetime
// of the instance; tags published after Prime ran are fetched individually on
// first sight and added to the cache.
type Resolver struct {
	cms    CMSClient
	logger logging.Logger

	mu    sync.RWMutex
	names map[int]string
}

func NewResolver(cms CMSClient, logger logging.Logger) *Resolver {
	return &Resolver{
		cms:    cms,
		logger: logger,
		names:  make(map[int]string),
	}
}

// Prime loads the full tag list into the cache. It is a no-op once the cache
// is populated, so calling it at the start of every sync cycle is cheap.
func (r *Resolver) Prime(ctx context.Context) error {
	r.mu.RLock()
	primed := len(r.names) > 0
	r.mu.RUnlock()
	if primed {
		return nil
	}

	tags, err := r.cms.ListAllTags(ctx)
	if err != nil {
		return fmt.Errorf("priming tag cache: %w", err)
	}

	r.mu.Lock()
	for _, tag := range tags {
		r.names[tag.ID] = tag.Name
	}
	r.mu.Unlock()

	r.logger.WithField("tags", len(tags)).Info("Tag cache primed")
	return nil
}

// Resolve returns the names for the given tag ids, preserving input order.
// Cache misses are fetched concurrently; a failed fetch fails the whole call
// so a post is never stored with a partial tag list.
func (r *Resolver) Resolve(ctx context.Context, ids []int) ([]string, error) {
	var misses []int
	r.mu.RLock()
	for _, id := range ids {
		if _, ok := r.names[id]; !ok {
			misses = append(misses, id)
		}
	}
	r.mu.RUnlock()

	if len(misses) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		for _, id := range misses {
			g.Go(func() error {
				tag, err := r.cms.GetTag(gctx, id)
				if err != nil {
					return fmt.Errorf("fetching tag %d: %w", id, err)
				}
				r.mu.Lock()
				r.names[tag.ID] = tag.Name
				r.mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(ids))
	r.mu.RLock()
	for _, id := range ids {
		names = append(names, r.names[id])
	}
	r.mu.RUnlock()
	return names, nil
}
