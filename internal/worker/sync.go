package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vuldin/socrev-cms/internal/catalog"
	"github.com/vuldin/socrev-cms/internal/provider/wordpress"
	"github.com/vuldin/socrev-cms/internal/transform"
	"github.com/vuldin/socrev-cms/pkg/logging"
	"github.com/vuldin/socrev-cms/pkg/models"
)

// Post statuses mirrored from the CMS. Trashed posts are never paged.
var postStatuses = []string{"draft", "future", "publish"}

type cmsClient interface {
	ListCategories(ctx context.Context) ([]wordpress.Category, error)
	ListPosts(ctx context.Context, opts wordpress.ListPostsOptions) ([]wordpress.Post, error)
}

type destClient interface {
	GetLatest(ctx context.Context) (*models.Latest, error)
	ReplaceCategories(ctx context.Context, cats []models.Category) error
	UpsertPost(ctx context.Context, post *models.TransformedPost) error
}

type postTransformer interface {
	Transform(ctx context.Context, post wordpress.Post, cats []models.Category) (*models.TransformedPost, error)
}

type tagPrimer interface {
	Prime(ctx context.Context) error
}

// state is the position of a sync cycle in its state machine. Every cycle
// walks fetchCursor -> reconcileCategories -> pagePosts* -> done; any error
// aborts straight to done and the next tick starts a fresh cycle.
type state int

const (
	stateFetchCursor state = iota
	stateReconcileCategories
	statePagePosts
	stateDone
)

// cycle carries one run's working set across state transitions.
type cycle struct {
	bootstrap bool
	cursor    int64
	destCats  []models.Category
	cats      []models.Category
	page      int
	synced    int
}

// CycleStatus is a snapshot of the most recent sync cycle, served on the
// status endpoint.
type CycleStatus struct {
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Bootstrap   bool      `json:"bootstrap"`
	PostsSynced int       `json:"posts_synced"`
	Error       string    `json:"error,omitempty"`
}

// SyncController drives the poll loop that keeps the destination store
// caught up with the CMS.
type SyncController struct {
	cms         cmsClient
	dest        destClient
	tags        tagPrimer
	transformer postTransformer
	logger      logging.Logger
	interval    time.Duration
	metrics     *Metrics

	mu   sync.RWMutex
	last CycleStatus
}

func NewSyncController(cms cmsClient, dest destClient, tags tagPrimer, transformer postTransformer, logger logging.Logger, interval time.Duration, metrics *Metrics) *SyncController {
	return &SyncController{
		cms:         cms,
		dest:        dest,
		tags:        tags,
		transformer: transformer,
		logger:      logger,
		interval:    interval,
		metrics:     metrics,
	}
}

func (s *SyncController) Start(ctx context.Context) {
	s.logger.WithField("interval", s.interval.String()).Info("Starting CMS sync worker")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping CMS sync worker")
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// Status returns a snapshot of the most recent cycle.
func (s *SyncController) Status() CycleStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *SyncController) runCycle(ctx context.Context) {
	started := time.Now()
	cy := &cycle{page: 1}

	err := s.run(ctx, cy)
	elapsed := time.Since(started)
	s.metrics.observeCycle(err == nil, elapsed)

	status := CycleStatus{
		StartedAt:   started,
		FinishedAt:  time.Now(),
		Bootstrap:   cy.bootstrap,
		PostsSynced: cy.synced,
	}
	if err != nil {
		status.Error = err.Error()
		s.logger.WithError(err).Error("Sync cycle aborted")
	} else {
		s.logger.WithFields(logging.Fields{
			"posts_synced": cy.synced,
			"bootstrap":    cy.bootstrap,
			"elapsed":      elapsed.String(),
		}).Info("Sync cycle finished")
	}

	s.mu.Lock()
	s.last = status
	s.mu.Unlock()
}

func (s *SyncController) run(ctx context.Context, cy *cycle) error {
	for st := stateFetchCursor; st != stateDone; {
		next, err := s.step(ctx, st, cy)
		if err != nil {
			return err
		}
		st = next
	}
	return nil
}

func (s *SyncController) step(ctx context.Context, st state, cy *cycle) (state, error) {
	switch st {
	case stateFetchCursor:
		return s.fetchCursor(ctx, cy)
	case stateReconcileCategories:
		return s.reconcileCategories(ctx, cy)
	case statePagePosts:
		return s.pagePosts(ctx, cy)
	default:
		return stateDone, fmt.Errorf("sync cycle reached unknown state %d", st)
	}
}

// fetchCursor reads the destination's high-water mark. A store with no posts
// yet puts the cycle into bootstrap mode, which pages the CMS from the
// beginning instead of newest-first.
func (s *SyncController) fetchCursor(ctx context.Context, cy *cycle) (state, error) {
	latest, err := s.dest.GetLatest(ctx)
	if err != nil {
		return stateDone, fmt.Errorf("fetching destination cursor: %w", err)
	}
	if latest.Posts.Modified == nil {
		cy.bootstrap = true
		s.logger.Info("Destination store is empty, bootstrapping")
	} else {
		cy.cursor = *latest.Posts.Modified
	}
	cy.destCats = latest.Cats
	return stateReconcileCategories, nil
}

// reconcileCategories replaces the destination's category snapshot when it
// no longer matches the CMS, and primes the tag cache for the page loop.
func (s *SyncController) reconcileCategories(ctx context.Context, cy *cycle) (state, error) {
	wpCats, err := s.cms.ListCategories(ctx)
	if err != nil {
		return stateDone, fmt.Errorf("listing CMS categories: %w", err)
	}
	cy.cats = catalog.Flatten(wpCats)

	tree := catalog.Tree(wpCats)
	if catalog.ShouldUpdate(cy.destCats, tree) {
		s.logger.WithField("categories", len(tree)).Info("Category snapshot changed, replacing")
		if err := s.dest.ReplaceCategories(ctx, tree); err != nil {
			return stateDone, fmt.Errorf("replacing category snapshot: %w", err)
		}
		s.metrics.countCategoryReplacement()
	}

	if err := s.tags.Prime(ctx); err != nil {
		return stateDone, err
	}
	return statePagePosts, nil
}

// pagePosts fetches one post per page. Incremental cycles walk newest-first
// by modification time and stop at the first post the destination already
// has; bootstrap cycles walk by id until the CMS runs out of pages.
func (s *SyncController) pagePosts(ctx context.Context, cy *cycle) (state, error) {
	opts := wordpress.ListPostsOptions{
		Statuses: postStatuses,
		OrderBy:  "modified",
		Order:    "desc",
		Page:     cy.page,
		PerPage:  1,
	}
	if cy.bootstrap {
		opts.OrderBy = "id"
		opts.Order = "asc"
	}

	posts, err := s.cms.ListPosts(ctx, opts)
	if err != nil {
		if errors.Is(err, wordpress.ErrPageOutOfRange) {
			return stateDone, nil
		}
		return stateDone, fmt.Errorf("listing CMS posts (page %d): %w", cy.page, err)
	}
	if len(posts) == 0 {
		return stateDone, nil
	}
	post := posts[0]

	if !cy.bootstrap {
		modified := transform.ParseCMSTime(post.Modified)
		if modified <= cy.cursor {
			s.logger.WithField("slug", post.Slug).Debug("Destination is caught up")
			return stateDone, nil
		}
	}

	transformed, err := s.transformer.Transform(ctx, post, cy.cats)
	if err != nil {
		return stateDone, err
	}
	if err := s.dest.UpsertPost(ctx, transformed); err != nil {
		return stateDone, fmt.Errorf("upserting post %d: %w", transformed.ID, err)
	}
	s.metrics.countPost(transformed.Status)
	s.logger.WithFields(logging.Fields{
		"post_id": transformed.ID,
		"slug":    transformed.Slug,
		"status":  transformed.Status,
	}).Info("Post synced")

	cy.synced++
	cy.page++
	return statePagePosts, nil
}
