package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vuldin/socrev-cms/internal/provider/wordpress"
	"github.com/vuldin/socrev-cms/internal/transform"
	"github.com/vuldin/socrev-cms/pkg/models"
)

type fakeCMS struct {
	cats     []wordpress.Category
	posts    []wordpress.Post // in the order the CMS would page them
	catsErr  error
	lastOpts []wordpress.ListPostsOptions
}

func (f *fakeCMS) ListCategories(_ context.Context) ([]wordpress.Category, error) {
	if f.catsErr != nil {
		return nil, f.catsErr
	}
	return f.cats, nil
}

func (f *fakeCMS) ListPosts(_ context.Context, opts wordpress.ListPostsOptions) ([]wordpress.Post, error) {
	f.lastOpts = append(f.lastOpts, opts)
	if opts.Page > len(f.posts) {
		return nil, wordpress.ErrPageOutOfRange
	}
	return []wordpress.Post{f.posts[opts.Page-1]}, nil
}

type fakeDest struct {
	latest     *models.Latest
	latestErr  error
	upsertErr  error
	replaced   [][]models.Category
	upserted   []*models.TransformedPost
	getCalls   int
	replaceErr error
}

func (f *fakeDest) GetLatest(_ context.Context) (*models.Latest, error) {
	f.getCalls++
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.latest, nil
}

func (f *fakeDest) ReplaceCategories(_ context.Context, cats []models.Category) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaced = append(f.replaced, cats)
	return nil
}

func (f *fakeDest) UpsertPost(_ context.Context, post *models.TransformedPost) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, post)
	return nil
}

type fakeTags struct {
	primeCalls int
	err        error
}

func (f *fakeTags) Prime(_ context.Context) error {
	f.primeCalls++
	return f.err
}

type fakeTransformer struct {
	err error
}

func (f *fakeTransformer) Transform(_ context.Context, post wordpress.Post, _ []models.Category) (*models.TransformedPost, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.TransformedPost{
		ID:       post.ID,
		Slug:     post.Slug,
		Status:   post.Status,
		Modified: transform.ParseCMSTime(post.Modified),
	}, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestController(cms *fakeCMS, dest *fakeDest) (*SyncController, *fakeTags) {
	tags := &fakeTags{}
	return NewSyncController(cms, dest, tags, &fakeTransformer{}, testLogger(), time.Minute, nil), tags
}

func millis(value string) *int64 {
	ms := transform.ParseCMSTime(value)
	return &ms
}

func TestRunCycle_Incremental(t *testing.T) {
	cms := &fakeCMS{
		cats: []wordpress.Category{{ID: 1, Name: "News", Slug: "news"}},
		posts: []wordpress.Post{
			{ID: 3, Slug: "newest", Status: "publish", Modified: "2020-06-03T10:00:00"},
			{ID: 2, Slug: "newer", Status: "draft", Modified: "2020-06-02T10:00:00"},
			{ID: 1, Slug: "already-synced", Status: "publish", Modified: "2020-06-01T10:00:00"},
		},
	}
	dest := &fakeDest{latest: &models.Latest{
		Posts: models.LatestPosts{Modified: millis("2020-06-01T10:00:00")},
		Cats:  []models.Category{{ID: 1, Name: "News", Slug: "news"}},
	}}
	ctrl, tags := newTestController(cms, dest)

	ctrl.runCycle(context.Background())

	// stops at the first post not newer than the cursor
	require.Len(t, dest.upserted, 2)
	assert.Equal(t, "newest", dest.upserted[0].Slug)
	assert.Equal(t, "newer", dest.upserted[1].Slug)

	// snapshot already matched, so no replacement
	assert.Empty(t, dest.replaced)
	assert.Equal(t, 1, tags.primeCalls)

	require.NotEmpty(t, cms.lastOpts)
	assert.Equal(t, "modified", cms.lastOpts[0].OrderBy)
	assert.Equal(t, "desc", cms.lastOpts[0].Order)
	assert.Equal(t, 1, cms.lastOpts[0].PerPage)
	assert.Equal(t, []string{"draft", "future", "publish"}, cms.lastOpts[0].Statuses)

	status := ctrl.Status()
	assert.False(t, status.Bootstrap)
	assert.Equal(t, 2, status.PostsSynced)
	assert.Empty(t, status.Error)
}

func TestRunCycle_BootstrapPagesToExhaustion(t *testing.T) {
	cms := &fakeCMS{
		posts: []wordpress.Post{
			{ID: 1, Slug: "first", Status: "publish", Modified: "2020-01-01T00:00:00"},
			{ID: 2, Slug: "second", Status: "publish", Modified: "2020-01-02T00:00:00"},
		},
	}
	dest := &fakeDest{latest: &models.Latest{}}
	ctrl, _ := newTestController(cms, dest)

	ctrl.runCycle(context.Background())

	require.Len(t, dest.upserted, 2)
	assert.Equal(t, "first", dest.upserted[0].Slug)
	assert.Equal(t, "second", dest.upserted[1].Slug)

	require.NotEmpty(t, cms.lastOpts)
	assert.Equal(t, "id", cms.lastOpts[0].OrderBy)
	assert.Equal(t, "asc", cms.lastOpts[0].Order)

	assert.True(t, ctrl.Status().Bootstrap)
}

func TestRunCycle_ReplacesChangedCategorySnapshot(t *testing.T) {
	cms := &fakeCMS{cats: []wordpress.Category{
		{ID: 1, Name: "News", Slug: "news"},
		{ID: 2, Name: "US", Slug: "us", Parent: 1},
	}}
	dest := &fakeDest{latest: &models.Latest{
		Posts: models.LatestPosts{Modified: millis("2020-06-01T10:00:00")},
		Cats:  []models.Category{{ID: 1, Name: "News", Slug: "news"}},
	}}
	ctrl, _ := newTestController(cms, dest)

	ctrl.runCycle(context.Background())

	require.Len(t, dest.replaced, 1)
	require.Len(t, dest.replaced[0], 1)
	assert.Equal(t, "News", dest.replaced[0][0].Name)
	require.Len(t, dest.replaced[0][0].Children, 1)
	assert.Equal(t, "US", dest.replaced[0][0].Children[0].Name)
}

func TestRunCycle_CursorFetchFailureAborts(t *testing.T) {
	cms := &fakeCMS{}
	dest := &fakeDest{latestErr: errors.New("dbctrl unreachable")}
	ctrl, tags := newTestController(cms, dest)

	ctrl.runCycle(context.Background())

	assert.Empty(t, cms.lastOpts)
	assert.Zero(t, tags.primeCalls)
	assert.Contains(t, ctrl.Status().Error, "dbctrl unreachable")
}

func TestRunCycle_UpsertFailureAborts(t *testing.T) {
	cms := &fakeCMS{posts: []wordpress.Post{
		{ID: 1, Slug: "post", Status: "publish", Modified: "2020-06-02T00:00:00"},
	}}
	dest := &fakeDest{
		latest:    &models.Latest{Posts: models.LatestPosts{Modified: millis("2020-06-01T00:00:00")}},
		upsertErr: errors.New("write rejected"),
	}
	ctrl, _ := newTestController(cms, dest)

	ctrl.runCycle(context.Background())

	status := ctrl.Status()
	assert.Contains(t, status.Error, "write rejected")
	assert.Zero(t, status.PostsSynced)
}

func TestRunCycle_SecondRunIsIdempotent(t *testing.T) {
	cms := &fakeCMS{
		cats: []wordpress.Category{{ID: 1, Name: "News", Slug: "news"}},
		posts: []wordpress.Post{
			{ID: 2, Slug: "newer", Status: "publish", Modified: "2020-06-02T10:00:00"},
			{ID: 1, Slug: "older", Status: "publish", Modified: "2020-06-01T10:00:00"},
		},
	}
	dest := &fakeDest{latest: &models.Latest{
		Posts: models.LatestPosts{Modified: millis("2020-06-01T10:00:00")},
	}}
	ctrl, _ := newTestController(cms, dest)

	ctrl.runCycle(context.Background())
	require.Len(t, dest.upserted, 1)
	replacements := len(dest.replaced)

	// destination now reflects the first run
	dest.latest = &models.Latest{
		Posts: models.LatestPosts{Modified: millis("2020-06-02T10:00:00")},
		Cats:  dest.replaced[len(dest.replaced)-1],
	}

	ctrl.runCycle(context.Background())

	assert.Len(t, dest.upserted, 1)
	assert.Len(t, dest.replaced, replacements)
	assert.Zero(t, ctrl.Status().PostsSynced)
	assert.Empty(t, ctrl.Status().Error)
}

func TestRunCycle_NextTickRetriesFromScratch(t *testing.T) {
	cms := &fakeCMS{}
	dest := &fakeDest{latestErr: errors.New("down")}
	ctrl, _ := newTestController(cms, dest)

	ctrl.runCycle(context.Background())
	dest.latestErr = nil
	dest.latest = &models.Latest{Posts: models.LatestPosts{Modified: millis("2020-06-01T00:00:00")}}
	ctrl.runCycle(context.Background())

	assert.Equal(t, 2, dest.getCalls)
	assert.Empty(t, ctrl.Status().Error)
}
