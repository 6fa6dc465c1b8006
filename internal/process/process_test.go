package process

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"thriftscan/valuator/internal/database"
	"thriftscan/valuator/internal/dedupe"
	"thriftscan/valuator/internal/llm"
	"thriftscan/valuator/internal/llm/mocks"
	"thriftscan/valuator/internal/models"
	"thriftscan/valuator/internal/normalize"
	"thriftscan/valuator/internal/reddit"
	"thriftscan/valuator/internal/storage"
	"thriftscan/valuator/internal/valuation"
)

const goodReply = `{"value_low": 40, "value_high": 90, "confidence": 0.9, "recommended_platform": "Poshmark", "selling_tips": ["Show the creed"]}`

func newTestRepo(t *testing.T) (*storage.Repository, *database.DB) {
	t.Helper()
	db, err := database.NewDB(database.NewConfig(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return storage.NewRepository(db), db
}

func newTestPipeline(t *testing.T, repo *storage.Repository, completer llm.Completer) *Pipeline {
	t.Helper()
	return NewPipeline(
		normalize.NewNormalizer(dedupe.NewFinder(repo)),
		valuation.NewEstimator(completer, 256),
		repo,
	)
}

func coachPost() *models.Post {
	return &models.Post{
		ID:         "abc123",
		Title:      "Found this Coach purse, paid $15 at Goodwill",
		Author:     "u1",
		Subreddit:  "ThriftStoreHauls",
		Permalink:  "/r/ThriftStoreHauls/comments/abc123/found_this_coach_purse/",
		CreatedUTC: 1700000000,
	}
}

func countRows(t *testing.T, db *database.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM valuations`))
	return n
}

func TestProcessPost_Idempotent(t *testing.T) {
	repo, db := newTestRepo(t)
	m := mocks.NewMockCompleter(t)
	m.On("Complete", mock.Anything, mock.Anything).Return(&llm.Response{Text: goodReply}, nil).Once()
	p := newTestPipeline(t, repo, m)
	ctx := context.Background()

	first, err := p.ProcessPost(ctx, coachPost())
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.True(t, first.Valued)
	assert.Equal(t, valuation.OutcomeAPISuccess, first.Outcome)

	v := first.Valuation
	assert.Equal(t, "Coach", v.Brand.String)
	assert.Equal(t, int64(15), v.BuyPrice.Int64)
	assert.Equal(t, "handbag", v.Category.String)
	assert.Equal(t, "coach-abc123", v.Slug)
	assert.True(t, v.Published)
	// 0.9 discounted for the missing image
	assert.InDelta(t, 0.63, v.Confidence.Float64, 1e-9)
	assert.Equal(t, v.Confidence.Float64 < models.NoIndexThreshold, v.NoIndex)

	second, err := p.ProcessPost(ctx, coachPost())
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.False(t, second.Valued)
	assert.Equal(t, first.Valuation.ID, second.Valuation.ID)
	assert.Equal(t, 1, countRows(t, db))
}

func TestProcessPost_RevaluesUnvaluedRecord(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	c, err := normalize.NewNormalizer(nil).Normalize(ctx, coachPost())
	require.NoError(t, err)
	id, _, err := repo.Save(ctx, c)
	require.NoError(t, err)

	m := mocks.NewMockCompleter(t)
	m.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("timeout")).Once()

	res, err := newTestPipeline(t, repo, m).ProcessPost(ctx, coachPost())
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.True(t, res.Valued)
	assert.Equal(t, id, res.Valuation.ID)
	assert.Equal(t, valuation.OutcomeAPIFailure, res.Outcome)
	// handbag range doubled for Coach
	assert.Equal(t, 40.0, res.Valuation.ValueLow.Float64)
	assert.Equal(t, 300.0, res.Valuation.ValueHigh.Float64)
	assert.True(t, res.Valuation.NoIndex)
	assert.Equal(t, 1, countRows(t, db))
}

func TestProcessPost_RecordsDuplicates(t *testing.T) {
	repo, _ := newTestRepo(t)
	m := mocks.NewMockCompleter(t)
	m.On("Complete", mock.Anything, mock.Anything).Return(&llm.Response{Text: goodReply}, nil)
	p := newTestPipeline(t, repo, m)
	ctx := context.Background()

	first, err := p.ProcessPost(ctx, &models.Post{ID: "p1", Title: "Coach style #F12345 bag for $8"})
	require.NoError(t, err)

	second, err := p.ProcessPost(ctx, &models.Post{ID: "p2", Title: "Another coach model F12345 purse"})
	require.NoError(t, err)
	require.NotNil(t, second.Duplicate)
	assert.Equal(t, models.MatchExact, second.Duplicate.Type)

	links, err := repo.Duplicates(ctx, second.Valuation.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, first.Valuation.ID, links[0].DuplicateID)
	assert.Equal(t, dedupe.ExactScore, links[0].SimilarityScore)
}

func TestProcessPost_InvalidPost(t *testing.T) {
	repo, db := newTestRepo(t)
	p := newTestPipeline(t, repo, mocks.NewMockCompleter(t))

	_, err := p.ProcessPost(context.Background(), &models.Post{ID: "x"})
	assert.ErrorIs(t, err, normalize.ErrInvalidPost)
	assert.Equal(t, 0, countRows(t, db))
}

type fakeSource struct {
	mu    sync.Mutex
	posts map[string][]models.Post
	err   error
	calls int
}

func (f *fakeSource) FetchNew(ctx context.Context, community string) ([]models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.posts[community], nil
}

type flakyProcessor struct {
	next     PostProcessor
	failFor  string
	attempts int
}

func (f *flakyProcessor) ProcessPost(ctx context.Context, post *models.Post) (*Result, error) {
	if post.ID == f.failFor {
		f.attempts++
		return nil, errors.New("database is locked")
	}
	return f.next.ProcessPost(ctx, post)
}

func TestCommunityScanner_Run(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.EnsureCommunities(ctx, []string{"ThriftStoreHauls"}, models.SourceModeJSON)
	require.NoError(t, err)

	m := mocks.NewMockCompleter(t)
	m.On("Complete", mock.Anything, mock.Anything).Return(&llm.Response{Text: goodReply}, nil)

	src := &fakeSource{posts: map[string][]models.Post{
		"ThriftStoreHauls": {
			*coachPost(),
			{ID: "bad1", Title: "Pyrex bowl, paid $3"},
			{ID: "ok2", Title: "Levi's 501 jeans for $4"},
		},
	}}
	flaky := &flakyProcessor{next: newTestPipeline(t, repo, m), failFor: "bad1"}

	s, err := NewCommunityScanner(repo, flaky, map[string]reddit.Source{models.SourceModeJSON: src}, ScanConfig{
		FetchAttempts: 2,
		PostAttempts:  3,
	})
	require.NoError(t, err)

	report, err := s.Run(ctx, "manual")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Run.Processed)
	assert.Equal(t, 1, report.Run.Failed)
	assert.Equal(t, 1, report.Run.Communities)
	assert.Len(t, report.Created, 2)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "bad1", report.Errors[0].SourceID)
	assert.Equal(t, 3, flaky.attempts, "per-post retries are bounded")
	assert.Equal(t, 2, countRows(t, db))

	// Second run skips everything already stored.
	report, err = s.Run(ctx, "scheduled")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Run.Skipped)
	assert.Equal(t, 0, report.Run.Processed)
	assert.Equal(t, 2, countRows(t, db))

	runs, err := repo.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.True(t, r.FinishedAt.Valid)
	}

	processed, skipped, failed := s.Stats()
	assert.Equal(t, int64(2), processed)
	assert.Equal(t, int64(2), skipped)
	assert.Equal(t, int64(2), failed)
}

func TestCommunityScanner_FetchFailure(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.EnsureCommunities(ctx, []string{"Flipping"}, models.SourceModeJSON)
	require.NoError(t, err)

	src := &fakeSource{err: &reddit.StatusError{Code: 429, URL: "x"}}
	s, err := NewCommunityScanner(repo, newTestPipeline(t, repo, mocks.NewMockCompleter(t)),
		map[string]reddit.Source{models.SourceModeJSON: src}, ScanConfig{FetchAttempts: 3})
	require.NoError(t, err)

	report, err := s.Run(ctx, "manual")
	require.NoError(t, err)
	assert.Zero(t, report.Run.Processed)
	assert.Equal(t, 3, src.calls)

	all, err := repo.AllCommunities(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.CommunityRateLimited, all[0].Status)
}

func TestNewCommunityScanner_Validation(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := NewCommunityScanner(repo, nil, map[string]reddit.Source{"json": &fakeSource{}}, ScanConfig{})
	assert.Error(t, err)
	_, err = NewCommunityScanner(repo, newTestPipeline(t, repo, mocks.NewMockCompleter(t)), nil, ScanConfig{})
	assert.Error(t, err)
}

type timedProcessor struct {
	mu     sync.Mutex
	work   time.Duration
	starts []time.Time
	ends   []time.Time
}

func (p *timedProcessor) ProcessPost(ctx context.Context, post *models.Post) (*Result, error) {
	start := time.Now()
	time.Sleep(p.work)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts = append(p.starts, start)
	p.ends = append(p.ends, time.Now())
	return &Result{Valuation: &models.Valuation{Slug: post.ID}, Created: true}, nil
}

func TestCommunityScanner_PostDelayFollowsEachPost(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.EnsureCommunities(ctx, []string{"Flipping"}, models.SourceModeJSON)
	require.NoError(t, err)

	src := &fakeSource{posts: map[string][]models.Post{
		"Flipping": {{ID: "p1", Title: "a"}, {ID: "p2", Title: "b"}, {ID: "p3", Title: "c"}},
	}}
	// Work takes longer than the delay, so start-to-start spacing alone
	// would leave no pause between posts.
	const delay = 60 * time.Millisecond
	proc := &timedProcessor{work: 2 * delay}
	s, err := NewCommunityScanner(repo, proc, map[string]reddit.Source{models.SourceModeJSON: src}, ScanConfig{
		FetchAttempts: 1,
		PostAttempts:  1,
		PostDelay:     delay,
	})
	require.NoError(t, err)

	report, err := s.Run(ctx, "manual")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Run.Processed)

	require.Len(t, proc.starts, 3)
	for i := 1; i < len(proc.starts); i++ {
		gap := proc.starts[i].Sub(proc.ends[i-1])
		assert.GreaterOrEqual(t, gap, delay, "pause before post %d", i+1)
	}
}

func TestCommunityScanner_RevaluesUnvaluedRecords(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.EnsureCommunities(ctx, []string{"ThriftStoreHauls"}, models.SourceModeJSON)
	require.NoError(t, err)

	// A record saved before its valuation step failed.
	c, err := normalize.NewNormalizer(nil).Normalize(ctx, coachPost())
	require.NoError(t, err)
	id, _, err := repo.Save(ctx, c)
	require.NoError(t, err)

	m := mocks.NewMockCompleter(t)
	m.On("Complete", mock.Anything, mock.Anything).Return(&llm.Response{Text: goodReply}, nil).Once()

	src := &fakeSource{posts: map[string][]models.Post{"ThriftStoreHauls": {*coachPost()}}}
	s, err := NewCommunityScanner(repo, newTestPipeline(t, repo, m),
		map[string]reddit.Source{models.SourceModeJSON: src}, ScanConfig{FetchAttempts: 1, PostAttempts: 1})
	require.NoError(t, err)

	report, err := s.Run(ctx, "scheduled")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Run.Skipped)
	assert.Equal(t, 1, report.Run.Processed)
	assert.Empty(t, report.Created)

	v, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, v.Valued())
	assert.True(t, v.Published)
	assert.Equal(t, 1, countRows(t, db))

	report, err = s.Run(ctx, "scheduled")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Run.Skipped)
}
