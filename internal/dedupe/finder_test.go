package dedupe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thriftscan/valuator/internal/models"
)

type fakeQuerier struct {
	exact      []models.DuplicateEntry
	similar    []models.DuplicateEntry
	err        error
	phrases    []string
	exactCalls int
}

func (f *fakeQuerier) FindByBrandModel(_ context.Context, _, _ string, limit int) ([]models.DuplicateEntry, error) {
	f.exactCalls++
	return f.exact, f.err
}

func (f *fakeQuerier) FindByTitlePhrase(_ context.Context, phrase string, limit int) ([]models.DuplicateEntry, error) {
	f.phrases = append(f.phrases, phrase)
	return f.similar, f.err
}

func TestFind_ExactShortCircuits(t *testing.T) {
	q := &fakeQuerier{
		exact:   []models.DuplicateEntry{{ID: 1, Slug: "coach-f12345-aaa"}},
		similar: []models.DuplicateEntry{{ID: 2}},
	}
	m, err := NewFinder(q).Find(context.Background(), "Coach F12345 bag", "Coach", "F12345")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, models.MatchExact, m.Type)
	require.Len(t, m.Matches, 1)
	assert.Equal(t, ExactScore, m.Matches[0].Score)
	assert.Empty(t, q.phrases)
}

func TestFind_FallsBackToPhrase(t *testing.T) {
	q := &fakeQuerier{
		similar: []models.DuplicateEntry{{ID: 3, Title: "found this coach purse today"}},
	}
	m, err := NewFinder(q).Find(context.Background(), "Found this Coach purse, paid $15", "Coach", "F12345")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 1, q.exactCalls)
	assert.Equal(t, []string{"found this coach"}, q.phrases)
	assert.Equal(t, models.MatchSimilar, m.Type)
	assert.InDelta(t, 4.0/7.0, m.Matches[0].Score, 1e-9)
}

func TestFind_NoBrandSkipsExact(t *testing.T) {
	q := &fakeQuerier{}
	m, err := NewFinder(q).Find(context.Background(), "vintage wool sweater", "", "")
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Zero(t, q.exactCalls)
	assert.Equal(t, []string{"vintage wool sweater"}, q.phrases)
}

func TestFind_ShortTitleHasNoPhrase(t *testing.T) {
	q := &fakeQuerier{}
	m, err := NewFinder(q).Find(context.Background(), "a big hat", "", "")
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Empty(t, q.phrases)
}

func TestFind_PropagatesErrors(t *testing.T) {
	q := &fakeQuerier{err: errors.New("db down")}
	_, err := NewFinder(q).Find(context.Background(), "Coach F12345 bag", "Coach", "F12345")
	assert.ErrorContains(t, err, "exact duplicate lookup")
}

func TestSearchPhrase(t *testing.T) {
	assert.Equal(t, "found this coach", SearchPhrase("Found this Coach purse"))
	assert.Equal(t, "nike", SearchPhrase("My Nike"))
	assert.Equal(t, "", SearchPhrase("a b c"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Coach Bag", "coach bag!"))
	assert.Equal(t, 0.0, Similarity("red shoes", "blue hat"))
	assert.InDelta(t, 1.0/3.0, Similarity("red shoes", "red hat"), 1e-9)
	assert.Equal(t, DefaultScore, Similarity("", "anything"))
}
