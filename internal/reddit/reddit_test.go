package reddit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const listingJSON = `{
  "kind": "Listing",
  "data": {
    "children": [
      {"kind": "t3", "data": {
        "id": "abc123",
        "title": "Found this Coach purse, paid $15 at Goodwill",
        "selftext": "",
        "author": "u1",
        "subreddit": "ThriftStoreHauls",
        "permalink": "/r/ThriftStoreHauls/comments/abc123/found_this_coach_purse/",
        "url": "https://i.redd.it/coach.jpg",
        "created_utc": 1700000000.0,
        "preview": {"images": [{"source": {"url": "https://preview.redd.it/a.jpg?w=1&amp;s=x", "width": 1080, "height": 1080}, "resolutions": []}]}
      }},
      {"kind": "t1", "data": {"id": "comment"}}
    ]
  }
}`

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *[]string) {
	var paths []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.RequestURI())
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts, &paths
}

func TestClient_FetchNew(t *testing.T) {
	ts, paths := newTestServer(t, http.StatusOK, listingJSON)
	c := NewClient(Options{BaseURL: ts.URL + "/", UserAgent: "test-agent", Limit: 10, Rate: rate.Inf})

	posts, err := c.FetchNew(context.Background(), "ThriftStoreHauls")
	require.NoError(t, err)
	require.Len(t, posts, 1)

	p := posts[0]
	assert.Equal(t, "abc123", p.ID)
	assert.Equal(t, "u1", p.Author)
	assert.Equal(t, 1700000000.0, p.CreatedUTC)
	require.NotNil(t, p.Preview)
	assert.Equal(t, 1080, p.Preview.Images[0].Source.Width)

	require.Len(t, *paths, 1)
	assert.Equal(t, "/r/ThriftStoreHauls/new.json?limit=10&raw_json=1", (*paths)[0])
}

func TestClient_StatusErrors(t *testing.T) {
	ts, _ := newTestServer(t, http.StatusTooManyRequests, "slow down")
	c := NewClient(Options{BaseURL: ts.URL, UserAgent: "test-agent", Rate: rate.Inf})

	_, err := c.FetchNew(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Code)

	ts, _ = newTestServer(t, http.StatusForbidden, "")
	c = NewClient(Options{BaseURL: ts.URL, UserAgent: "test-agent", Rate: rate.Inf})
	_, err = c.FetchNew(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, IsRateLimited(err))
}

func TestClient_MalformedJSON(t *testing.T) {
	ts, _ := newTestServer(t, http.StatusOK, "<html>not json</html>")
	c := NewClient(Options{BaseURL: ts.URL, UserAgent: "test-agent", Rate: rate.Inf})
	_, err := c.FetchNew(context.Background(), "x")
	assert.Error(t, err)
}

func TestIsRateLimited(t *testing.T) {
	assert.False(t, IsRateLimited(nil))
	assert.True(t, IsRateLimited(errors.New("feed returned HTTP 429")))
	assert.True(t, IsRateLimited(fmt.Errorf("wrapped: %w", &StatusError{Code: 429})))
	assert.False(t, IsRateLimited(&StatusError{Code: 500}))
}

func TestPostIDFromURL(t *testing.T) {
	id, ok := PostIDFromURL("https://www.reddit.com/r/ThriftStoreHauls/comments/1abcde/my_find/")
	require.True(t, ok)
	assert.Equal(t, "1abcde", id)

	_, ok = PostIDFromURL("https://www.reddit.com/r/ThriftStoreHauls/")
	assert.False(t, ok)
}

func TestFirstImage(t *testing.T) {
	content := `<table><tr><td><a href="https://www.reddit.com/r/x/comments/1/"><img src="https://b.thumbs.redditmedia.com/t.jpg" alt="x" /></a></td>
<td><span><a href="https://i.redd.it/full.jpg?a=1&amp;b=2">[link]</a></span></td></tr></table>`
	assert.Equal(t, "https://i.redd.it/full.jpg?a=1&b=2", firstImage(content))
	assert.Equal(t, "https://b.thumbs.redditmedia.com/t.jpg", firstImage(`<img src="https://b.thumbs.redditmedia.com/t.jpg">`))
	assert.Empty(t, firstImage("just text"))
}

func TestRSSSource_FeedURL(t *testing.T) {
	s := NewRSSSource(Options{BaseURL: "https://www.reddit.com/", UserAgent: "ua"})
	assert.Equal(t, "https://www.reddit.com/r/Flipping/new/.rss", s.FeedURL("Flipping"))
}
