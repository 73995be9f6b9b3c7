package subscriber

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/eventbus"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/repository/memstore"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/secretbox"
)

type fakeFeedFetcher struct {
	mu    sync.Mutex
	body  []byte
	calls int
}

func (f *fakeFeedFetcher) Fetch(ctx context.Context, feedURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.body, nil
}

func (f *fakeFeedFetcher) setBody(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body = b
}

func newTestRSS(t *testing.T, downloads DownloadSink, fetcher FeedFetcher) *RSS {
	t.Helper()
	subs := memstore.NewSubscriptionStore()
	hubs := memstore.NewHubStore()
	bus := eventbus.New()
	box := secretbox.New("test-hub-secret-key")
	core := NewCore(subs, hubs, bus, box, downloads, nil, nil, "http://localhost:8080", testToken, time.Second, 0)
	return NewRSS(core, fetcher)
}

func TestRSSPollDeliversNewestEntryOnce(t *testing.T) {
	sink := &fakeDownloadSink{}
	fetcher := &fakeFeedFetcher{}
	r := newTestRSS(t, sink, fetcher)

	sub, err := r.Subscribe(context.Background(), "blog", "http://feed.example.com/rss.xml", 30)
	require.NoError(t, err)

	fetcher.setBody([]byte(`<rss><channel><item><guid>e1</guid><title>First Post</title><link>http://example.com/1</link><pubDate>Mon, 01 Jan 2024 00:00:00 +0000</pubDate></item></channel></rss>`))

	r.poll(sub.ID)
	r.poll(sub.ID) // second poll of the same body must not re-deliver

	received := sink.all()
	require.Len(t, received, 1)
	assert.Equal(t, "First Post", received[0].Name)
}

func TestRSSPollDeliversOnlyNewEntryAcrossPolls(t *testing.T) {
	sink := &fakeDownloadSink{}
	fetcher := &fakeFeedFetcher{}
	r := newTestRSS(t, sink, fetcher)

	sub, err := r.Subscribe(context.Background(), "blog", "http://feed.example.com/rss.xml", 30)
	require.NoError(t, err)

	fetcher.setBody([]byte(`<rss><channel><item><guid>e1</guid><title>First Post</title><link>http://example.com/1</link><pubDate>Mon, 01 Jan 2024 00:00:00 +0000</pubDate></item></channel></rss>`))
	r.poll(sub.ID)

	fetcher.setBody([]byte(`<rss><channel><item><guid>e2</guid><title>Second Post</title><link>http://example.com/2</link><pubDate>Tue, 02 Jan 2024 00:00:00 +0000</pubDate></item></channel></rss>`))
	r.poll(sub.ID)

	received := sink.all()
	require.Len(t, received, 2)
	assert.Equal(t, "Second Post", received[1].Name)
}

func TestRSSUnsubscribeRemovesSubscriptionAndDisarmsJob(t *testing.T) {
	r := newTestRSS(t, nil, &fakeFeedFetcher{})

	sub, err := r.Subscribe(context.Background(), "blog", "http://feed.example.com/rss.xml", 30)
	require.NoError(t, err)
	require.Contains(t, r.entries, sub.ID)

	err = r.Unsubscribe(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.NotContains(t, r.entries, sub.ID)

	_, err = r.subs.Get(context.Background(), sub.ID)
	assert.Error(t, err)
}
