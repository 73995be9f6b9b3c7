package subscriber

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/repository"
)

// FeedFetcher retrieves the raw bytes of a feed document. Split out from
// HubClient since RSS polling is a plain GET, not a WebSub form POST.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]byte, error)
}

type httpFeedFetcher struct {
	client *http.Client
}

// NewFeedFetcher returns a FeedFetcher backed by client, or
// http.DefaultClient if nil.
func NewFeedFetcher(client *http.Client) FeedFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpFeedFetcher{client: client}
}

func (f *httpFeedFetcher) Fetch(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("subscriber: rss poll got HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// RSS is the polling fallback for sites without a WebSub hub: a recurring
// fetch-and-diff loop armed with robfig/cron/v3 instead of the WebSub
// push handshake. Grounded on original_source/handler/Subscriber.py's
// RSSSubscriber.
type RSS struct {
	Core

	cron    *cron.Cron
	fetcher FeedFetcher

	mu      sync.Mutex
	entries map[int64]cron.EntryID
	seen    map[int64]string // subscription id -> last delivered entry id, dedup across polls
}

// NewRSS wraps core with an independent cron scheduler dedicated to feed
// polling (kept separate from any cron instance used elsewhere so that
// Stop only ever waits on polling jobs).
func NewRSS(core Core, fetcher FeedFetcher) *RSS {
	return &RSS{
		Core:    core,
		cron:    cron.New(),
		fetcher: fetcher,
		entries: make(map[int64]cron.EntryID),
		seen:    make(map[int64]string),
	}
}

// Start begins running armed poll jobs on their own goroutine.
func (r *RSS) Start() { r.cron.Start() }

// Stop halts the cron scheduler so no new polls start. It does not wait;
// the returned context is done once any in-flight poll has finished.
func (r *RSS) Stop() context.Context { return r.cron.Stop() }

// Subscribe creates a Subscription row with no hub (PollingInterval seconds
// between polls) and arms its recurring poll job.
func (r *RSS) Subscribe(ctx context.Context, site, feedURL string, pollSeconds int64) (repository.Subscription, error) {
	sub, err := r.subs.Create(ctx, repository.Subscription{
		Site:            site,
		TopicURI:        feedURL,
		PollingInterval: pollSeconds,
	})
	if err != nil {
		return repository.Subscription{}, fmt.Errorf("subscriber: create subscription: %w", err)
	}
	r.arm(sub)
	return sub, nil
}

// Unsubscribe disarms the subscription's poll job and removes its row.
func (r *RSS) Unsubscribe(ctx context.Context, subscriptionID int64) error {
	r.mu.Lock()
	id, ok := r.entries[subscriptionID]
	if ok {
		delete(r.entries, subscriptionID)
	}
	delete(r.seen, subscriptionID)
	r.mu.Unlock()
	if ok {
		r.cron.Remove(id)
	}
	if _, err := r.subs.Delete(ctx, subscriptionID); err != nil {
		return fmt.Errorf("subscriber: delete subscription: %w", err)
	}
	return nil
}

// Rearm re-schedules every persisted RSS subscription's poll job, used at
// startup once the repository has been loaded.
func (r *RSS) Rearm(ctx context.Context) error {
	all, err := r.subs.GetMultiple(ctx)
	if err != nil {
		return fmt.Errorf("subscriber: list subscriptions: %w", err)
	}
	for _, sub := range all {
		if sub.PollingInterval > 0 {
			r.arm(sub)
		}
	}
	return nil
}

func (r *RSS) arm(sub repository.Subscription) {
	spec := fmt.Sprintf("@every %ds", sub.PollingInterval)
	id, err := r.cron.AddFunc(spec, func() { r.poll(sub.ID) })
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("subscriber: failed to arm rss poll job", "subscription_id", sub.ID, "error", err)
		}
		return
	}
	r.mu.Lock()
	r.entries[sub.ID] = id
	r.mu.Unlock()
}

// poll runs on the cron goroutine; it has no caller to return an error to,
// so failures are logged and simply retried on the next tick.
func (r *RSS) poll(subscriptionID int64) {
	ctx := context.Background()
	sub, err := r.subs.Get(ctx, subscriptionID)
	if err != nil {
		return // unsubscribed since this job was armed
	}
	body, err := r.fetcher.Fetch(ctx, sub.TopicURI)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("subscriber: rss poll fetch failed", "subscription_id", subscriptionID, "error", err)
		}
		return
	}
	entries, err := ParseEntries(body)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("subscriber: rss poll parse failed", "subscription_id", subscriptionID, "error", err)
		}
		return
	}
	entry, ok := Latest(entries)
	if !ok {
		return
	}

	r.mu.Lock()
	last := r.seen[subscriptionID]
	if last == entry.ID {
		r.mu.Unlock()
		return
	}
	r.seen[subscriptionID] = entry.ID
	r.mu.Unlock()

	if err := r.deliver(ctx, sub.Site, entry); err != nil && r.logger != nil {
		r.logger.Error("subscriber: rss poll delivery failed", "subscription_id", subscriptionID, "error", err)
	}
}
