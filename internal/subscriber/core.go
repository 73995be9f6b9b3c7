// Package subscriber implements the WebSub and RSS acquisition front ends.
// Both variants embed Core,
// which holds the dependencies and behavior they share: repositories,
// the event bus, the at-rest secret box, and download hand-off — mirroring
// original_source/handler/Subscriber.py's Subscriber base class with
// WebSubSubscriber/RSSSubscriber as its two concrete children, expressed
// here as Go composition (an embedded struct) rather than inheritance.
package subscriber

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/eventbus"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/repository"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/secretbox"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/task"
)

// Logger is the same narrow surface internal/scheduler depends on, kept
// local so this package does not import modular's concrete logger type
// directly.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DownloadSink is how a parsed feed entry becomes a scheduled download
// task. In production this is *scheduler.Scheduler.OnFeed for the download
// scheduler; tests supply a fake.
type DownloadSink interface {
	OnFeed(ctx context.Context, t task.Task) (task.Task, error)
}

// HubClient posts form-encoded WebSub subscribe/unsubscribe requests. The
// real implementation wraps net/http; tests supply a fake that never makes
// a network call.
type HubClient interface {
	PostForm(ctx context.Context, rawURL string, values url.Values) error
}

// httpHubClient is the production HubClient, grounded on the same
// net/http-with-context idiom the corpus uses throughout for outbound
// calls (e.g. nugget-thane-ai-agent's feed fetcher).
type httpHubClient struct {
	client *http.Client
}

// NewHubClient returns a HubClient backed by client, or http.DefaultClient
// if nil.
func NewHubClient(client *http.Client) HubClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpHubClient{client: client}
}

func (h *httpHubClient) PostForm(ctx context.Context, rawURL string, values url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(values.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &hubStatusError{status: resp.StatusCode}
	}
	return nil
}

type hubStatusError struct{ status int }

func (e *hubStatusError) Error() string {
	return "subscriber: hub responded with unexpected status"
}

// Core is the shared dependency bundle embedded by WebSub and RSS.
type Core struct {
	subs      repository.SubscriptionRepository
	hubs      repository.HubRepository
	bus       *eventbus.Bus
	box       *secretbox.Box
	downloads DownloadSink
	client    HubClient
	logger    Logger

	callbackBaseURL   string // e.g. https://easyrepost.example.com
	subscriptionToken string // SUBSCRIPTION_TOKEN, the shared hub.verify_token
	validationInterval time.Duration
	leaseSeconds      int64
}

// NewCore builds the dependency bundle WebSub and RSS both embed.
func NewCore(
	subs repository.SubscriptionRepository,
	hubs repository.HubRepository,
	bus *eventbus.Bus,
	box *secretbox.Box,
	downloads DownloadSink,
	client HubClient,
	logger Logger,
	callbackBaseURL, subscriptionToken string,
	validationInterval time.Duration,
	leaseSeconds int64,
) Core {
	if client == nil {
		client = NewHubClient(nil)
	}
	return Core{
		subs:               subs,
		hubs:               hubs,
		bus:                bus,
		box:                box,
		downloads:          downloads,
		client:             client,
		logger:             logger,
		callbackBaseURL:    strings.TrimRight(callbackBaseURL, "/"),
		subscriptionToken:  subscriptionToken,
		validationInterval: validationInterval,
		leaseSeconds:       leaseSeconds,
	}
}

// callbackURL builds the WebSub callback URL a hub will POST updates and GET
// validation requests to. The subscription id is embedded in the path so
// the HTTP layer can route straight to it without a lookup table.
func (c *Core) callbackURL(site string, subscriptionID int64) string {
	return fmt.Sprintf("%s/subscription/callback/%s/%d", c.callbackBaseURL, site, subscriptionID)
}

// deliver turns a parsed feed entry into a scheduled download task and
// fans the raw feed event out on the bus.
func (c *Core) deliver(ctx context.Context, site string, e Entry) error {
	c.bus.Emit(eventbus.TopicNewFeed, e)
	t := task.Task{
		Name:     e.Title,
		URL:      e.Link,
		State:    task.StateWaiting,
		Priority: task.PriorityDefault,
		Download: &task.DownloadAttrs{Site: site},
	}
	if c.downloads != nil {
		stored, err := c.downloads.OnFeed(ctx, t)
		if err != nil {
			return err
		}
		t = stored
	}
	c.bus.Emit(eventbus.TopicNewDownload, t)
	return nil
}
