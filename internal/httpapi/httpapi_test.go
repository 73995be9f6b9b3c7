package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/eventbus"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/repository"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/repository/memstore"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/scheduler"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/secretbox"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/subscriber"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/task"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/worker"
)

type instantWorker struct{}

func (instantWorker) Start(ctx context.Context) error  { return nil }
func (instantWorker) Pause(ctx context.Context) error  { return nil }
func (instantWorker) Resume(ctx context.Context) error { return nil }
func (instantWorker) Cancel(ctx context.Context) error { return nil }
func (instantWorker) Progress() float64                { return 0 }

func newTestSchedulerPair(t *testing.T) *scheduler.Pair {
	t.Helper()
	factory := worker.FactoryFunc(func(tk task.Task, capacity worker.CapacityChecker) (worker.Worker, error) {
		return instantWorker{}, nil
	})
	dl := scheduler.New(task.KindDownload, memstore.New(task.KindDownload), eventbus.New(), factory, nil, scheduler.Config{MaxConcurrent: 2}, nil)
	ul := scheduler.New(task.KindUpload, memstore.New(task.KindUpload), eventbus.New(), factory, nil, scheduler.Config{MaxConcurrent: 2}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go dl.Run(ctx)
	go ul.Run(ctx)
	return scheduler.NewPair(dl, ul)
}

type fakeHubClient struct {
	respond func(values url.Values)
}

func (f *fakeHubClient) PostForm(ctx context.Context, rawURL string, values url.Values) error {
	if f.respond != nil {
		f.respond(values)
	}
	return nil
}

func newTestServer(t *testing.T, appToken string) (*httptest.Server, *scheduler.Pair, *memstore.HubStore, *memstore.SubscriptionStore) {
	t.Helper()
	pair := newTestSchedulerPair(t)
	hubs := memstore.NewHubStore()
	subs := memstore.NewSubscriptionStore()
	box := secretbox.New("test-key")
	bus := eventbus.New()

	var ws *subscriber.WebSub
	hubClient := &fakeHubClient{respond: func(values url.Values) {
		if values.Get("hub.mode") != "subscribe" {
			return
		}
		parts := strings.Split(values.Get("hub.callback"), "/")
		id, _ := strconv.ParseInt(parts[len(parts)-1], 10, 64)
		go func() {
			time.Sleep(5 * time.Millisecond)
			_, _ = ws.HandleValidation(context.Background(), id, "shared-token", "chal")
		}()
	}}
	core := subscriber.NewCore(subs, hubs, bus, box, pair.Download, hubClient, nil, "http://localhost:8080", "shared-token", 200*time.Millisecond, 864000)
	ws = subscriber.NewWebSub(core)
	rss := subscriber.NewRSS(core, subscriber.NewFeedFetcher(nil))

	handler := NewRouter(Deps{
		Download:      pair.Download,
		Upload:        pair.Upload,
		WebSub:        ws,
		RSS:           rss,
		Hubs:          hubs,
		Subscriptions: subs,
		AppToken:      appToken,
	})
	return httptest.NewServer(handler), pair, hubs, subs
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestAppTokenAuthRejectsMissingToken(t *testing.T) {
	srv, _, _, _ := newTestServer(t, "secret-token")
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/download/", nil, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAppTokenAuthAcceptsValidToken(t *testing.T) {
	srv, _, _, _ := newTestServer(t, "secret-token")
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/download/", nil, map[string]string{"X-App-Token": "secret-token"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAddAndGetDownloadTaskSync(t *testing.T) {
	srv, _, _, _ := newTestServer(t, "")
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/download/sync", map[string]any{
		"name": "video one", "url": "https://example.com/v1", "site": "youtube",
	}, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out payloadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
	payload, ok := out.Payload.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, "video one", payload["Name"])
}

func TestDownloadTaskPauseAndCancelLifecycle(t *testing.T) {
	srv, pair, _, _ := newTestServer(t, "")
	defer srv.Close()

	created, err := pair.Download.AddNewTask(context.Background(), task.Task{Name: "t1", Priority: task.PriorityDefault})
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPut, srv.URL+"/download/"+strconv.FormatInt(created.ID, 10), nil, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/download/"+strconv.FormatInt(created.ID, 10), nil, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHubCRUD(t *testing.T) {
	srv, _, _, _ := newTestServer(t, "")
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/subscription/hub/", map[string]string{"name": "h", "url": "https://example.com"}, nil)
	var created payloadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/subscription/hub/", map[string]string{"name": "h2", "url": "https://e2.com"}, nil)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/subscription/hub/", nil, nil)
	var list payloadsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	assert.True(t, list.Success)
	hubs, ok := list.Payloads.([]any)
	require.True(t, ok)
	assert.Len(t, hubs, 2)
}

func TestWebSubSyncSubscribeCompletesOnValidation(t *testing.T) {
	srv, _, hubs, _ := newTestServer(t, "")
	defer srv.Close()

	hub, err := hubs.Create(context.Background(), repository.Hub{Name: "youtube", URL: "https://hub.example.com"})
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPost, srv.URL+"/subscription/sync", map[string]any{
		"site": "youtube", "hub_id": hub.ID, "topic_uri": "https://youtube.com/xml?channel_id=CID",
	}, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
