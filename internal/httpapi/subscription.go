package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/repository"
)

const defaultRSSPollSeconds = 300

type subscribeRequest struct {
	Site        string `json:"site"`
	HubID       int64  `json:"hub_id,omitempty"`
	TopicURI    string `json:"topic_uri"`
	PollSeconds int64  `json:"poll_seconds,omitempty"`
}

type unsubscribeRequest struct {
	ID int64 `json:"id"`
}

// handleSubscribe implements both POST /subscription/ (fire-and-forget) and
// POST /subscription/sync (waits for the handshake to complete before
// responding), routing to WebSub when hub_id is given or to RSS polling
// otherwise (original_source/route/subscription.py's subscribe/
// subscribe_sync pair, generalized over the two acquisition modes this
// package supports).
func (a *api) handleSubscribe(sync bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req subscribeRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		subscribeFn := func(ctx context.Context) (any, error) {
			if req.HubID > 0 {
				return a.deps.WebSub.Subscribe(ctx, req.Site, req.HubID, req.TopicURI)
			}
			poll := req.PollSeconds
			if poll <= 0 {
				poll = defaultRSSPollSeconds
			}
			return a.deps.RSS.Subscribe(ctx, req.Site, req.TopicURI, poll)
		}

		if !sync {
			// The request context is cancelled once this handler returns, so
			// the background subscribe runs detached from it.
			bg := context.WithoutCancel(r.Context())
			go func() {
				if _, err := subscribeFn(bg); err != nil && a.deps.Logger != nil {
					a.deps.Logger.Warn("httpapi: async subscribe failed", "error", err)
				}
			}()
			writeJSON(w, http.StatusOK, baseResponse{Success: true, Message: "subscribe requested"})
			return
		}

		sub, err := subscribeFn(r.Context())
		if err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		writePayload(w, http.StatusOK, sub)
	}
}

// handleUnsubscribe looks the subscription up first to decide which
// acquisition mode owns it (HubID > 0 means WebSub), since the request body
// only carries the subscription id.
func (a *api) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sub, err := a.deps.Subscriptions.Get(r.Context(), req.ID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	if sub.HubID > 0 {
		err = a.deps.WebSub.Unsubscribe(r.Context(), req.ID)
	} else {
		err = a.deps.RSS.Unsubscribe(r.Context(), req.ID)
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, baseResponse{Success: true, Message: "unsubscribe successfully"})
}

// handleWebSubValidate answers a hub's GET validation callback. Success
// echoes hub.challenge as JSON; a verify_token mismatch
// replies with the plain-text "Invalid" original_source/handler/
// Subscriber.py's wait_validation path returns.
func (a *api) handleWebSubValidate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	q := r.URL.Query()
	challenge, err := a.deps.WebSub.HandleValidation(r.Context(), id, q.Get("hub.verify_token"), q.Get("hub.challenge"))
	if err != nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Invalid"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"hub.challenge": challenge})
}

// handleWebSubUpdate answers a hub's POST update callback.
func (a *api) handleWebSubUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sig := r.Header.Get("X-Hub-Signature")
	if sig == "" {
		writeError(w, http.StatusBadRequest, errors.New("httpapi: signature not detected"))
		return
	}
	if err := a.deps.WebSub.ReceiveUpdate(r.Context(), id, body, sig); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, baseResponse{Success: true, Message: "update received successfully"})
}

type hubRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (a *api) handleListHubs(w http.ResponseWriter, r *http.Request) {
	hubs, err := a.deps.Hubs.GetMultiple(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writePayloads(w, http.StatusOK, hubs)
}

func (a *api) handleGetHub(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	hub, err := a.deps.Hubs.Get(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writePayload(w, http.StatusOK, hub)
}

func (a *api) handleCreateHub(w http.ResponseWriter, r *http.Request) {
	var req hubRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	hub, err := a.deps.Hubs.Create(r.Context(), repository.Hub{Name: req.Name, URL: req.URL})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writePayload(w, http.StatusOK, hub)
}

func (a *api) handleEditHub(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	existing, err := a.deps.Hubs.Get(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	var req hubRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.URL != "" {
		existing.URL = req.URL
	}
	updated, err := a.deps.Hubs.Update(r.Context(), existing)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writePayload(w, http.StatusOK, updated)
}

func (a *api) handleDeleteHub(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ok, err := a.deps.Hubs.Delete(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, repository.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, baseResponse{Success: true, Message: "hub deleted successfully"})
}
