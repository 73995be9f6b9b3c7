// Package httpapi exposes the HTTP surface over chi: download and upload
// task CRUD/lifecycle routes, subscription and hub CRUD, and the
// WebSub callback endpoints. Grounded on
// original_source/route/{download,subscription,upload}.py for the route
// list and on
// _examples/GoCodeAlone-modular/examples/basic-app/api/api.go and
// modules/chimux/module.go for the Go chi-router shape.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/repository"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/scheduler"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/subscriber"
)

// Logger is the narrow structured-logging surface this package depends on,
// kept local the way internal/scheduler and internal/subscriber do.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Deps bundles everything the router needs to construct its handlers.
type Deps struct {
	Download      *scheduler.Scheduler
	Upload        *scheduler.Scheduler
	WebSub        *subscriber.WebSub
	RSS           *subscriber.RSS
	Hubs          repository.HubRepository
	Subscriptions repository.SubscriptionRepository

	AppToken string // APP_TOKEN; empty disables auth (tests only)
	Logger   Logger
}

// NewRouter builds the complete chi.Router. Every route is guarded by
// appTokenAuth except the WebSub callback routes, which the hub calls and
// which authenticate themselves via hub.verify_token / X-Hub-Signature
// instead: the hub is never in possession of APP_TOKEN.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	api := &api{deps: deps}

	r.Route("/subscription/callback", func(cr chi.Router) {
		cr.Get("/{site}/{id}", api.handleWebSubValidate)
		cr.Post("/{site}/{id}", api.handleWebSubUpdate)
	})

	r.Group(func(gr chi.Router) {
		gr.Use(api.appTokenAuth)

		gr.Route("/download", func(dr chi.Router) {
			mountTaskRoutes(dr, api, api.downloadTasks())
		})
		gr.Route("/upload", func(ur chi.Router) {
			mountTaskRoutes(ur, api, api.uploadTasks())
		})

		gr.Route("/subscription", func(sr chi.Router) {
			sr.Post("/", api.handleSubscribe(false))
			sr.Post("/sync", api.handleSubscribe(true))
			sr.Delete("/", api.handleUnsubscribe)

			sr.Route("/hub", func(hr chi.Router) {
				hr.Get("/", api.handleListHubs)
				hr.Post("/", api.handleCreateHub)
				hr.Get("/{id}", api.handleGetHub)
				hr.Put("/{id}", api.handleEditHub)
				hr.Delete("/{id}", api.handleDeleteHub)
			})
		})
	})

	return r
}

type api struct {
	deps Deps
}

// writeJSON mirrors the {success, message} / {success, payload} /
// {success, payloads} response envelopes original_source/models/
// SubscriptionModels.py and model.py's BaseResponse/DataResponse/
// DataListResponse use throughout.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type baseResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// payloadResponse mirrors original_source's DataResponse: success alongside
// a single payload object.
type payloadResponse struct {
	Success bool `json:"success"`
	Payload any  `json:"payload"`
}

// payloadsResponse mirrors original_source's DataListResponse: success
// alongside the plural payloads key a list endpoint returns.
type payloadsResponse struct {
	Success  bool `json:"success"`
	Payloads any  `json:"payloads"`
}

func writePayload(w http.ResponseWriter, status int, payload any) {
	writeJSON(w, status, payloadResponse{Success: true, Payload: payload})
}

func writePayloads(w http.ResponseWriter, status int, payloads any) {
	writeJSON(w, status, payloadsResponse{Success: true, Payloads: payloads})
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, baseResponse{Success: false, Message: err.Error()})
}
