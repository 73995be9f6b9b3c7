package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/repository"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/scheduler"
	"github.com/OSU-Foreclosure-Task-Force/EasyRepost/internal/task"
)

// taskGateway binds the generic CRUD/lifecycle handlers below to one
// scheduler (download or upload), the way original_source/route/download.py
// and upload.py are two near-identical routers over two distinct APIs.
type taskGateway struct {
	sched *scheduler.Scheduler
	kind  task.Kind
}

func (a *api) downloadTasks() taskGateway { return taskGateway{sched: a.deps.Download, kind: task.KindDownload} }
func (a *api) uploadTasks() taskGateway   { return taskGateway{sched: a.deps.Upload, kind: task.KindUpload} }

func mountTaskRoutes(r chi.Router, a *api, gw taskGateway) {
	r.Get("/", a.handleListTasks(gw))
	r.Post("/", a.handleAddTask(gw, false))
	r.Post("/sync", a.handleAddTask(gw, true))
	r.Post("/get_all", a.handleFilterTasks(gw))
	r.Get("/{id}", a.handleGetTask(gw))
	r.Post("/{id}", a.handleEditTask(gw))
	r.Put("/{id}", a.handlePauseTask(gw))
	r.Delete("/{id}", a.handleCancelTask(gw))
	r.Get("/{id}/force", a.handleForceTask(gw))
	r.Post("/{id}/retry", a.handleRetryTask(gw))
}

// taskRequest is the JSON wire shape for both creating and editing a task;
// download- and upload-specific fields are simply left at their zero value
// for the kind that doesn't use them, mirroring original_source/route's
// NewUploadTask/DownloadTask split without needing two parallel structs.
type taskRequest struct {
	Name     string         `json:"name"`
	URL      string         `json:"url,omitempty"`
	Site     string         `json:"site,omitempty"`
	Priority *task.Priority `json:"priority,omitempty"`

	WithDescription bool   `json:"with_description,omitempty"`
	WithSubtitles   bool   `json:"with_subtitles,omitempty"`
	WithThumbnail   bool   `json:"with_thumbnail,omitempty"`
	Format          string `json:"format,omitempty"`

	Extension   string   `json:"extension,omitempty"`
	Destination string   `json:"destination,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

func (req taskRequest) toTask(kind task.Kind) task.Task {
	t := task.Task{
		Name:     req.Name,
		Kind:     kind,
		Priority: task.PriorityDefault,
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	switch kind {
	case task.KindDownload:
		t.URL = req.URL
		t.Download = &task.DownloadAttrs{
			Site:            req.Site,
			WithDescription: req.WithDescription,
			WithSubtitles:   req.WithSubtitles,
			WithThumbnail:   req.WithThumbnail,
			Format:          req.Format,
		}
	case task.KindUpload:
		t.Extension = req.Extension
		t.Upload = &task.UploadAttrs{
			Destination: req.Destination,
			Tags:        req.Tags,
		}
	}
	return t
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

func (a *api) handleListTasks(gw taskGateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writePayloads(w, http.StatusOK, gw.sched.List(task.Filter{}))
	}
}

func (a *api) handleFilterTasks(gw taskGateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter task.Filter
		if err := decodeJSON(r, &filter); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writePayloads(w, http.StatusOK, gw.sched.List(filter))
	}
}

// handleAddTask implements both POST /, which replies with a bare
// "task scheduled" envelope, and POST /sync, which replies with the
// persisted record. Both call AddNewTask and wait for it before responding
// (original_source/route/{download,upload}.py's add_new_*_task vs the
// subscription route's subscribe/subscribe_sync split applied the same way
// here).
func (a *api) handleAddTask(gw taskGateway, sync bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req taskRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := gw.sched.AddNewTask(r.Context(), req.toTask(gw.kind))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if sync {
			writePayload(w, http.StatusOK, created)
			return
		}
		writeJSON(w, http.StatusOK, baseResponse{Success: true, Message: "task scheduled"})
	}
}

func (a *api) handleGetTask(gw taskGateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		t, ok := gw.sched.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, repository.ErrNotFound)
			return
		}
		writePayload(w, http.StatusOK, t)
	}
}

func (a *api) handleEditTask(gw taskGateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		var req taskRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		delta := task.Delta{ID: id, Priority: req.Priority}
		if req.Name != "" {
			delta.Name = &req.Name
		}
		if gw.kind == task.KindDownload && req.URL != "" {
			delta.URL = &req.URL
		}
		updated, err := gw.sched.EditTask(r.Context(), delta)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writePayload(w, http.StatusOK, updated)
	}
}

func (a *api) handlePauseTask(gw taskGateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		gw.sched.OnPause(id)
		writeJSON(w, http.StatusOK, baseResponse{Success: true})
	}
}

func (a *api) handleCancelTask(gw taskGateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		gw.sched.OnCancel(id)
		writeJSON(w, http.StatusOK, baseResponse{Success: true})
	}
}

func (a *api) handleForceTask(gw taskGateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		gw.sched.OnForce(id)
		writeJSON(w, http.StatusOK, baseResponse{Success: true})
	}
}

func (a *api) handleRetryTask(gw taskGateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := gw.sched.OnRetry(id); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, baseResponse{Success: true})
	}
}

func statusFor(err error) int {
	if errors.Is(err, repository.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusConflict
}
