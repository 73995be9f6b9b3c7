// Package task defines the data model shared by the download and upload
// schedulers: task identity, lifecycle state, priority, and the
// variant-specific attributes the core forwards opaquely to workers.
package task

import "time"

// Kind distinguishes a download task from an upload task. The two
// schedulers never mix kinds; it exists mainly so a single repository
// implementation can serve both tables.
type Kind string

const (
	KindDownload Kind = "download"
	KindUpload   Kind = "upload"
)

// State is one of the seven task lifecycle states.
type State string

const (
	StateWaiting    State = "WAITING"
	StateInQueue    State = "IN_QUEUE"
	StateProcessing State = "PROCESSING"
	StatePause      State = "PAUSE"
	StateSuspended  State = "SUSPENDED"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
)

// Priority is a total order; higher values are serviced first.
type Priority int

const (
	PriorityNoHurry Priority = iota
	PriorityDefault
	PriorityInHurry
)

// Less reports whether p has lower scheduling urgency than other, i.e.
// whether p is dequeued after other.
func (p Priority) Less(other Priority) bool {
	return p < other
}

// DownloadAttrs mirrors original_source/model.py's DownloadTask columns.
// The core never inspects these fields; only the repository persists them
// and the worker factory consumes them.
type DownloadAttrs struct {
	Site            string `json:"site"`
	WithDescription bool   `json:"with_description"`
	WithSubtitles   bool   `json:"with_subtitles"`
	WithThumbnail   bool   `json:"with_thumbnail"`
	Format          string `json:"format,omitempty"`
	ResolutionX     int    `json:"resolution_x,omitempty"`
	ResolutionY     int    `json:"resolution_y,omitempty"`
	VideoCodec      string `json:"video_codec,omitempty"`
	AudioCodec      string `json:"audio_codec,omitempty"`
	VideoBitRate    int    `json:"video_bit_rate,omitempty"`
	AudioBitRate    int    `json:"audio_bit_rate,omitempty"`
	SampleRate      int    `json:"sample_rate,omitempty"`
	FrameRate       int    `json:"frame_rate,omitempty"`
}

// UploadAttrs mirrors original_source/model.py's UploadTask plus the
// UploadTag table folded back in.
type UploadAttrs struct {
	Destination string   `json:"destination"`
	Tags        []string `json:"tags,omitempty"`
}

// Task is the unit of work scheduled by either scheduler. Download and
// upload tasks share every field except which of Download/Upload is set.
type Task struct {
	ID        int64
	Kind      Kind
	Name      string
	Extension string
	Path      string
	URL       string // source, download tasks only
	WaitTime  int64  // epoch seconds; 0 means immediately eligible
	State     State
	Priority  Priority

	Download *DownloadAttrs `json:"download,omitempty"`
	Upload   *UploadAttrs   `json:"upload,omitempty"`
}

// FilePath reconstructs the on-disk artifact location the way
// original_source/model.py's Task.file_path property does.
func (t Task) FilePath() string {
	return t.Path + "/" + t.Name + t.Extension
}

// Eligible reports whether WaitTime has already elapsed as of now.
func (t Task) Eligible(now time.Time) bool {
	return t.WaitTime <= now.Unix()
}

// Delta carries the non-nil fields of an edit_task request; nil fields are
// left untouched on the persisted task.
type Delta struct {
	ID        int64
	Name      *string
	Extension *string
	Path      *string
	URL       *string
	WaitTime  *int64
	Priority  *Priority

	Download *DownloadAttrs
	Upload   *UploadAttrs
}

// Apply merges non-nil fields from d onto a copy of t and returns it.
func (d Delta) Apply(t Task) Task {
	if d.Name != nil {
		t.Name = *d.Name
	}
	if d.Extension != nil {
		t.Extension = *d.Extension
	}
	if d.Path != nil {
		t.Path = *d.Path
	}
	if d.URL != nil {
		t.URL = *d.URL
	}
	if d.WaitTime != nil {
		t.WaitTime = *d.WaitTime
	}
	if d.Priority != nil {
		t.Priority = *d.Priority
	}
	if d.Download != nil {
		t.Download = d.Download
	}
	if d.Upload != nil {
		t.Upload = d.Upload
	}
	return t
}

// Filter selects tasks by state, matching original_source/model.py's
// TaskFilter (states + filter_out).
type Filter struct {
	States    []State
	FilterOut bool
}

// EditableStates are the states edit_task is legal from.
var EditableStates = map[State]bool{
	StateWaiting:    true,
	StateInQueue:    true,
	StatePause:      true,
	StateSuspended:  true,
	StateCompleted:  true,
	StateFailed:     true,
	StateProcessing: false,
}
