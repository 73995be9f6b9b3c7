package eventbus

// Well-known event names emitted by the scheduler and subscriber. Keeping
// these as typed constants (rather than the Python original's free-standing
// Event objects per name) lets every producer and consumer agree on the
// string without importing each other's packages.
const (
	// ErrorTopic is the implicit channel every listener panic/error is
	// re-emitted on, matching original_source/event/Event.py's "error".
	ErrorTopic = "error"

	TopicNewTaskCreated   = "new_task_created"
	TopicTaskEdited       = "task_edited"
	TopicProcessing       = "processing"
	TopicProcessingError  = "processing_error"
	TopicComplete         = "complete"
	TopicWait             = "wait"
	TopicRetry            = "retry"
	TopicPause            = "pause"
	TopicResume           = "resume"
	TopicCancel           = "cancel"
	TopicForceStart       = "force_start"
	TopicSuspend          = "suspend"
	TopicFeed             = "feed"
	TopicNewDownload      = "new_download"
	TopicNewFeed          = "new_feed"
	TopicSubscribeComplete   = "subscribe_complete"
	TopicUnsubscribeComplete = "unsubscribe_complete"
)
