package events

// Entity types
const (
	EntityDownload = "download"
	EntityContent  = "content"
)

// Event type constants
const (
	EventDownloadStarted   = "download.started"
	EventDownloadCompleted = "download.completed"
	EventDownloadFailed    = "download.failed"
	EventDownloadCancelled = "download.cancelled"
	EventMemoryChanged     = "memory.changed"
	EventMonitorSearched   = "monitor.searched"
)

// DownloadStarted is emitted when a torrent transfer begins.
type DownloadStarted struct {
	BaseEvent
	Content string `json:"content"` // display description
	Torrent string `json:"torrent"`
	Indexer string `json:"indexer,omitempty"`
	Tier    int    `json:"tier"`
}

// DownloadCompleted is emitted once a download has been exported.
type DownloadCompleted struct {
	BaseEvent
	Content string `json:"content"`
	Path    string `json:"path,omitempty"` // library destination
}

// DownloadFailed is emitted when a transfer or export fails.
type DownloadFailed struct {
	BaseEvent
	Content string `json:"content"`
	Reason  string `json:"reason"`
}

// DownloadCancelled is emitted when a user aborts a download.
type DownloadCancelled struct {
	BaseEvent
	Content string `json:"content"`
}

// MemoryChanged is emitted when the monitored or queued list changes.
type MemoryChanged struct {
	BaseEvent
	Target  string `json:"target"` // "monitored" or "queued"
	Method  string `json:"method"` // "add" or "remove"
	Content string `json:"content"`
}

// MonitorSearched is emitted after a monitor pass searches for an item.
type MonitorSearched struct {
	BaseEvent
	Content string `json:"content"`
	Found   bool   `json:"found"`
}
