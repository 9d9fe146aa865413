package common

import "time"

// AddParams is the input for queue.add.
type AddParams struct {
	Key      string `json:"key"`
	Priority int    `json:"priority"`
	// Score orders the key within its level on queue.sort. Nil means unscored.
	Score *float64 `json:"score,omitempty"`
}

// KeyParams is the input for methods that take a single key.
type KeyParams struct {
	Key string `json:"key"`
}

// HasParams is the input for queue.has. A nil Priority matches any level.
type HasParams struct {
	Key      string `json:"key"`
	Priority *int   `json:"priority,omitempty"`
}

// LevelParams is the input for queue.size and queue.sort. A nil Priority
// selects every level.
type LevelParams struct {
	Priority *int `json:"priority,omitempty"`
}

// PriorityResult is the response for queue.priority. Priority is -1 when
// the key is not queued.
type PriorityResult struct {
	Key      string `json:"key"`
	Priority int    `json:"priority"`
}

// StatusResult is the response for queue.status.
type StatusResult struct {
	Status   string     `json:"status"`
	Levels   [][]string `json:"levels"`
	InFlight []string   `json:"inFlight"`
	Limit    int        `json:"limit"`
}

// HistoryParams is the input for journal.list.
type HistoryParams struct {
	Limit int `json:"limit,omitempty"`
}

// HistoryEntry is one recorded transfer outcome.
type HistoryEntry struct {
	ID        string    `json:"id"`
	Attempt   string    `json:"attempt"`
	Key       string    `json:"key"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	Bytes     int64     `json:"bytes"`
	ElapsedMs int64     `json:"elapsedMs"`
	At        time.Time `json:"at"`
}

// HistoryResult is the response for journal.list.
type HistoryResult struct {
	Entries []HistoryEntry `json:"entries"`
}

// VersionResult is the response for system.getVersion.
type VersionResult struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildType string `json:"buildType,omitempty"`
}

// StatsResult is the response for system.stats.
type StatsResult struct {
	Metrics map[string]float64 `json:"metrics"`
}

// EventNotification is the params of a queue.event push notification.
type EventNotification struct {
	Type      string    `json:"type"`
	Key       string    `json:"key,omitempty"`
	Level     int       `json:"level,omitempty"`
	Attempt   string    `json:"attempt,omitempty"`
	Bytes     int64     `json:"bytes,omitempty"`
	ElapsedMs int64     `json:"elapsedMs,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}
