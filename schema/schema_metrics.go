package schema

import "time"

// MetricContext describes where in the app a sample was recorded.
type MetricContext struct {
	Route      string            `json:"route,omitempty"`
	ScreenName string            `json:"screen_name,omitempty"`
	Params     map[string]string `json:"params,omitempty"` // route params; matching path segments are dynamic
}

// MetricSample is a single recorded client metric. Samples are immutable once ingested.
type MetricSample struct {
	ID         int64         `json:"id,omitempty"`
	SessionID  string        `json:"session_id" validate:"required"`
	Timestamp  time.Time     `json:"timestamp" validate:"required"`
	MetricType MetricType    `json:"metric_type" validate:"required"`
	Value      float64       `json:"value" validate:"gte=0"`
	Context    MetricContext `json:"context"`
}

// RouteKey returns the raw route of the sample, falling back to the screen name.
func (m MetricSample) RouteKey() string {
	if m.Context.Route != "" {
		return m.Context.Route
	}
	return m.Context.ScreenName
}

// Session groups the samples recorded during one app run.
type Session struct {
	ID              string     `json:"id" validate:"required"`
	AnonymousUserID string     `json:"anonymous_user_id,omitempty"`
	DeviceID        string     `json:"device_id,omitempty"`
	DeviceType      string     `json:"device_type,omitempty"`
	Platform        string     `json:"platform,omitempty"`
	AppVersion      string     `json:"app_version,omitempty"`
	SessionStart    time.Time  `json:"session_start" validate:"required"`
	SessionEnd      *time.Time `json:"session_end,omitempty"`
}

// IsActive reports whether the session has not ended yet.
func (s Session) IsActive() bool {
	return s.SessionEnd == nil
}

// UserKey returns the identity used to group sessions into journeys.
func (s Session) UserKey() string {
	switch {
	case s.AnonymousUserID != "":
		return s.AnonymousUserID
	case s.DeviceID != "":
		return s.DeviceID
	default:
		return s.ID
	}
}

// MetricAverages holds the per-type averages of a group of samples.
// A type with no samples averages to zero.
type MetricAverages struct {
	Fps         float64            `json:"fps"`
	Memory      float64            `json:"memory"`
	Cpu         float64            `json:"cpu"`
	LoadTime    float64            `json:"load_time"`
	ScreenTime  float64            `json:"screen_time"`
	CpuInferred bool               `json:"cpu_inferred"`
	Counts      map[MetricType]int `json:"counts"`
}

// Has reports whether at least one sample of the type was averaged.
func (a MetricAverages) Has(t MetricType) bool {
	if t.IsLoadTime() {
		return a.Counts[NavigationTimeMetric]+a.Counts[ScreenLoadMetric] > 0
	}
	return a.Counts[t] > 0
}

// SessionFilter narrows a session listing.
type SessionFilter struct {
	Start      time.Time
	End        time.Time
	AppVersion string
	DeviceType string
	Platform   string
	UserID     string
	Limit      int
	Newest     bool // with Limit, keep the latest sessions; results stay in ascending order
}

// MetricFilter narrows a metric listing.
type MetricFilter struct {
	Start  time.Time
	End    time.Time
	Types  []MetricType
	Route  string
	After  int64 // only samples with a larger ID
	Limit  int
	Newest bool // with Limit, keep the latest samples; results stay in ascending order
	ByID   bool // order by ID instead of timestamp
}

// IngestBatch is the payload accepted by the ingest command.
type IngestBatch struct {
	Sessions []Session      `json:"sessions" validate:"dive"`
	Metrics  []MetricSample `json:"metrics" validate:"dive"`
}
