package api

import (
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	AlertAuthFailureSpike AlertType = "auth_failure_spike"
	AlertBulkDownload     AlertType = "bulk_download"
)

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

// metricsCollector tracks sliding window counters over audit events.
type metricsCollector struct {
	mu  sync.Mutex
	now func() time.Time

	authFailures  []time.Time
	authWindow    time.Duration
	authThreshold int

	downloads         []time.Time
	downloadWindow    time.Duration
	downloadThreshold int

	alertFn AlertFunc
}

const (
	defaultAuthFailureWindow    = 1 * time.Minute
	defaultAuthFailureThreshold = 50
	defaultDownloadWindow       = 5 * time.Minute
	defaultDownloadThreshold    = 100
)

func newMetricsCollector(alertFn AlertFunc, now func() time.Time) *metricsCollector {
	if now == nil {
		now = time.Now
	}
	return &metricsCollector{
		now:               now,
		authWindow:        defaultAuthFailureWindow,
		authThreshold:     defaultAuthFailureThreshold,
		downloadWindow:    defaultDownloadWindow,
		downloadThreshold: defaultDownloadThreshold,
		alertFn:           alertFn,
	}
}

// recordEvent inspects an audit event and updates the relevant counters.
func (m *metricsCollector) recordEvent(event AuditEvent) {
	if m == nil || m.alertFn == nil {
		return
	}
	switch event {
	case AuditAuthFailure:
		m.count(&m.authFailures, m.authWindow, m.authThreshold,
			AlertAuthFailureSpike, "bad token rate exceeds threshold")
	case AuditFileDownloaded:
		m.count(&m.downloads, m.downloadWindow, m.downloadThreshold,
			AlertBulkDownload, "download rate exceeds threshold")
	}
}

// count appends now to *times, trims it to window and fires an alert once
// threshold is reached. The window is reset after an alert so one spike
// produces one alert. alertFn runs after the lock is released.
func (m *metricsCollector) count(times *[]time.Time, window time.Duration, threshold int, typ AlertType, msg string) {
	m.mu.Lock()
	now := m.now()
	*times = trimWindow(append(*times, now), now, window)
	n := len(*times)
	if n < threshold {
		m.mu.Unlock()
		return
	}
	*times = (*times)[:0]
	m.mu.Unlock()

	m.alertFn(AlertEvent{
		Type:      typ,
		Message:   msg,
		Count:     n,
		Threshold: threshold,
		Timestamp: now,
	})
}

// trimWindow removes entries older than (now - window) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
