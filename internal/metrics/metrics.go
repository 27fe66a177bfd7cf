package metrics

import (
	"sync"
)

// Metrics tracks job pipeline counters for the lifetime of the process.
type Metrics struct {
	mu sync.RWMutex

	submittedJobs        int64
	dispatchedJobs       int64
	completedJobs        int64
	failedJobs           int64
	regeneratedJobs      int64
	downloads            int64
	previews             int64
	credentialFailures   int64
	credentialsRotated   int64
	notificationFailures int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) add(counter *int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*counter++
}

// IncrementSubmitted counts an accepted submission.
func (m *Metrics) IncrementSubmitted() {
	if m != nil {
		m.add(&m.submittedJobs)
	}
}

// IncrementDispatched counts a job handed to the worker pool.
func (m *Metrics) IncrementDispatched() {
	if m != nil {
		m.add(&m.dispatchedJobs)
	}
}

// IncrementCompleted counts a job that reached completed.
func (m *Metrics) IncrementCompleted() {
	if m != nil {
		m.add(&m.completedJobs)
	}
}

// IncrementFailed counts a job that reached failed.
func (m *Metrics) IncrementFailed() {
	if m != nil {
		m.add(&m.failedJobs)
	}
}

// IncrementRegenerated counts a job reset for another generation run.
func (m *Metrics) IncrementRegenerated() {
	if m != nil {
		m.add(&m.regeneratedJobs)
	}
}

// IncrementDownloads counts a successful credential redemption.
func (m *Metrics) IncrementDownloads() {
	if m != nil {
		m.add(&m.downloads)
	}
}

// IncrementPreviews counts served previews.
func (m *Metrics) IncrementPreviews() {
	if m != nil {
		m.add(&m.previews)
	}
}

// IncrementCredentialFailures counts rejected download attempts.
func (m *Metrics) IncrementCredentialFailures() {
	if m != nil {
		m.add(&m.credentialFailures)
	}
}

// IncrementCredentialsRotated counts credentials issued by regeneration.
func (m *Metrics) IncrementCredentialsRotated() {
	if m != nil {
		m.add(&m.credentialsRotated)
	}
}

// IncrementNotificationFailures counts notifications that could not be sent.
func (m *Metrics) IncrementNotificationFailures() {
	if m != nil {
		m.add(&m.notificationFailures)
	}
}

// GetSnapshot returns a snapshot of all metrics
func (m *Metrics) GetSnapshot() map[string]int64 {
	if m == nil {
		return map[string]int64{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]int64{
		"submitted_jobs":        m.submittedJobs,
		"dispatched_jobs":       m.dispatchedJobs,
		"completed_jobs":        m.completedJobs,
		"failed_jobs":           m.failedJobs,
		"regenerated_jobs":      m.regeneratedJobs,
		"downloads":             m.downloads,
		"previews":              m.previews,
		"credential_failures":   m.credentialFailures,
		"credentials_rotated":   m.credentialsRotated,
		"notification_failures": m.notificationFailures,
	}
}
