// Package metrics tracks pipeline counters exposed on the monitoring
// endpoint.
package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	runsStarted      int64
	runsFailed       int64
	postsPublished   int64
	topicRetries     int64
	imagesResolved   int64
	imagesRejected   int64
	articlesRejected int64

	lastRunTime     time.Time
	lastPublishTime time.Time
	startTime       time.Time
}

func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) RunStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runsStarted++
	m.lastRunTime = time.Now()
}

func (m *Metrics) RunFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runsFailed++
}

func (m *Metrics) PostPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postsPublished++
	m.lastPublishTime = time.Now()
}

func (m *Metrics) TopicRetried() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topicRetries++
}

func (m *Metrics) ImagesResolved(accepted, rejected int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imagesResolved += int64(accepted)
	m.imagesRejected += int64(rejected)
}

func (m *Metrics) ArticleRejectedSimilar() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.articlesRejected++
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"runs_started":              m.runsStarted,
		"runs_failed":               m.runsFailed,
		"posts_published":           m.postsPublished,
		"topic_retries":             m.topicRetries,
		"images_resolved":           m.imagesResolved,
		"images_rejected":           m.imagesRejected,
		"articles_rejected_similar": m.articlesRejected,
		"last_run_time":             m.lastRunTime.Format(time.RFC3339),
		"last_publish_time":         m.lastPublishTime.Format(time.RFC3339),
		"uptime_seconds":            int64(time.Since(m.startTime).Seconds()),
	}
}
