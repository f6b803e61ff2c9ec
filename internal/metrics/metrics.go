package metrics

import (
	"sync"
	"time"
)

// Collector aggregates in-process counters, gauges and latency samples for
// the delivery note service.
type Collector struct {
	mutex       sync.RWMutex
	counters    map[string]int64
	gauges      map[string]float64
	latencies   map[string][]time.Duration
	errorCounts map[string]int64
	startTime   time.Time
	maxSamples  int
}

// Counter metrics
const (
	CounterHTTPRequests         = "http_requests_total"
	CounterHTTPRequestsSuccess  = "http_requests_success_total"
	CounterHTTPRequestsError    = "http_requests_error_total"
	CounterConfirmations        = "confirmations_total"
	CounterOutstandingWaves     = "outstanding_waves_total"
	CounterDriverInfoUpdates    = "driver_info_updates_total"
	CounterSubmissionsRejected  = "submissions_rejected_total"
	CounterSubmissionConflicts  = "submission_conflicts_total"
	CounterCacheHits            = "cache_hits_total"
	CounterCacheMisses          = "cache_misses_total"
	CounterMessagesSent         = "messages_sent_total"
	CounterMessagesError        = "messages_error_total"
	CounterDocumentsIndexed     = "documents_indexed_total"
	CounterDocumentsIndexError  = "documents_index_error_total"
	CounterDBQueriesTotal       = "db_queries_total"
	CounterDBQueriesError       = "db_queries_error_total"
	CounterErrorsTotal          = "errors_total"
)

// Gauge metrics
const (
	GaugeOpenDeliveryNotes = "open_delivery_notes"
	GaugeSystemMemory      = "system_memory_bytes"
)

// Latency series
const (
	LatencySnapshot   = "snapshot"
	LatencySubmission = "submission"
	LatencyMessageBus = "message_bus"
	LatencySearch     = "search"
)

// Database query types
const (
	DBQueryTypeSelect = "select"
	DBQueryTypeInsert = "insert"
	DBQueryTypeUpdate = "update"
	DBQueryTypeDelete = "delete"
)

// Error types
const (
	ErrorTypeHTTP       = "http"
	ErrorTypeValidation = "validation"
	ErrorTypeConflict   = "conflict"
	ErrorTypeDatabase   = "database"
	ErrorTypeMessageBus = "message_bus"
	ErrorTypeSearch     = "search"
	ErrorTypeInternal   = "internal"
)

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		counters:    make(map[string]int64),
		gauges:      make(map[string]float64),
		latencies:   make(map[string][]time.Duration),
		errorCounts: make(map[string]int64),
		startTime:   time.Now(),
		maxSamples:  1000,
	}
}

// IncrementCounter increments a counter by the given value
func (c *Collector) IncrementCounter(name string, value int64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.counters[name] += value
}

// SetGauge sets a gauge to the given value
func (c *Collector) SetGauge(name string, value float64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.gauges[name] = value
}

// RecordLatency appends a latency sample to a bounded series.
func (c *Collector) RecordLatency(name string, value time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.recordLatencyLocked(name, value)
}

func (c *Collector) recordLatencyLocked(name string, value time.Duration) {
	samples, ok := c.latencies[name]
	if !ok {
		samples = make([]time.Duration, 0, c.maxSamples)
	}
	if len(samples) >= c.maxSamples {
		samples = samples[1:]
	}
	c.latencies[name] = append(samples, value)
}

// RecordHTTPRequest records metrics for one HTTP request
func (c *Collector) RecordHTTPRequest(path string, statusCode int, latency time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.counters[CounterHTTPRequests]++
	c.recordLatencyLocked("http:"+path, latency)

	if statusCode >= 200 && statusCode < 400 {
		c.counters[CounterHTTPRequestsSuccess]++
	} else {
		c.counters[CounterHTTPRequestsError]++
		c.errorCounts[ErrorTypeHTTP]++
	}
}

// RecordSubmission records one accepted quantity submission. Wave 1 counts
// as a confirmation, later waves as outstanding waves.
func (c *Collector) RecordSubmission(wave int, latency time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if wave <= 1 {
		c.counters[CounterConfirmations]++
	} else {
		c.counters[CounterOutstandingWaves]++
	}
	c.recordLatencyLocked(LatencySubmission, latency)
}

// RecordRejection records a rejected submission by error type.
func (c *Collector) RecordRejection(errorType string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.counters[CounterSubmissionsRejected]++
	if errorType == ErrorTypeConflict {
		c.counters[CounterSubmissionConflicts]++
	}
	c.errorCounts[errorType]++
}

// RecordCacheLookup records a snapshot cache hit or miss.
func (c *Collector) RecordCacheLookup(hit bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if hit {
		c.counters[CounterCacheHits]++
	} else {
		c.counters[CounterCacheMisses]++
	}
}

// RecordMessagePublish records a message bus publish attempt.
func (c *Collector) RecordMessagePublish(success bool, latency time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.counters[CounterMessagesSent]++
	if !success {
		c.counters[CounterMessagesError]++
		c.errorCounts[ErrorTypeMessageBus]++
	}
	c.recordLatencyLocked(LatencyMessageBus, latency)
}

// RecordIndexing records a search index attempt.
func (c *Collector) RecordIndexing(success bool, latency time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.counters[CounterDocumentsIndexed]++
	if !success {
		c.counters[CounterDocumentsIndexError]++
		c.errorCounts[ErrorTypeSearch]++
	}
	c.recordLatencyLocked(LatencySearch, latency)
}

// RecordDatabaseQuery records metrics for one database query
func (c *Collector) RecordDatabaseQuery(queryType string, success bool, latency time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.counters[CounterDBQueriesTotal]++
	if !success {
		c.counters[CounterDBQueriesError]++
		c.errorCounts[ErrorTypeDatabase]++
	}
	c.recordLatencyLocked("db:"+queryType, latency)
}

// RecordError records an error of the given type
func (c *Collector) RecordError(errorType string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.errorCounts[errorType]++
	c.counters[CounterErrorsTotal]++
}

// GetMetrics returns all collected metrics in a structured format
func (c *Collector) GetMetrics() map[string]interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	averages := make(map[string]float64, len(c.latencies))
	for name, samples := range c.latencies {
		if len(samples) == 0 {
			continue
		}
		var sum time.Duration
		for _, sample := range samples {
			sum += sample
		}
		averages[name] = float64(sum.Milliseconds()) / float64(len(samples))
	}

	counters := make(map[string]int64, len(c.counters))
	for name, value := range c.counters {
		counters[name] = value
	}
	gauges := make(map[string]float64, len(c.gauges))
	for name, value := range c.gauges {
		gauges[name] = value
	}
	errorCounts := make(map[string]int64, len(c.errorCounts))
	for name, value := range c.errorCounts {
		errorCounts[name] = value
	}

	return map[string]interface{}{
		"uptime_seconds":       time.Since(c.startTime).Seconds(),
		"counters":             counters,
		"gauges":               gauges,
		"average_latencies_ms": averages,
		"error_counts":         errorCounts,
	}
}

// GetHealthStatus returns a simple health status based on the error rate.
func (c *Collector) GetHealthStatus() map[string]interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	errorRate := 0.0
	totalRequests := c.counters[CounterHTTPRequests]
	if totalRequests > 0 {
		errorRate = float64(c.counters[CounterHTTPRequestsError]) / float64(totalRequests)
	}

	// 5% HTTP error rate marks the service unhealthy.
	const errorRateThreshold = 0.05
	healthy := errorRate <= errorRateThreshold

	return map[string]interface{}{
		"status": map[string]interface{}{
			"healthy":        healthy,
			"uptime_seconds": time.Since(c.startTime).Seconds(),
		},
		"metrics": map[string]interface{}{
			"total_requests":    totalRequests,
			"error_rate":        errorRate,
			"confirmations":     c.counters[CounterConfirmations],
			"outstanding_waves": c.counters[CounterOutstandingWaves],
			"rejections":        c.counters[CounterSubmissionsRejected],
		},
	}
}

// Global metrics collector instance
var globalCollector *Collector
var once sync.Once

// GetCollector returns the global metrics collector instance
func GetCollector() *Collector {
	once.Do(func() {
		globalCollector = NewCollector()
	})
	return globalCollector
}
