// Package observability exposes the Prometheus metrics of the streak service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	logPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "streak_service",
		Subsystem: "persistence",
		Name:      "last_log_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity log saved.",
	})

	persistenceFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streak_service",
		Subsystem: "persistence",
		Name:      "failures_total",
		Help:      "Activity log reads and writes that failed and were degraded to empty or dropped state.",
	}, []string{"op"})

	migratedDays = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streak_service",
		Subsystem: "persistence",
		Name:      "migrated_days_total",
		Help:      "Day records synthesised from task, workout and journal history.",
	})

	activitiesRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streak_service",
		Subsystem: "tracker",
		Name:      "activities_recorded_total",
		Help:      "Activities recorded, labeled by kind.",
	}, []string{"kind"})

	openSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "streak_service",
		Subsystem: "tracker",
		Name:      "open_sessions",
		Help:      "Users whose activity log is currently held in memory.",
	})
)

func init() {
	prometheus.MustRegister(logPersistGauge, persistenceFailures, migratedDays, activitiesRecorded, openSessions)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	logPersistGauge.Set(float64(ts.Unix()))
}

// RecordPersistenceReadFailure counts a log read that fell back to an empty log.
func RecordPersistenceReadFailure() {
	persistenceFailures.WithLabelValues("read").Inc()
}

// RecordPersistenceWriteFailure counts a log save that was dropped.
func RecordPersistenceWriteFailure() {
	persistenceFailures.WithLabelValues("write").Inc()
}

// RecordMigration counts day records created from history.
func RecordMigration(days int) {
	migratedDays.Add(float64(days))
}

// RecordActivity counts one recorded activity.
func RecordActivity(kind string) {
	activitiesRecorded.WithLabelValues(kind).Inc()
}

// SetOpenSessions reports the number of open sessions.
func SetOpenSessions(n int) {
	openSessions.Set(float64(n))
}

// PersistenceFailures exposes the failure counter for tests.
func PersistenceFailures(op string) prometheus.Counter {
	return persistenceFailures.WithLabelValues(op)
}
