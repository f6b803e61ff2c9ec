package db

import (
	"time"

	"gorm.io/gorm"

	"example.com/supplierportal/services/deliverynote/internal/metrics"
)

// RegisterMetricsHooks registers GORM callbacks that feed query metrics
// into the collector.
func RegisterMetricsHooks(db *gorm.DB) {
	db.Callback().Create().After("gorm:create").Register("metrics:create", func(db *gorm.DB) {
		collector := metrics.GetCollector()
		collector.RecordDatabaseQuery(metrics.DBQueryTypeInsert, db.Error == nil, getDuration(db))
	})

	db.Callback().Query().After("gorm:query").Register("metrics:query", func(db *gorm.DB) {
		collector := metrics.GetCollector()
		collector.RecordDatabaseQuery(metrics.DBQueryTypeSelect, db.Error == nil, getDuration(db))
	})

	db.Callback().Update().After("gorm:update").Register("metrics:update", func(db *gorm.DB) {
		collector := metrics.GetCollector()
		collector.RecordDatabaseQuery(metrics.DBQueryTypeUpdate, db.Error == nil, getDuration(db))
	})

	db.Callback().Delete().After("gorm:delete").Register("metrics:delete", func(db *gorm.DB) {
		collector := metrics.GetCollector()
		collector.RecordDatabaseQuery(metrics.DBQueryTypeDelete, db.Error == nil, getDuration(db))
	})
}

// RegisterDurationHooks stamps the start time of every database operation
// so the metrics callbacks can compute durations.
func RegisterDurationHooks(db *gorm.DB) {
	db.Callback().Create().Before("gorm:create").Register("duration:create", logDuration)
	db.Callback().Query().Before("gorm:query").Register("duration:query", logDuration)
	db.Callback().Update().Before("gorm:update").Register("duration:update", logDuration)
	db.Callback().Delete().Before("gorm:delete").Register("duration:delete", logDuration)
}

func logDuration(db *gorm.DB) {
	db.InstanceSet("start_time", time.Now())
}

func getDuration(db *gorm.DB) time.Duration {
	if start, ok := db.InstanceGet("start_time"); ok {
		return time.Since(start.(time.Time))
	}
	return 0
}
