package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStatsCollector exports connection pool statistics on every scrape.
type PoolStatsCollector struct {
	stats func() *pgxpool.Stat

	acquiredConns    *prometheus.Desc
	idleConns        *prometheus.Desc
	totalConns       *prometheus.Desc
	maxConns         *prometheus.Desc
	acquireCount     *prometheus.Desc
	acquireDuration  *prometheus.Desc
	emptyAcquires    *prometheus.Desc
	canceledAcquires *prometheus.Desc
}

// NewPoolStatsCollector reads the pool through stats, normally DB.Stats.
func NewPoolStatsCollector(stats func() *pgxpool.Stat) *PoolStatsCollector {
	return &PoolStatsCollector{
		stats: stats,
		acquiredConns: prometheus.NewDesc(
			"carelink_db_pool_acquired_connections",
			"Connections currently checked out of the pool",
			nil, nil,
		),
		idleConns: prometheus.NewDesc(
			"carelink_db_pool_idle_connections",
			"Idle connections in the pool",
			nil, nil,
		),
		totalConns: prometheus.NewDesc(
			"carelink_db_pool_total_connections",
			"Open connections in the pool",
			nil, nil,
		),
		maxConns: prometheus.NewDesc(
			"carelink_db_pool_max_connections",
			"Maximum size of the pool",
			nil, nil,
		),
		acquireCount: prometheus.NewDesc(
			"carelink_db_pool_acquire_count_total",
			"Successful connection acquisitions",
			nil, nil,
		),
		acquireDuration: prometheus.NewDesc(
			"carelink_db_pool_acquire_duration_seconds_total",
			"Time spent waiting for a connection",
			nil, nil,
		),
		emptyAcquires: prometheus.NewDesc(
			"carelink_db_pool_empty_acquire_count_total",
			"Acquisitions that had to wait because the pool was empty",
			nil, nil,
		),
		canceledAcquires: prometheus.NewDesc(
			"carelink_db_pool_canceled_acquire_count_total",
			"Acquisitions canceled by their context",
			nil, nil,
		),
	}
}

func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquiredConns
	ch <- c.idleConns
	ch <- c.totalConns
	ch <- c.maxConns
	ch <- c.acquireCount
	ch <- c.acquireDuration
	ch <- c.emptyAcquires
	ch <- c.canceledAcquires
}

func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.stats()

	ch <- prometheus.MustNewConstMetric(c.acquiredConns, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.totalConns, prometheus.GaugeValue, float64(stat.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(stat.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.acquireCount, prometheus.CounterValue, float64(stat.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.acquireDuration, prometheus.CounterValue, stat.AcquireDuration().Seconds())
	ch <- prometheus.MustNewConstMetric(c.emptyAcquires, prometheus.CounterValue, float64(stat.EmptyAcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.canceledAcquires, prometheus.CounterValue, float64(stat.CanceledAcquireCount()))
}
