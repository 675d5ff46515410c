package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// StoreStatsCollector reports the size of the on-disk user population.
type StoreStatsCollector struct {
	getStats func() map[string]int64

	users       *prometheus.Desc
	cachedUsers *prometheus.Desc
}

// NewStoreStatsCollector creates a collector over a stats snapshot function
func NewStoreStatsCollector(getStats func() map[string]int64) *StoreStatsCollector {
	return &StoreStatsCollector{
		getStats: getStats,
		users: prometheus.NewDesc(
			"flatnas_users",
			"Number of user records on disk",
			nil, nil,
		),
		cachedUsers: prometheus.NewDesc(
			"flatnas_users_cached",
			"Number of user records held in memory",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *StoreStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.users
	ch <- c.cachedUsers
}

// Collect implements prometheus.Collector
func (c *StoreStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.getStats()

	ch <- prometheus.MustNewConstMetric(
		c.users,
		prometheus.GaugeValue,
		float64(stats["users"]),
	)
	ch <- prometheus.MustNewConstMetric(
		c.cachedUsers,
		prometheus.GaugeValue,
		float64(stats["cached"]),
	)
}

// RedisStatsCollector collects Redis statistics
type RedisStatsCollector struct {
	client *redis.Client

	poolHits       *prometheus.Desc
	poolMisses     *prometheus.Desc
	poolTimeouts   *prometheus.Desc
	poolTotalConns *prometheus.Desc
	poolIdleConns  *prometheus.Desc
}

// NewRedisStatsCollector creates a new Redis stats collector
func NewRedisStatsCollector(client *redis.Client) *RedisStatsCollector {
	return &RedisStatsCollector{
		client: client,
		poolHits: prometheus.NewDesc(
			"redis_pool_hits_total",
			"Number of times free connection was found in the pool",
			nil, nil,
		),
		poolMisses: prometheus.NewDesc(
			"redis_pool_misses_total",
			"Number of times free connection was NOT found in the pool",
			nil, nil,
		),
		poolTimeouts: prometheus.NewDesc(
			"redis_pool_timeouts_total",
			"Number of times a wait timeout occurred",
			nil, nil,
		),
		poolTotalConns: prometheus.NewDesc(
			"redis_pool_total_connections",
			"Number of total connections in the pool",
			nil, nil,
		),
		poolIdleConns: prometheus.NewDesc(
			"redis_pool_idle_connections",
			"Number of idle connections in the pool",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *RedisStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.poolHits
	ch <- c.poolMisses
	ch <- c.poolTimeouts
	ch <- c.poolTotalConns
	ch <- c.poolIdleConns
}

// Collect implements prometheus.Collector
func (c *RedisStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.client.PoolStats()

	ch <- prometheus.MustNewConstMetric(c.poolHits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(c.poolMisses, prometheus.CounterValue, float64(stats.Misses))
	ch <- prometheus.MustNewConstMetric(c.poolTimeouts, prometheus.CounterValue, float64(stats.Timeouts))
	ch <- prometheus.MustNewConstMetric(c.poolTotalConns, prometheus.GaugeValue, float64(stats.TotalConns))
	ch <- prometheus.MustNewConstMetric(c.poolIdleConns, prometheus.GaugeValue, float64(stats.IdleConns))
}

// RegisterCollectors registers all custom collectors
func RegisterCollectors(redisClient *redis.Client, storeStats func() map[string]int64) {
	if redisClient != nil {
		prometheus.MustRegister(NewRedisStatsCollector(redisClient))
	}

	if storeStats != nil {
		prometheus.MustRegister(NewStoreStatsCollector(storeStats))
	}
}
