package storage

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats summarises the Postgres connection pool.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

func poolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// HealthReport is the body of GET /health/storage.
type HealthReport struct {
	Status  string     `json:"status"`
	Backend Backend    `json:"backend"`
	Breaker string     `json:"breaker,omitempty"`
	Error   string     `json:"error,omitempty"`
	Pool    *PoolStats `json:"pool,omitempty"`
}

// HealthHandler reports the resolved backend. For the remote backend it runs
// the probe and includes pool statistics; pool and probe may be nil for memory.
func HealthHandler(backend Backend, pool *pgxpool.Pool, probe *Probe) echo.HandlerFunc {
	return func(c echo.Context) error {
		report := HealthReport{Status: "healthy", Backend: backend}
		if backend != Remote || probe == nil {
			return c.JSON(http.StatusOK, report)
		}

		err := probe.Check(c.Request().Context())
		report.Breaker = probe.State()
		if pool != nil {
			report.Pool = poolStats(pool)
		}
		if err != nil {
			report.Status = "unhealthy"
			report.Error = err.Error()
			return c.JSON(http.StatusServiceUnavailable, report)
		}
		return c.JSON(http.StatusOK, report)
	}
}
