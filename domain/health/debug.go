package health

import (
	"context"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// hostStats reads host load and memory. Replaced in tests.
var hostStats = func(ctx context.Context) (map[string]any, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return nil, err
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"load1":               avg.Load1,
		"load5":               avg.Load5,
		"memory_used_pct":     vm.UsedPercent,
		"memory_available_mb": vm.Available / 1024 / 1024,
	}, nil
}

// Debug reports process and host statistics outside production
func (h *Handler) Debug(c echo.Context) error {
	if h.cfg.Environment == "production" {
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), checkTimeout)
	defer cancel()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	body := map[string]any{
		"environment": h.cfg.Environment,
		"go_version":  runtime.Version(),
		"goroutines":  runtime.NumGoroutine(),
		"heap_mb":     ms.HeapAlloc / 1024 / 1024,
		"num_gc":      ms.NumGC,
	}
	if host, err := hostStats(ctx); err != nil {
		body["host_error"] = err.Error()
	} else {
		body["host"] = host
	}
	return c.JSON(http.StatusOK, body)
}
