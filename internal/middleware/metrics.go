package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fieldsync-api/internal/service"
)

const (
	deviceIDHeader = "X-Device-ID"
	unmatchedRoute = "unmatched"
	scrapePath     = "/metrics"
)

// Metrics records latency and status per route template. Requests carrying a
// device id are labelled "device"; the id itself is never a label value.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil || c.Request.URL.Path == scrapePath {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, requestClient(c), c.Writer.Status(), time.Since(start))
	}
}

func requestClient(c *gin.Context) string {
	if c.GetHeader(deviceIDHeader) != "" {
		return service.ClientDevice
	}
	return service.ClientAPI
}
