package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var mtxRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "api_requests_total",
		Help: "HTTP requests served, split by route and status",
	},
	[]string{"route", "status"},
)

func init() {
	prometheus.MustRegister(mtxRequests)
}

// countRequests records every served request after the handler chain ran.
func countRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		mtxRequests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
