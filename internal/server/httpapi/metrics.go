package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linetrack_logins_total",
		Help: "Number of successful logins.",
	})
	refreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linetrack_token_refreshes_total",
		Help: "Number of successful token refreshes.",
	})
	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linetrack_login_rate_limited_total",
		Help: "Number of login attempts rejected by the rate limiter.",
	})
)
