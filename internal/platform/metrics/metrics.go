// Package metrics exposes the service's Prometheus instrumentation.
// Counters live at package level so domain code can record events without
// threading a registry through every constructor.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AppointmentsBooked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookline_appointments_booked_total",
			Help: "Total number of appointments booked",
		},
	)

	AppointmentsCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookline_appointments_cancelled_total",
			Help: "Total number of appointments cancelled or marked no-show",
		},
	)

	BookingConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookline_booking_conflicts_total",
			Help: "Total number of bookings rejected because the window was taken",
		},
	)

	AvailabilityRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookline_availability_requests_total",
			Help: "Total number of availability queries served",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookline_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookline_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	DBConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bookline_db_connections",
			Help: "Database connection pool state",
		},
		[]string{"state"}, // acquired, idle, total
	)
)

// SetDBPool records the connection pool gauges. Callers sample the pool on
// a timer; the values are whatever the pool reported at that instant.
func SetDBPool(acquired, idle, total int64) {
	DBConnections.WithLabelValues("acquired").Set(float64(acquired))
	DBConnections.WithLabelValues("idle").Set(float64(idle))
	DBConnections.WithLabelValues("total").Set(float64(total))
}

// Middleware returns an Echo middleware that records request counts and
// latencies labeled by method and route pattern. Unmatched routes fall back
// to the raw path so 404 traffic still shows up.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			method := c.Request().Method
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the Prometheus text exposition format, for mounting at
// /metrics.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
