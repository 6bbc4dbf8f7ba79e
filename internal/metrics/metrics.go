package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uplift_messages_persisted_total",
		Help: "Messages durably appended to a conversation.",
	})
	MessagesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uplift_messages_delivered_total",
		Help: "Live deliveries pushed to recipient sessions.",
	})
	SendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uplift_send_failures_total",
		Help: "Sends rejected because persistence failed.",
	})
	DroppedPushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uplift_dropped_pushes_total",
		Help: "Outbound events dropped on a full session buffer.",
	})
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "uplift_active_sessions",
		Help: "Currently registered websocket sessions.",
	})
)

// Handler returns an http.Handler for Prometheus scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
