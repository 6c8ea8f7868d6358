package protocol

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricsMessagesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "invites_protocol_messages_handled_total",
	Help: "Template messages handled successfully",
}, []string{"type"})

var metricsMessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "invites_protocol_messages_dropped_total",
	Help: "Template messages dropped without a reply (unregistered, origin, unknown type, security)",
}, []string{"reason"})

var metricsMessagesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "invites_protocol_messages_failed_total",
	Help: "Template messages answered with a generic ERROR",
}, []string{"type", "error"})

// metricsType keeps label cardinality bounded: template-supplied type strings
// never become label values.
func metricsType(msg Message) string {
	if _, ok := msg.(Unknown); ok || msg == nil {
		return "unknown"
	}
	return string(msg.Type())
}
