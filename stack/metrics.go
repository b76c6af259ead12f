package stack

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Validation failures drop packets silently; these counters are the only
// observable trace of them.
var (
	metricReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ustack_packets_received_total", Help: "Packets delivered to a protocol handler.",
	}, []string{"protocol"})
	metricSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ustack_packets_sent_total", Help: "Packets handed to a device transmit function.",
	}, []string{"protocol"})
	metricDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ustack_dropped_total", Help: "Packets dropped, by layer and reason.",
	}, []string{"layer", "reason"})
	metricARPRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ustack_arp_requests_total", Help: "ARP requests emitted.",
	})
	metricARPReplies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ustack_arp_replies_total", Help: "ARP replies emitted.",
	})
	metricARPEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ustack_arp_evictions_total", Help: "ARP cache entries reclaimed by the aging timer.",
	})
)

func countDrop(layer, reason string) {
	metricDropped.WithLabelValues(layer, reason).Inc()
}
