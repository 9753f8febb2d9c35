package gossip

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gossipmesh/engine/pkg/collab"
)

const metricsNamespace = "gossipmesh"

// metrics holds the Prometheus collectors the engine updates as it
// runs. A nil *metrics is valid everywhere it is consulted, and then
// skips instrumentation. An engine built without a registerer still gets
// a non-nil *metrics whose collectors are updated but never registered.
type metrics struct {
	meshSize     *prometheus.GaugeVec
	fanoutSize   *prometheus.GaugeVec
	controlSent  *prometheus.CounterVec
	controlRecv  *prometheus.CounterVec
	messagesPub  prometheus.Counter
	messagesFwd  prometheus.Counter
	misbehaviors prometheus.Counter
}

// newMetrics builds and registers every collector against reg. Passing
// a nil reg skips registration; the collectors are still built and
// updated, they just aren't observed by anything.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		meshSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "mesh_peers",
			Help:      "Current number of peers in the mesh for a topic.",
		}, []string{"topic"}),
		fanoutSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "fanout_peers",
			Help:      "Current number of peers in the fanout set for a topic.",
		}, []string{"topic"}),
		controlSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "control_sent_total",
			Help:      "Control messages queued for send, by kind.",
		}, []string{"kind"}),
		controlRecv: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "control_received_total",
			Help:      "Control messages received, by kind.",
		}, []string{"kind"}),
		messagesPub: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_published_total",
			Help:      "Locally originated messages routed to the mesh or fanout.",
		}),
		messagesFwd: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_forwarded_total",
			Help:      "Messages relayed on behalf of another peer.",
		}),
		misbehaviors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "router_misbehaviors_total",
			Help:      "Protocol-level misbehaviours reported to the scorer.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.meshSize, m.fanoutSize, m.controlSent, m.controlRecv,
			m.messagesPub, m.messagesFwd, m.misbehaviors)
	}
	return m
}

func (m *metrics) setMeshSize(topic collab.Topic, n int) {
	if m == nil {
		return
	}
	m.meshSize.WithLabelValues(string(topic)).Set(float64(n))
}

func (m *metrics) setFanoutSize(topic collab.Topic, n int) {
	if m == nil {
		return
	}
	m.fanoutSize.WithLabelValues(string(topic)).Set(float64(n))
}

func (m *metrics) incControlSent(kind string) {
	if m == nil {
		return
	}
	m.controlSent.WithLabelValues(kind).Inc()
}

func (m *metrics) incControlRecv(kind string) {
	if m == nil {
		return
	}
	m.controlRecv.WithLabelValues(kind).Inc()
}

func (m *metrics) incPublished() {
	if m == nil {
		return
	}
	m.messagesPub.Inc()
}

func (m *metrics) incForwarded() {
	if m == nil {
		return
	}
	m.messagesFwd.Inc()
}

func (m *metrics) incMisbehavior() {
	if m == nil {
		return
	}
	m.misbehaviors.Inc()
}
