package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Wager agrupa os coletores do motor de apostas.
// Implementa engine.Observer.
type Wager struct {
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	points      *prometheus.CounterVec
	published   *prometheus.CounterVec
}

// NewWager registra os coletores em reg (prometheus.DefaultRegisterer nos mains)
func NewWager(reg prometheus.Registerer) *Wager {
	m := &Wager{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_transitions_total",
			Help: "transições commitadas por status de destino",
		}, []string{"to"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_operation_errors_total",
			Help: "operações rejeitadas ou com erro, por operação e tipo",
		}, []string{"op", "kind"}),
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_ledger_points_total",
			Help: "pontos movimentados no ledger por tipo de lançamento",
		}, []string{"entry_type"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_events_published_total",
			Help: "eventos entregues ao notifier, por tipo e resultado",
		}, []string{"type", "result"}),
	}
	reg.MustRegister(m.transitions, m.failures, m.points, m.published)
	return m
}

func (m *Wager) Transition(_, to string) { m.transitions.WithLabelValues(to).Inc() }

func (m *Wager) Failed(op, kind string) { m.failures.WithLabelValues(op, kind).Inc() }

func (m *Wager) LedgerPoints(entryType string, points int64) {
	m.points.WithLabelValues(entryType).Add(float64(points))
}

func (m *Wager) Published(eventType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.published.WithLabelValues(eventType, result).Inc()
}

// EventsWorker são os contadores do consumidor de eventos
type EventsWorker struct {
	Consumed prometheus.Counter
	Cached   prometheus.Counter
	Persist  prometheus.Counter
	DLQ      prometheus.Counter
	ErrorsBy *prometheus.CounterVec
}

func NewEventsWorker(reg prometheus.Registerer) *EventsWorker {
	m := &EventsWorker{
		Consumed: prometheus.NewCounter(prometheus.CounterOpts{Name: "wager_events_consumed_total", Help: "mensagens consumidas"}),
		Cached:   prometheus.NewCounter(prometheus.CounterOpts{Name: "wager_events_cache_sets_total", Help: "sets no cache"}),
		Persist:  prometheus.NewCounter(prometheus.CounterOpts{Name: "wager_events_db_writes_total", Help: "linhas gravadas em wager_event_log"}),
		DLQ:      prometheus.NewCounter(prometheus.CounterOpts{Name: "wager_events_dlq_total", Help: "mensagens enviadas para a DLQ"}),
		ErrorsBy: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "wager_events_errors_total", Help: "erros por estágio"}, []string{"stage"}),
	}
	reg.MustRegister(m.Consumed, m.Cached, m.Persist, m.DLQ, m.ErrorsBy)
	return m
}

// Gateway são as métricas do hub websocket
type Gateway struct {
	Connections prometheus.Gauge
	Delivered   prometheus.Counter
}

func NewGateway(reg prometheus.Registerer) *Gateway {
	m := &Gateway{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{Name: "gateway_ws_connections", Help: "clientes websocket conectados"}),
		Delivered:   prometheus.NewCounter(prometheus.CounterOpts{Name: "gateway_ws_messages_sent_total", Help: "mensagens entregues a clientes"}),
	}
	reg.MustRegister(m.Connections, m.Delivered)
	return m
}
