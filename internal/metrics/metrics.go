package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chainbot"

const (
	ResultOK    = "ok"
	ResultError = "error"
)

type Metrics struct {
	messages        *prometheus.CounterVec
	commands        *prometheus.CounterVec
	chainCalls      *prometheus.CounterVec
	chainCallTime   *prometheus.HistogramVec
	accountsCreated prometheus.Counter
}

// New creates the bot metrics and registers them with r
func New(r prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "chat messages dispatched, by outcome",
		}, []string{"result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "command handlers run, by command and outcome",
		}, []string{"command", "result"}),
		chainCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_calls_total",
			Help:      "chain client invocations, by method and outcome",
		}, []string{"method", "result"}),
		chainCallTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chain_call_duration_seconds",
			Help:      "time spent waiting on the chain client",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5},
		}, []string{"method"}),
		accountsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accounts_created_total",
			Help:      "accounts minted for first-time users",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.messages,
		m.commands,
		m.chainCalls,
		m.chainCallTime,
		m.accountsCreated,
	} {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

func (m *Metrics) ObserveMessage(err error) {
	m.messages.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) ObserveCommand(command string, err error) {
	m.commands.WithLabelValues(command, result(err)).Inc()
}

// ObserveChainCall records one invocation of the chain client binary
func (m *Metrics) ObserveChainCall(method string, elapsed time.Duration, err error) {
	m.chainCalls.WithLabelValues(method, result(err)).Inc()
	m.chainCallTime.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) AccountCreated() {
	m.accountsCreated.Inc()
}
