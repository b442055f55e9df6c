package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the vault domain.
type Metrics struct {
	VaultsInitialized prometheus.Counter
	Operations        *prometheus.CounterVec
}

// New creates and registers vault metrics on the default registerer.
func New() *Metrics {
	return &Metrics{
		VaultsInitialized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_vaults_initialized_total",
			Help: "Total number of vault records created",
		}),
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_vault_operations_total",
			Help: "Total custody operations by operation and outcome",
		}, []string{"operation", "outcome"}),
	}
}

func (m *Metrics) IncrementVaultsInitialized() {
	m.VaultsInitialized.Inc()
}

func (m *Metrics) ObserveOperation(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
}
