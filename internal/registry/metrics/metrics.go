package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the registry domain.
type Metrics struct {
	AdminRotations    prometheus.Counter
	OperatorMutations *prometheus.CounterVec
	Unauthorized      prometheus.Counter
}

// New creates and registers registry metrics on the default registerer.
func New() *Metrics {
	return &Metrics{
		AdminRotations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_registry_admin_rotations_total",
			Help: "Total number of administrator replacements",
		}),
		OperatorMutations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_registry_operator_mutations_total",
			Help: "Total operator set mutations by action",
		}, []string{"action"}),
		Unauthorized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_registry_unauthorized_total",
			Help: "Total registry mutations rejected by the authorization gate",
		}),
	}
}

func (m *Metrics) IncrementAdminRotations() {
	m.AdminRotations.Inc()
}

func (m *Metrics) IncrementOperatorMutation(action string) {
	m.OperatorMutations.WithLabelValues(action).Inc()
}

func (m *Metrics) IncrementUnauthorized() {
	m.Unauthorized.Inc()
}
