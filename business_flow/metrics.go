package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Authorization denials partitioned by gate (collection/object) and caller role
	authorizationDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_authorization_denials_total",
			Help: "Requests rejected by the collection or object gate",
		},
		[]string{"gate", "role"},
	)

	// Successful lead mutations and reads partitioned by operation
	leadOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_lead_operations_total",
			Help: "Lead operations completed",
		},
		[]string{"operation", "role"},
	)

	// Profile synchronizer runs partitioned by transition
	profileSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_profile_synchronizations_total",
			Help: "Satellite profile synchronizations by account transition",
		},
		[]string{"transition"},
	)
)

func recordDenial(gate, role string) {
	authorizationDenials.WithLabelValues(gate, role).Inc()
}

func recordLeadOperation(operation, role string) {
	leadOperations.WithLabelValues(operation, role).Inc()
}

func recordProfileSync(transition string) {
	profileSyncs.WithLabelValues(transition).Inc()
}
