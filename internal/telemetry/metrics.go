// Package telemetry holds process-wide Prometheus collectors and the
// in-process metrics snapshot described in §5/§10.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

var CredentialsIssuedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "pramana",
		Subsystem: "credentials",
		Name:      "issued_total",
		Help:      "Total number of credentials issued, by type.",
	},
	[]string{"credential_type"},
)

var CredentialsRevokedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "pramana",
		Subsystem: "credentials",
		Name:      "revoked_total",
		Help:      "Total number of credentials revoked.",
	},
)

var CredentialsVerifiedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "pramana",
		Subsystem: "credentials",
		Name:      "verified_total",
		Help:      "Total number of credential verification attempts, by outcome.",
	},
	[]string{"outcome"}, // "verified", "revoked", "invalid"
)

var StatusListAllocationsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "pramana",
		Subsystem: "status_list",
		Name:      "allocations_total",
		Help:      "Total number of status list index allocations.",
	},
)

var RequirementIntentsConfirmedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "pramana",
		Subsystem: "requirement_intents",
		Name:      "confirmed_total",
		Help:      "Total number of requirement intent confirmations, by final status.",
	},
	[]string{"status"}, // "succeeded", "failed"
)

// All returns every domain metric for registration against a
// prometheus.Registry.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		CredentialsIssuedTotal,
		CredentialsRevokedTotal,
		CredentialsVerifiedTotal,
		StatusListAllocationsTotal,
		RequirementIntentsConfirmedTotal,
	}
}
