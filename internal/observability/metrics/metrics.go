package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	AuthRegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_registrations_total",
			Help: "Total number of registration attempts.",
		},
		[]string{"result"},
	)

	AuthLoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Total number of login attempts.",
		},
		[]string{"result"},
	)

	TokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Total number of signed tokens issued.",
		},
		[]string{"purpose", "result"},
	)

	AccountFlowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "account_flows_total",
			Help: "Outcomes of email verification and password reset flows.",
		},
		[]string{"flow", "result"},
	)

	EmailsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total number of outbound emails by result.",
		},
		[]string{"result"},
	)

	ExpiredTokensDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "verification_tokens_expired_deleted_total",
			Help: "Expired verification tokens removed by the cleanup job.",
		},
	)
)

// MustRegister registers every collector with reg
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		AuthRegistrationsTotal,
		AuthLoginsTotal,
		TokensIssuedTotal,
		AccountFlowsTotal,
		EmailsSentTotal,
		ExpiredTokensDeletedTotal,
	)
}

// Result maps an error to the "result" label value
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
