package broker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowgate",
		Name:      "callbacks_total",
		Help:      "Authentication callbacks processed, by outcome.",
	}, []string{"outcome"})

	sessionDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowgate",
		Name:      "session_decisions_total",
		Help:      "Session freshness decisions, by decision (reuse or login).",
	}, []string{"decision"})

	platformLoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowgate",
		Name:      "platform_logins_total",
		Help:      "Server-side platform login attempts, by result.",
	}, []string{"result"})

	logoutEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowgate",
		Name:      "logout_events_total",
		Help:      "Logout webhook events processed, by outcome.",
	}, []string{"outcome"})
)
