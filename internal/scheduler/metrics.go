package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	triggersScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vmbook_triggers_scheduled_total",
		Help: "Triggers inserted or replaced in the durable store.",
	})

	triggersFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vmbook_triggers_fired_total",
		Help: "Triggers handed to the worker pool, by origin.",
	}, []string{"origin"})

	triggersMisfired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vmbook_triggers_misfired_total",
		Help: "Triggers dropped for firing past the misfire grace window.",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vmbook_workflow_runs_total",
		Help: "Workflow executions by outcome.",
	}, []string{"outcome"})
)
