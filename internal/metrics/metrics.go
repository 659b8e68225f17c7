package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SchedulerTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backuphub_scheduler_ticks_total",
			Help: "Total number of scheduler ticks evaluated",
		},
	)

	// Dispatch counts command deliveries by source (schedule, manual, queue)
	// and result (sent, undelivered, queued).
	Dispatch = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backuphub_dispatch_total",
			Help: "Backup job dispatch attempts",
		},
		[]string{"source", "result"},
	)

	JobsSuperseded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backuphub_jobs_superseded_total",
			Help: "Queued jobs failed because the agent stayed offline until the next firing",
		},
	)

	AgentsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backuphub_agents_connected",
			Help: "Agents currently registered in the connection registry",
		},
	)

	AgentMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backuphub_agent_messages_total",
			Help: "Inbound agent messages by action",
		},
		[]string{"action"},
	)

	RetentionDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backuphub_retention_deleted_total",
			Help: "Job records removed by the retention sweep",
		},
	)
)
