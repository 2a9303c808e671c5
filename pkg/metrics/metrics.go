package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Samples = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gtimonitor_samples_total",
		Help: "Samples read from devices.",
	}, []string{"source"})

	SampleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gtimonitor_sample_errors_total",
		Help: "Failed device reads.",
	}, []string{"source"})

	LastMean = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gtimonitor_last_mean",
		Help: "Latest window mean per tier and source.",
	}, []string{"tier", "source"})

	Sends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gtimonitor_sends_total",
		Help: "Telemetry sends per tier and result.",
	}, []string{"tier", "result"})

	Profile = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gtimonitor_profile_indicator",
		Help: "Active power profile, 9 high, 12 low, 0 unknown.",
	})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gtimonitor_profile_transitions_total",
		Help: "Profile transition attempts by target and result.",
	}, []string{"profile", "result"})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gtimonitor_job_runs_total",
		Help: "Scheduled job runs by job and result.",
	}, []string{"job", "result"})
)

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
