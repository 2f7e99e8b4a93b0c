package metrics

import (
	"strconv"

	"irrigation_monitor/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

// Numeric encoding of ValidationState for the zone gauge.
var stateValues = map[models.ValidationState]float64{
	models.StateGray:   0,
	models.StateGreen:  1,
	models.StateOrange: 2,
	models.StateRed:    3,
}

// Recorder is what services report to. Nop satisfies it for tests and disabled setups.
type Recorder interface {
	SetZoneState(zone models.ZoneID, s models.ValidationState)
	PollSourceFailed(source string)
	ObservePoll(seconds float64)
	CriticalAlert()
	Command(action, outcome string)
}

type Prom struct {
	zoneState      *prometheus.GaugeVec
	sourceFailures *prometheus.CounterVec
	pollLatency    prometheus.Histogram
	criticalAlerts prometheus.Counter
	commands       *prometheus.CounterVec
}

// NewProm builds the collectors and registers them on reg.
func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		zoneState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "zone_validation_state",
			Help: "Reconciled zone state: 0 gray, 1 green, 2 orange, 3 red.",
		}, []string{"zone"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poll_source_failures_total",
			Help: "Failed reads of an observed-state source.",
		}, []string{"source"}),
		pollLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "poll_duration_seconds",
			Help:    "Time spent fetching and merging observed state per tick.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		criticalAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "critical_alerts_total",
			Help: "Transitions that failed to converge before the timeout.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zone_commands_total",
			Help: "Manual timer commands by action and outcome.",
		}, []string{"action", "outcome"}),
	}
	reg.MustRegister(p.zoneState, p.sourceFailures, p.pollLatency, p.criticalAlerts, p.commands)
	return p
}

func (p *Prom) SetZoneState(zone models.ZoneID, s models.ValidationState) {
	if v, ok := stateValues[s]; ok {
		p.zoneState.WithLabelValues(strconv.Itoa(int(zone))).Set(v)
	}
}

func (p *Prom) PollSourceFailed(source string) {
	p.sourceFailures.WithLabelValues(source).Inc()
}

func (p *Prom) ObservePoll(seconds float64) {
	p.pollLatency.Observe(seconds)
}

func (p *Prom) CriticalAlert() {
	p.criticalAlerts.Inc()
}

func (p *Prom) Command(action, outcome string) {
	p.commands.WithLabelValues(action, outcome).Inc()
}

type Nop struct{}

func (Nop) SetZoneState(models.ZoneID, models.ValidationState) {}
func (Nop) PollSourceFailed(string)                            {}
func (Nop) ObservePoll(float64)                                {}
func (Nop) CriticalAlert()                                     {}
func (Nop) Command(string, string)                             {}
