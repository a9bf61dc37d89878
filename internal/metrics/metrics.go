// Package metrics records bridge activity.
//
// The protocol engine reports through the Recorder interface. Nop discards
// everything; Prometheus exports counters, a pending-call gauge and a call
// latency histogram.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Inbound frame kinds.
const (
	FrameReply      = "reply"
	FrameStale      = "stale_reply"
	FrameInvoke     = "invoke"
	FrameUnroutable = "unroutable"
	FrameNotify     = "notification"
	FrameMalformed  = "malformed"
)

// Outbound frame kinds.
const (
	SendMessage = "message"
	SendRequest = "request"
	SendReply   = "reply"
	SendLoop    = "loopback"
)

// Call outcomes.
const (
	OutcomeResolved  = "resolved"
	OutcomeTimeout   = "timeout"
	OutcomeStopped   = "stopped"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Recorder receives bridge observations. Implementations must be safe for
// concurrent use.
type Recorder interface {
	FrameReceived(kind string)
	FrameSent(kind string)
	CallStarted()
	CallFinished(outcome string, elapsed time.Duration)
	HandlerFailed(method string)
}

// Nop returns a Recorder that discards everything.
func Nop() Recorder { return nop{} }

type nop struct{}

func (nop) FrameReceived(string) {}
func (nop) FrameSent(string) {}
func (nop) CallStarted() {}
func (nop) CallFinished(string, time.Duration) {}
func (nop) HandlerFailed(string) {}

// Prometheus is a Recorder backed by Prometheus collectors.
type Prometheus struct {
	framesReceived *prometheus.CounterVec
	framesSent     *prometheus.CounterVec
	pendingCalls   prometheus.Gauge
	callsTotal     *prometheus.CounterVec
	callDuration   prometheus.Histogram
	handlerErrors  *prometheus.CounterVec
}

// Compile-time verification that Prometheus implements Recorder.
var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates the collectors and registers them with reg.
//
// Collectors that are already registered (for example by a second bridge on
// the same registry) are shared rather than reported as an error.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		framesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postbridge_frames_received_total",
				Help: "Inbound frames by routing outcome",
			},
			[]string{"kind"},
		),
		framesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postbridge_frames_sent_total",
				Help: "Outbound frames by kind",
			},
			[]string{"kind"},
		),
		pendingCalls: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "postbridge_pending_calls",
				Help: "Correlated requests awaiting a reply",
			},
		),
		callsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postbridge_calls_total",
				Help: "Finished correlated requests by outcome",
			},
			[]string{"outcome"},
		),
		callDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "postbridge_call_duration_seconds",
				Help:    "Time from request send to outcome",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
		),
		handlerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postbridge_handler_errors_total",
				Help: "Handler failures and panics by method",
			},
			[]string{"method"},
		),
	}

	var err error

	p.framesReceived, err = register(reg, p.framesReceived)
	if err != nil {
		return nil, err
	}

	p.framesSent, err = register(reg, p.framesSent)
	if err != nil {
		return nil, err
	}

	p.pendingCalls, err = register(reg, p.pendingCalls)
	if err != nil {
		return nil, err
	}

	p.callsTotal, err = register(reg, p.callsTotal)
	if err != nil {
		return nil, err
	}

	p.callDuration, err = register(reg, p.callDuration)
	if err != nil {
		return nil, err
	}

	p.handlerErrors, err = register(reg, p.handlerErrors)
	if err != nil {
		return nil, err
	}

	return p, nil
}

// register registers c, returning the existing collector when an identical
// one is already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}

		return c, err
	}

	return c, nil
}

// FrameReceived implements Recorder.
func (p *Prometheus) FrameReceived(kind string) {
	p.framesReceived.WithLabelValues(kind).Inc()
}

// FrameSent implements Recorder.
func (p *Prometheus) FrameSent(kind string) {
	p.framesSent.WithLabelValues(kind).Inc()
}

// CallStarted implements Recorder.
func (p *Prometheus) CallStarted() {
	p.pendingCalls.Inc()
}

// CallFinished implements Recorder.
func (p *Prometheus) CallFinished(outcome string, elapsed time.Duration) {
	p.pendingCalls.Dec()
	p.callsTotal.WithLabelValues(outcome).Inc()
	p.callDuration.Observe(elapsed.Seconds())
}

// HandlerFailed implements Recorder.
func (p *Prometheus) HandlerFailed(method string) {
	p.handlerErrors.WithLabelValues(method).Inc()
}
