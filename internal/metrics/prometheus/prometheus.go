package prometheus

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// Prefix is the metrics prefix used on all the recorded metrics.
	Prefix = "dacirco"
)

// Recorder records job manager metrics on a Prometheus backend.
type Recorder struct {
	reg prometheus.Registerer

	queuedJobs        prometheus.Gauge
	transcodeDuration *prometheus.HistogramVec
}

// NewRecorder returns a new Prometheus metrics recorder.
func NewRecorder(reg prometheus.Registerer) Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		reg: reg,

		queuedJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Prefix,
				Subsystem: "jobmanager",
				Name:      "queued_jobs",
				Help:      "Number of jobs waiting to be dispatched.",
			},
		),

		transcodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Prefix,
				Subsystem: "jobmanager",
				Name:      "transcode_duration_seconds",
				Help:      "Duration histogram of transcoding runs.",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"runner", "success"},
		),
	}

	r.init()

	return *r
}

func (r Recorder) init() {
	// Register our collectors.
	r.reg.MustRegister(
		r.queuedJobs,
		r.transcodeDuration,
	)
}

func (r Recorder) MeasureJobQueued(ctx context.Context)   { r.queuedJobs.Inc() }
func (r Recorder) MeasureJobDequeued(ctx context.Context) { r.queuedJobs.Dec() }

func (r Recorder) MeasureTranscodeDuration(ctx context.Context, runner string, t time.Duration, err error) {
	r.transcodeDuration.WithLabelValues(runner, strconv.FormatBool(err == nil)).Observe(t.Seconds())
}
