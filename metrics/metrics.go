package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wasvm/wasm-acceptor/types"
)

const (
	MetricsNamespace = "wasm_acceptor"
)

var (
	Debug = true

	// Registry holds every collector of this package; it is what the metrics
	// server exposes.
	Registry = opmetrics.NewRegistry()

	validStatuses = []types.GroupStatus{
		types.GroupStatusPassed,
		types.GroupStatusAnomaly,
		types.GroupStatusVMError,
		types.GroupStatusCrashed,
	}
	nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z ]+`)

	factory = promauto.With(Registry)

	errorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	groupsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "groups_total",
		Help:      "Count of executed test groups by outcome",
	}, []string{
		"status",
	})

	assertionsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "assertions_total",
		Help:      "Count of assertions reported by the engine by category",
	}, []string{
		"category",
	})

	groupDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "group_duration_seconds",
		Help:      "Wall time of a single engine invocation",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 9),
	})

	runDuration = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of the last complete sweep",
	})

	lastRunCounters = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "last_run",
		Help:      "Aggregate counters of the last complete sweep",
	}, []string{
		"category",
	})

	conversionsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "conversions_total",
		Help:      "Count of converter invocations by result",
	}, []string{
		"result",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordGroup counts one executed group and its assertions.
func RecordGroup(result *types.GroupResult) {
	if result == nil {
		return
	}
	if !slices.Contains(validStatuses, result.Status) {
		log.Error("RecordGroup - invalid status", "status", result.Status)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "groups_total",
			"group", result.Group.Name,
			"status", result.Status)
	}
	groupsTotal.WithLabelValues(string(result.Status)).Inc()
	groupDuration.Observe(result.Duration.Seconds())

	if result.Status == types.GroupStatusPassed || result.Status == types.GroupStatusAnomaly {
		c := result.Report.Counters()
		assertionsTotal.WithLabelValues("passed").Add(float64(c.Passed))
		assertionsTotal.WithLabelValues("failed").Add(float64(c.Failed))
		assertionsTotal.WithLabelValues("skipped").Add(float64(c.Skipped))
		assertionsTotal.WithLabelValues("failed_to_load").Add(float64(c.FailedToLoad))
	}
}

// RecordRun publishes the aggregate of a finished sweep.
func RecordRun(c types.OutcomeCounters, duration time.Duration) {
	runDuration.Set(duration.Seconds())
	lastRunCounters.WithLabelValues("total").Set(float64(c.Total))
	lastRunCounters.WithLabelValues("passed").Set(float64(c.Passed))
	lastRunCounters.WithLabelValues("failed").Set(float64(c.Failed))
	lastRunCounters.WithLabelValues("skipped").Set(float64(c.Skipped))
	lastRunCounters.WithLabelValues("failed_to_load").Set(float64(c.FailedToLoad))
	lastRunCounters.WithLabelValues("vm_errors").Set(float64(c.VMError))
	lastRunCounters.WithLabelValues("crashes").Set(float64(c.Crashed))
}

// RecordConversion counts one converter invocation.
func RecordConversion(ok bool) {
	result := "converted"
	if !ok {
		result = "failed"
	}
	conversionsTotal.WithLabelValues(result).Inc()
}
