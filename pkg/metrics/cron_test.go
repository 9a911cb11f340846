package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsRecordsRunsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	metrics.now = func() time.Time { return time.Unix(1_790_000_000, 0) }

	job := "unrecorded-payments"
	metrics.ObserveRun(job, 250*time.Millisecond, nil)
	metrics.ObserveRun(job, 100*time.Millisecond, errors.New("db down"))
	metrics.ObserveRun(job, 50*time.Millisecond, nil)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got := mustValue(t, mfs, "cron_job_runs_total", map[string]string{"job": job, "result": "success"}); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := mustValue(t, mfs, "cron_job_runs_total", map[string]string{"job": job, "result": "failure"}); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := mustValue(t, mfs, "cron_job_last_success_timestamp_seconds", map[string]string{"job": job}); got != 1_790_000_000 {
		t.Fatalf("unexpected last success %v", got)
	}
	if got := mustValue(t, mfs, "cron_job_duration_seconds", map[string]string{"job": job}); got != 3 {
		t.Fatalf("expected 3 duration samples, got %v", got)
	}
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var metrics *CronJobMetrics
	metrics.ObserveRun("job", time.Second, nil)
	NewCronJobMetrics(nil).ObserveRun("job", time.Second, errors.New("boom"))
}

// mustValue returns a counter or gauge value, or a histogram's sample count.
func mustValue(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	v, err := metricValue(mfs, name, labels)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func metricValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if !hasLabels(metric.GetLabel(), labels) {
				continue
			}
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				return metric.GetCounter().GetValue(), nil
			case dto.MetricType_GAUGE:
				return metric.GetGauge().GetValue(), nil
			case dto.MetricType_HISTOGRAM:
				return float64(metric.GetHistogram().GetSampleCount()), nil
			}
		}
		return 0, fmt.Errorf("metric %q has no series %v", name, labels)
	}
	return 0, fmt.Errorf("metric %q not found", name)
}

func hasLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, p := range pairs {
		if v, ok := want[p.GetName()]; ok && v == p.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
