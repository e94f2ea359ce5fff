package perf

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/odyssey-erp/odyssey-admin/internal/audit"
	"github.com/odyssey-erp/odyssey-admin/internal/audit/audittest"
	jobmetrics "github.com/odyssey-erp/odyssey-admin/internal/jobs"
	"github.com/odyssey-erp/odyssey-admin/jobs"
)

func TestAuditRecordJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	store := audittest.NewStore()
	job := jobs.NewAuditRecordJob(audit.NewRecorder(store, nil), nil, metrics)

	entry := audit.NewEntry{
		TenantID:   "T1",
		ActorID:    "u-1",
		ActorName:  "Ana",
		Action:     audit.ActionApprove,
		EntityType: audit.EntityPurchase,
		EntityID:   "PO-42",
		Details:    audit.Details{"amount": 150.0, "currency": "USD"},
	}
	for i := 0; i < 200; i++ {
		task, err := jobs.NewAuditRecordTask(entry)
		if err != nil {
			t.Fatalf("build task: %v", err)
		}
		if err := job.Handle(context.Background(), task); err != nil {
			t.Fatalf("handle task %d: %v", i, err)
		}
	}

	// Malformed payloads are rejected without retry.
	for i := 0; i < 5; i++ {
		if err := job.Handle(context.Background(), asynq.NewTask(jobs.TaskAuditRecord, []byte("{"))); err == nil {
			t.Fatal("expected malformed payload to fail")
		}
	}

	if got := len(store.All()); got != 200 {
		t.Fatalf("stored entries = %d, want 200", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "odyssey_jobs_total", map[string]string{"job": jobs.TaskAuditRecord, "status": "success"})
	failure := metricValue(t, families, "odyssey_jobs_total", map[string]string{"job": jobs.TaskAuditRecord, "status": "failure"})
	if success != 200 || failure != 5 {
		t.Fatalf("unexpected job counts success=%f failure=%f", success, failure)
	}

	mean := histogramMean(t, families, "odyssey_job_duration_seconds", map[string]string{"job": jobs.TaskAuditRecord})
	if mean > 0.05 {
		t.Fatalf("audit record duration above budget: %f", mean)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
