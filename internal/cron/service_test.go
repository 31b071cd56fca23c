package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/nexkarthq/nexkart-backend/internal/courier"
	"github.com/nexkarthq/nexkart-backend/pkg/logger"
)

type fakeLock struct {
	held    bool
	refused bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.refused {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.held = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "worker-test"})
	failing := &testJob{name: "fail", err: errors.New("boom")}
	healthy := &testJob{name: "ok"}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: NewRegistry(failing, healthy),
		Lock:     &fakeLock{},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if failing.runs != 1 || healthy.runs != 1 {
		t.Fatalf("expected both jobs to run once, got %d and %d", failing.runs, healthy.runs)
	}
}

func TestRunCycleSkipsWhenLockHeldElsewhere(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "worker-test"})
	job := &testJob{name: "sweep"}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: NewRegistry(job),
		Lock:     &fakeLock{refused: true},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job to be skipped, ran %d times", job.runs)
	}
}

type fakeCourierService struct {
	report *courier.SyncReport
	err    error
	calls  int
}

func (f *fakeCourierService) Reconcile(context.Context, uuid.UUID, string, string) (*courier.Outcome, error) {
	return nil, errors.New("not used")
}

func (f *fakeCourierService) HandleWebhook(context.Context, courier.WebhookPayload) (*courier.WebhookResult, error) {
	return nil, errors.New("not used")
}

func (f *fakeCourierService) SyncOrder(context.Context, uuid.UUID) (*courier.Outcome, error) {
	return nil, errors.New("not used")
}

func (f *fakeCourierService) SyncAll(context.Context) (*courier.SyncReport, error) {
	f.calls++
	return f.report, f.err
}

func TestCourierSyncJobReportsSweepFailure(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "worker-test"})
	svc := &fakeCourierService{
		report: &courier.SyncReport{Total: 3, Updated: 2, Failed: 1},
		err:    errors.New("order #7: courier api unreachable"),
	}
	job, err := NewCourierSyncJob(CourierSyncJobParams{Logger: logg, Courier: svc})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected sweep failure to surface")
	}
	if svc.calls != 1 {
		t.Fatalf("expected one sweep call, got %d", svc.calls)
	}
}
