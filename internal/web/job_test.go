package web

import (
	"testing"
	"time"
)

func TestJobLifecycle(t *testing.T) {
	jm := NewJobManager()
	job := jm.Create()

	if job.Status != JobStatusRunning {
		t.Fatalf("status: got %s, want %s", job.Status, JobStatusRunning)
	}
	if jm.Get(job.ID) != job {
		t.Error("created job not retrievable by id")
	}
	if jm.GetActive() != job {
		t.Error("created job not reported active")
	}

	job.Update(3, 10, "Invoice #12")
	if job.Progress != 30 {
		t.Errorf("progress: got %d, want 30", job.Progress)
	}
	if job.CurrentSubject != "Invoice #12" {
		t.Errorf("current subject: got %q", job.CurrentSubject)
	}

	job.Complete(2)
	if job.Status != JobStatusCompleted {
		t.Errorf("status: got %s, want %s", job.Status, JobStatusCompleted)
	}
	if job.Progress != 100 {
		t.Errorf("progress: got %d, want 100", job.Progress)
	}
	if job.Fallback != 2 {
		t.Errorf("fallback: got %d, want 2", job.Fallback)
	}
	if jm.GetActive() != nil {
		t.Error("completed job still reported active")
	}
}

func TestJobCancel(t *testing.T) {
	jm := NewJobManager()
	job := jm.Create()

	job.Cancel()
	if !job.IsCancelled() {
		t.Error("job not marked cancelled")
	}
	select {
	case <-job.Context().Done():
	default:
		t.Error("job context not cancelled")
	}

	// Cancelling a finished job is a no-op.
	done := jm.Create()
	done.Complete(0)
	done.Cancel()
	if done.Status != JobStatusCompleted {
		t.Errorf("status changed on late cancel: %s", done.Status)
	}
}

func TestJobStopWithError(t *testing.T) {
	jm := NewJobManager()
	job := jm.Create()

	job.StopWithError("mailbox connection failed")
	if job.Status != JobStatusError {
		t.Errorf("status: got %s, want %s", job.Status, JobStatusError)
	}
	if job.Error != "mailbox connection failed" {
		t.Errorf("error: got %q", job.Error)
	}
}

func TestJobManagerCleanup(t *testing.T) {
	jm := NewJobManager()

	old := jm.Create()
	old.Complete(0)
	old.CompletedAt = time.Now().Add(-2 * time.Hour)

	active := jm.Create()

	jm.Cleanup(time.Hour)
	if jm.Get(old.ID) != nil {
		t.Error("old completed job not cleaned up")
	}
	if jm.Get(active.ID) == nil {
		t.Error("running job removed by cleanup")
	}
}
