package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Queued(time.Second, 1)
	m.Dequeued(0)
	m.WorkerExited(ExitError)
	m.Transcribed(time.Second, nil)
}

func TestQueueAccounting(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Queued(2*time.Second, 1)
	m.Queued(time.Second, 2)
	m.Dequeued(1)

	if got := testutil.ToFloat64(m.UtterancesQueued); got != 2 {
		t.Errorf("expected 2 queued, got %v", got)
	}
	if got := testutil.ToFloat64(m.UtterancesRead); got != 1 {
		t.Errorf("expected 1 read, got %v", got)
	}
	if got := testutil.ToFloat64(m.QueueDepth); got != 1 {
		t.Errorf("expected depth 1, got %v", got)
	}
	if got := testutil.CollectAndCount(m.UtteranceLength); got != 1 {
		t.Errorf("expected one histogram series, got %d", got)
	}
}

func TestWorkerExitsByReason(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.WorkerExited(ExitEndOfStream)
	m.WorkerExited(ExitEndOfStream)
	m.WorkerExited(ExitCancelled)

	if got := testutil.ToFloat64(m.CaptureExits.WithLabelValues(ExitEndOfStream)); got != 2 {
		t.Errorf("expected 2 end of stream exits, got %v", got)
	}
	if got := testutil.ToFloat64(m.CaptureExits.WithLabelValues(ExitCancelled)); got != 1 {
		t.Errorf("expected 1 cancelled exit, got %v", got)
	}
}

func TestTranscribedSplitsResults(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Transcribed(100*time.Millisecond, nil)
	m.Transcribed(200*time.Millisecond, errors.New("boom"))
	m.Transcribed(300*time.Millisecond, nil)

	if got := testutil.ToFloat64(m.Transcriptions.WithLabelValues("success")); got != 2 {
		t.Errorf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.Transcriptions.WithLabelValues("failure")); got != 1 {
		t.Errorf("expected 1 failure, got %v", got)
	}
}

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	defer func() {
		if recover() == nil {
			t.Fatal("expected duplicate registration to panic")
		}
	}()
	New(reg)
}
