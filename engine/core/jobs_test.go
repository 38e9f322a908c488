package core

import (
	"errors"
	"sync/atomic"
	"testing"

	cerrors "github.com/cockroachdb/errors"
)

func TestJobSystemRunsEveryJob(t *testing.T) {
	js, err := NewJobSystem(4, 2)
	if err != nil {
		t.Fatalf("NewJobSystem() error = %v", err)
	}
	defer js.Shutdown()

	var completed, failed, finished atomic.Int32
	boom := errors.New("boom")
	for i := 0; i < 20; i++ {
		i := i
		err := js.Submit(JobTask{
			Name: "job",
			OnStart: func() error {
				if i%5 == 0 {
					return boom
				}
				return nil
			},
			OnComplete: func() { completed.Add(1) },
			OnFailure: func(err error) {
				if err == boom {
					failed.Add(1)
				}
			},
			OnCompletionCallback: func() { finished.Add(1) },
		})
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}
	js.Wait()

	if completed.Load() != 16 || failed.Load() != 4 || finished.Load() != 20 {
		t.Errorf("completed %d failed %d finished %d, want 16 4 20", completed.Load(), failed.Load(), finished.Load())
	}
}

func TestJobSystemRejects(t *testing.T) {
	if _, err := NewJobSystem(0, 1); !cerrors.Is(err, ErrInvalidArgument) {
		t.Errorf("NewJobSystem(0, 1) error = %v, want ErrInvalidArgument", err)
	}
	if _, err := NewJobSystem(1, -1); !cerrors.Is(err, ErrInvalidArgument) {
		t.Errorf("NewJobSystem(1, -1) error = %v, want ErrInvalidArgument", err)
	}

	js, err := NewJobSystem(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := js.Submit(JobTask{Name: "empty"}); !cerrors.Is(err, ErrInvalidArgument) {
		t.Errorf("Submit(no OnStart) error = %v, want ErrInvalidArgument", err)
	}
	js.Shutdown()
	if err := js.Submit(JobTask{OnStart: func() error { return nil }}); err == nil {
		t.Error("Submit() after Shutdown error = nil, want error")
	}
	if err := js.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}
