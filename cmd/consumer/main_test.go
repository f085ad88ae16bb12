package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/iliyamo/cane-truck-registry/internal/model"
)

type countingRebuilder struct {
	calls  int
	fail   bool
	cancel context.CancelFunc
}

func (r *countingRebuilder) RebuildCounters(_ context.Context, actor *model.User) error {
	r.calls++
	if actor != nil {
		return errors.New("background rebuild must run without an actor")
	}
	if r.calls == 2 {
		r.cancel()
	}
	if r.fail {
		return errors.New("db down")
	}
	return nil
}

func TestReconcileRunsUntilCancelled(t *testing.T) {
	log, hook := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &countingRebuilder{fail: true, cancel: cancel}

	done := make(chan struct{})
	go func() {
		reconcile(ctx, r, time.Millisecond, log)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reconcile did not stop")
	}
	if r.calls != 2 {
		t.Fatalf("calls: %d", r.calls)
	}
	warns := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warns++
		}
	}
	if warns != 2 {
		t.Fatalf("warnings: %d", warns)
	}
}
