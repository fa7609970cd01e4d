package system

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingService struct {
	name     string
	log      *[]string
	startErr error
}

func (r recordingService) Name() string { return r.name }

func (r recordingService) Start(context.Context) error {
	if r.startErr != nil {
		return r.startErr
	}
	*r.log = append(*r.log, "start:"+r.name)
	return nil
}

func (r recordingService) Stop(context.Context) error {
	*r.log = append(*r.log, "stop:"+r.name)
	return nil
}

func TestManagerStartsInOrderAndStopsInReverse(t *testing.T) {
	var calls []string
	m := NewManager(nil)
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(recordingService{name: name, log: &calls}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"start:a", "start:b", "start:c", "stop:c", "stop:b", "stop:a"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	var calls []string
	m := NewManager(nil)
	_ = m.Register(recordingService{name: "a", log: &calls})
	_ = m.Register(recordingService{name: "b", log: &calls, startErr: errors.New("boom")})

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if len(calls) != 2 || calls[1] != "stop:a" {
		t.Fatalf("calls = %v, want [start:a stop:a]", calls)
	}
}

func TestManagerRejectsDuplicates(t *testing.T) {
	m := NewManager(nil)
	if err := m.Register(NoopService{ServiceName: "x"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(NoopService{ServiceName: "x"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if got := m.Services(); len(got) != 1 || got[0] != "x" {
		t.Errorf("Services() = %v", got)
	}
}
