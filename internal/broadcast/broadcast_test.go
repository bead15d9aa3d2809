package broadcast

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gateprep/coursebot/internal/gateway"
	"github.com/gateprep/coursebot/internal/users"
)

type fakeRegistry struct {
	list []users.User
	err  error
}

func (f *fakeRegistry) Upsert(context.Context, users.User) error { return nil }

func (f *fakeRegistry) List(context.Context) ([]users.User, error) {
	return f.list, f.err
}

type fakeGateway struct {
	sent    []int64
	failFor map[int64]error
}

func (f *fakeGateway) SendText(_ context.Context, chatID int64, _ string, _ ...gateway.SendOptions) error {
	if err := f.failFor[chatID]; err != nil {
		return err
	}
	f.sent = append(f.sent, chatID)
	return nil
}

func (f *fakeGateway) SendPhoto(context.Context, int64, string, string) error { return nil }
func (f *fakeGateway) CopyMessage(context.Context, int64, int64, int) error   { return nil }
func (f *fakeGateway) EditMessage(context.Context, int64, int, string, ...gateway.SendOptions) error {
	return nil
}

func regOf(ids ...int64) *fakeRegistry {
	r := &fakeRegistry{}
	for _, id := range ids {
		r.list = append(r.list, users.User{ID: id})
	}
	return r
}

func TestSendCountsAddUp(t *testing.T) {
	gw := &fakeGateway{failFor: map[int64]error{2: fmt.Errorf("blocked"), 4: fmt.Errorf("blocked")}}
	s := New(regOf(1, 2, 3, 4, 5), gw)

	res, err := s.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Attempted != 5 || res.Sent != 3 || res.Failed != 2 {
		t.Fatalf("result = %+v, want attempted 5, sent 3, failed 2", res)
	}
	if res.Attempted != res.Sent+res.Failed {
		t.Fatalf("attempted %d != sent %d + failed %d", res.Attempted, res.Sent, res.Failed)
	}
	if len(gw.sent) != 3 {
		t.Fatalf("deliveries = %d, want 3", len(gw.sent))
	}
}

func TestSendFailureDoesNotAbortBatch(t *testing.T) {
	gw := &fakeGateway{failFor: map[int64]error{1: fmt.Errorf("blocked")}}
	s := New(regOf(1, 2, 3), gw)

	res, err := s.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Sent != 2 {
		t.Fatalf("sent = %d, want 2 (later recipients must still receive)", res.Sent)
	}
}

func TestSendEmptyRegistry(t *testing.T) {
	s := New(regOf(), &fakeGateway{})

	res, err := s.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res != (Result{}) {
		t.Fatalf("result = %+v, want all zeros", res)
	}
}

func TestSendRegistryError(t *testing.T) {
	boom := fmt.Errorf("db down")
	s := New(&fakeRegistry{err: boom}, &fakeGateway{})

	if _, err := s.Send(context.Background(), "hello"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped registry error", err)
	}
}

func TestSendStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(regOf(1, 2, 3), &fakeGateway{})
	res, err := s.Send(ctx, "hello")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.Sent != 0 {
		t.Fatalf("sent = %d after cancellation, want 0", res.Sent)
	}
}
