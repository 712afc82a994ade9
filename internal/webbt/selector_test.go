package webbt

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestFirstMatchSelectorImmediateCandidates(t *testing.T) {
	sc := &SelectionContext{Candidates: []DeviceDescriptor{{ID: "dev-1"}, {ID: "dev-2"}}}
	sel := <-FirstMatchSelector{}.Select(context.Background(), sc)
	if !sel.OK || sel.DeviceID != "dev-1" {
		t.Errorf("Select() = %+v, want first candidate dev-1", sel)
	}
}

func TestFirstMatchSelectorFromUpdates(t *testing.T) {
	updates := make(chan CandidateUpdate, 1)
	sc := &SelectionContext{Updates: updates}
	ch := FirstMatchSelector{}.Select(context.Background(), sc)

	updates <- CandidateUpdate{Devices: []DeviceDescriptor{{ID: "dev-9"}}}

	select {
	case sel := <-ch:
		if !sel.OK || sel.DeviceID != "dev-9" {
			t.Errorf("Select() = %+v, want dev-9", sel)
		}
	case <-time.After(time.Second):
		t.Fatal("selector did not resolve from update")
	}
}

func TestFirstMatchSelectorCancelledOnClosedUpdates(t *testing.T) {
	updates := make(chan CandidateUpdate)
	sc := &SelectionContext{Updates: updates}
	ch := FirstMatchSelector{}.Select(context.Background(), sc)

	close(updates)

	select {
	case sel := <-ch:
		if sel.OK {
			t.Errorf("Select() = %+v, want cancellation", sel)
		}
	case <-time.After(time.Second):
		t.Fatal("selector did not resolve after updates closed")
	}
}

// fakeSurface scripts a dialog response (or none) and records lifecycle
// calls.
type fakeSurface struct {
	mu         sync.Mutex
	presented  bool
	dismissed  bool
	presentErr error
	responses  chan DialogResponse
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{responses: make(chan DialogResponse, 1)}
}

func (s *fakeSurface) Present(_ context.Context, _ *SelectionContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presented = true
	return s.presentErr
}

func (s *fakeSurface) Responses() <-chan DialogResponse { return s.responses }

func (s *fakeSurface) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dismissed = true
}

func (s *fakeSurface) wasDismissed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dismissed
}

func TestDialogSelectorResolvesResponse(t *testing.T) {
	surface := newFakeSurface()
	surface.responses <- DialogResponse{DeviceID: "dev-3"}
	selector := &DialogSelector{Surface: surface, Timeout: time.Second}

	sel := <-selector.Select(context.Background(), &SelectionContext{})
	if !sel.OK || sel.DeviceID != "dev-3" {
		t.Errorf("Select() = %+v, want dev-3", sel)
	}
	if !surface.wasDismissed() {
		t.Error("surface must be dismissed after a response")
	}
}

func TestDialogSelectorTimeoutIsCancellation(t *testing.T) {
	surface := newFakeSurface()
	selector := &DialogSelector{Surface: surface, Timeout: 20 * time.Millisecond}

	sel := <-selector.Select(context.Background(), &SelectionContext{})
	if sel.OK {
		t.Errorf("Select() after timeout = %+v, want cancellation", sel)
	}
	if !surface.wasDismissed() {
		t.Error("surface must be dismissed on timeout")
	}
}

func TestDialogSelectorExplicitCancel(t *testing.T) {
	surface := newFakeSurface()
	surface.responses <- DialogResponse{Cancelled: true}
	selector := &DialogSelector{Surface: surface, Timeout: time.Second}

	sel := <-selector.Select(context.Background(), &SelectionContext{})
	if sel.OK {
		t.Errorf("Select() after cancel = %+v, want cancellation", sel)
	}
}

func TestDialogSelectorContextCancelled(t *testing.T) {
	surface := newFakeSurface()
	selector := &DialogSelector{Surface: surface, Timeout: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	ch := selector.Select(ctx, &SelectionContext{})
	cancel()

	select {
	case sel := <-ch:
		if sel.OK {
			t.Errorf("Select() after ctx cancel = %+v, want cancellation", sel)
		}
	case <-time.After(time.Second):
		t.Fatal("selector did not resolve after context cancellation")
	}
	if !surface.wasDismissed() {
		t.Error("surface must be dismissed on context cancellation")
	}
}

func TestDialogSelectorPresentFailure(t *testing.T) {
	surface := newFakeSurface()
	surface.presentErr = context.DeadlineExceeded
	selector := &DialogSelector{Surface: surface, Timeout: time.Second}

	sel := <-selector.Select(context.Background(), &SelectionContext{})
	if sel.OK {
		t.Errorf("Select() after present failure = %+v, want cancellation", sel)
	}
	if !surface.wasDismissed() {
		t.Error("surface must be dismissed when presenting fails")
	}
}

func TestSelectorFullScanFlags(t *testing.T) {
	if (FirstMatchSelector{}).WantsFullScan() {
		t.Error("first-match selector must stream")
	}
	if (&DialogSelector{}).WantsFullScan() {
		t.Error("dialog selector defaults to streaming")
	}
	if !(&DialogSelector{FullScan: true}).WantsFullScan() {
		t.Error("FullScan flag must select the exhaustive policy")
	}
}
