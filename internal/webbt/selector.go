package webbt

import (
	"context"
	"log/slog"
	"time"
)

// DefaultDialogTimeout bounds how long an interactive selector waits for a
// human response. Independent of the scan timeout.
const DefaultDialogTimeout = 30 * time.Second

// Selection is the arbiter's verdict. OK=false means the selection was
// cancelled, either explicitly or by the arbiter's own timeout.
type Selection struct {
	DeviceID string
	OK       bool
}

// CandidateUpdate carries the evolving candidate set during a streaming
// scan. The final update of a request has Completed=true.
type CandidateUpdate struct {
	Devices   []DeviceDescriptor
	Completed bool
}

// SelectionContext is the immutable snapshot handed to the arbiter for one
// RequestDevice call. Candidates holds the devices matched so far (the full
// set in exhaustive mode). Updates is non-nil only in streaming mode and is
// closed when scanning ends.
type SelectionContext struct {
	Options    RequestDeviceOptions
	Candidates []DeviceDescriptor
	Updates    <-chan CandidateUpdate
}

// Selector arbitrates device selection. Select is called exactly once per
// RequestDevice invocation and must deliver exactly one Selection on the
// returned channel; it must not block the scan loop, which polls the
// channel opportunistically. WantsFullScan is static configuration: true
// runs the scan to its deadline before Select sees candidates, false
// streams candidates to the arbiter as they appear.
type Selector interface {
	WantsFullScan() bool
	Select(ctx context.Context, sc *SelectionContext) <-chan Selection
}

// FirstMatchSelector resolves immediately to the first candidate, with no
// user interaction.
type FirstMatchSelector struct{}

func (FirstMatchSelector) WantsFullScan() bool { return false }

func (FirstMatchSelector) Select(ctx context.Context, sc *SelectionContext) <-chan Selection {
	ch := make(chan Selection, 1)
	go func() {
		if len(sc.Candidates) > 0 {
			ch <- Selection{DeviceID: sc.Candidates[0].ID, OK: true}
			return
		}
		if sc.Updates == nil {
			ch <- Selection{}
			return
		}
		for {
			select {
			case <-ctx.Done():
				ch <- Selection{}
				return
			case u, ok := <-sc.Updates:
				if !ok {
					ch <- Selection{}
					return
				}
				if len(u.Devices) > 0 {
					ch <- Selection{DeviceID: u.Devices[0].ID, OK: true}
					return
				}
			}
		}
	}()
	return ch
}

// DialogResponse is the host UI's answer to a selection dialog.
type DialogResponse struct {
	DeviceID  string
	Cancelled bool
}

// DialogSurface is the out-of-process UI a DialogSelector presents to.
// Present shows the dialog with the initial candidate set (live updates
// flow through SelectionContext.Updates and the emitter); Responses carries
// the user's answer; Dismiss releases the surface and is called on every
// exit path.
type DialogSurface interface {
	Present(ctx context.Context, sc *SelectionContext) error
	Responses() <-chan DialogResponse
	Dismiss()
}

// DialogSelector defers selection to an interactive surface. A timed-out or
// failed dialog resolves to a cancellation, never an error.
type DialogSelector struct {
	Surface DialogSurface
	// Timeout bounds the wait for a response; DefaultDialogTimeout if zero.
	Timeout time.Duration
	// FullScan selects the exhaustive scan policy so the dialog opens with
	// the complete candidate set instead of streaming.
	FullScan bool
}

func (d *DialogSelector) WantsFullScan() bool { return d.FullScan }

func (d *DialogSelector) Select(ctx context.Context, sc *SelectionContext) <-chan Selection {
	ch := make(chan Selection, 1)
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDialogTimeout
	}
	go func() {
		defer d.Surface.Dismiss()

		if err := d.Surface.Present(ctx, sc); err != nil {
			slog.Warn("[BLE] selection dialog failed to open", "error", err)
			ch <- Selection{}
			return
		}

		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			ch <- Selection{}
		case <-timer.C:
			slog.Info("[BLE] selection dialog timed out", "timeout", timeout)
			ch <- Selection{}
		case resp, ok := <-d.Surface.Responses():
			if !ok || resp.Cancelled {
				ch <- Selection{}
				return
			}
			ch <- Selection{DeviceID: resp.DeviceID, OK: true}
		}
	}()
	return ch
}
