package webbt

import (
	"context"
	"log/slog"
)

// Emitter delivers asynchronous events to the host collaborator. Emission
// is best effort: failures are logged and never surfaced to the operation
// that triggered the event.
type Emitter interface {
	Emit(event string, payload any) error
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(event string, payload any) error

func (f EmitterFunc) Emit(event string, payload any) error {
	return f(event, payload)
}

func (s *Session) emit(event string, payload any) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.Emit(event, payload); err != nil {
		slog.Warn("[BLE] event emission failed", "event", event, "error", err)
	}
}

// eventLoop is the session's single long-lived listener on the adapter's
// connection-lifecycle stream. On a disconnect it tears down the device's
// notification tasks, then emits one disconnect notice. A failed subscribe
// logs and exits without retry.
func (s *Session) eventLoop(ctx context.Context) {
	events, err := s.adapter.Events(ctx)
	if err != nil {
		slog.Error("[BLE] subscribe to adapter events failed", "error", err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind != PeripheralDisconnected {
				continue
			}
			if n := s.cancelDeviceTasks(ctx, ev.DeviceID); n > 0 {
				slog.Debug("[BLE] cancelled notification tasks on disconnect", "device", ev.DeviceID, "count", n)
			}
			s.emit(EventGattServerDisconnected, DeviceEvent{DeviceID: ev.DeviceID})
		}
	}
}
