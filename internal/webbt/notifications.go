package webbt

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
)

// notificationKey identifies one subscription. At most one task owns a key
// at any time. The characteristic UUID is stored in canonical form.
type notificationKey struct {
	deviceID           string
	characteristicUUID string
}

// notificationTask is one background subscription. cancel aborts the
// drain goroutine; done closes when it has exited.
type notificationTask struct {
	cancel context.CancelFunc
	char   Characteristic
	done   chan struct{}
}

// notificationRegistry tracks active subscription tasks. Mutation dominates
// its access pattern, so a plain mutex suffices. Removal by explicit stop
// and removal by disconnect cleanup are idempotent against each other.
type notificationRegistry struct {
	mu    sync.Mutex
	tasks map[notificationKey]*notificationTask
}

func newNotificationRegistry() *notificationRegistry {
	return &notificationRegistry{tasks: make(map[notificationKey]*notificationTask)}
}

// claim registers a new task for the key, failing if one already owns it.
// The task is inserted before any adapter call so a racing second start
// observes the conflict.
func (r *notificationRegistry) claim(key notificationKey, cancel context.CancelFunc, char Characteristic) (*notificationTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[key]; ok {
		return nil, &NotificationsActiveError{
			DeviceID:           key.deviceID,
			CharacteristicUUID: key.characteristicUUID,
		}
	}
	t := &notificationTask{cancel: cancel, char: char, done: make(chan struct{})}
	r.tasks[key] = t
	return t, nil
}

// release removes the key only if t still owns it. Double removal is a
// no-op, not an error.
func (r *notificationRegistry) release(key notificationKey, t *notificationTask) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.tasks[key]; ok && cur == t {
		delete(r.tasks, key)
		return true
	}
	return false
}

// take removes and returns the task for the key.
func (r *notificationRegistry) take(key notificationKey) (*notificationTask, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[key]
	if ok {
		delete(r.tasks, key)
	}
	return t, ok
}

// takeDevice removes every task whose key belongs to the device.
func (r *notificationRegistry) takeDevice(deviceID string) []*notificationTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notificationTask
	for key, t := range r.tasks {
		if key.deviceID == deviceID {
			out = append(out, t)
			delete(r.tasks, key)
		}
	}
	return out
}

// drain removes and returns every task. Used on session teardown.
func (r *notificationRegistry) drain() []*notificationTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*notificationTask, 0, len(r.tasks))
	for key, t := range r.tasks {
		out = append(out, t)
		delete(r.tasks, key)
	}
	return out
}

// StartNotifications resolves the characteristic, registers a subscription
// task for (deviceID, characteristicUUID), subscribes at the adapter level
// and spawns a background goroutine that filters the peripheral's
// notification stream down to the target characteristic, emitting one
// value-changed event per received value.
func (s *Session) StartNotifications(ctx context.Context, deviceID, serviceUUID, characteristicUUID string) error {
	p, svc, char, err := s.resolveCharacteristic(ctx, deviceID, serviceUUID, characteristicUUID)
	if err != nil {
		return err
	}
	key := notificationKey{deviceID: deviceID, characteristicUUID: canonicalUUID(char.UUID())}

	// The task outlives the request; it is cancelled by StopNotifications,
	// disconnect cleanup or session teardown.
	taskCtx, cancel := context.WithCancel(context.Background())
	t, err := s.notifications.claim(key, cancel, char)
	if err != nil {
		cancel()
		return err
	}

	if err := char.Subscribe(ctx); err != nil {
		cancel()
		close(t.done)
		s.notifications.release(key, t)
		return fmt.Errorf("webbt: subscribe to %s: %w", key.characteristicUUID, err)
	}
	stream, err := p.Notifications(taskCtx)
	if err != nil {
		cancel()
		close(t.done)
		s.notifications.release(key, t)
		if uerr := char.Unsubscribe(ctx); uerr != nil {
			slog.Warn("[BLE] unsubscribe after failed stream open", "device", deviceID, "error", uerr)
		}
		return fmt.Errorf("webbt: open notification stream: %w", err)
	}

	go s.runNotificationTask(taskCtx, key, t, svc.UUID(), stream)

	slog.Debug("[BLE] notifications started", "device", deviceID, "characteristic", key.characteristicUUID)
	return nil
}

// StopNotifications cancels the subscription task for the pair and
// unsubscribes at the adapter level.
func (s *Session) StopNotifications(ctx context.Context, deviceID, serviceUUID, characteristicUUID string) error {
	charUUID, err := NormalizeUUID(characteristicUUID)
	if err != nil {
		return err
	}
	key := notificationKey{deviceID: deviceID, characteristicUUID: charUUID}
	t, ok := s.notifications.take(key)
	if !ok {
		return &NotificationsNotActiveError{DeviceID: deviceID, CharacteristicUUID: charUUID}
	}
	t.cancel()
	<-t.done
	if err := t.char.Unsubscribe(ctx); err != nil {
		return fmt.Errorf("webbt: unsubscribe from %s: %w", charUUID, err)
	}
	slog.Debug("[BLE] notifications stopped", "device", deviceID, "characteristic", charUUID)
	return nil
}

// runNotificationTask drains the peripheral stream until cancelled,
// forwarding values for the target characteristic as events.
func (s *Session) runNotificationTask(ctx context.Context, key notificationKey, t *notificationTask, serviceUUID string, stream <-chan CharacteristicValue) {
	defer close(t.done)
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-stream:
			if !ok {
				return
			}
			if canonicalUUID(v.CharacteristicUUID) != key.characteristicUUID {
				continue
			}
			s.emit(EventCharacteristicValueChanged, NotificationEvent{
				DeviceID:           key.deviceID,
				ServiceUUID:        serviceUUID,
				CharacteristicUUID: key.characteristicUUID,
				Value:              base64.StdEncoding.EncodeToString(v.Value),
			})
		}
	}
}

// cancelDeviceTasks aborts every subscription task owned by the device.
// Unsubscribe failures are expected when the device just dropped off and
// are logged, not surfaced.
func (s *Session) cancelDeviceTasks(ctx context.Context, deviceID string) int {
	tasks := s.notifications.takeDevice(deviceID)
	for _, t := range tasks {
		t.cancel()
		<-t.done
		if err := t.char.Unsubscribe(ctx); err != nil {
			slog.Debug("[BLE] unsubscribe on cleanup failed", "device", deviceID, "error", err)
		}
	}
	return len(tasks)
}
