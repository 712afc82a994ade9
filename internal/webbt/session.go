package webbt

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"
)

// Session is the device discovery and GATT session manager. It owns the
// peripheral cache, the notification task registry and the adapter event
// listener. All methods are safe for concurrent use.
type Session struct {
	adapter       Adapter
	selector      Selector
	emitter       Emitter
	probe         func() bool
	pollInterval  time.Duration
	cache         *peripheralCache
	notifications *notificationRegistry

	cancel       context.CancelFunc
	listenerDone chan struct{}
}

// Option configures a Session at construction.
type Option func(*Session)

// WithSelector overrides the default first-match selection arbiter.
func WithSelector(sel Selector) Option {
	return func(s *Session) { s.selector = sel }
}

// WithEmitter sets the event sink for notifications, disconnects and
// streaming candidate updates.
func WithEmitter(e Emitter) Option {
	return func(s *Session) { s.emitter = e }
}

// WithPollInterval overrides the discovery loop's polling cadence.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithAvailabilityProbe supplies a platform probe consulted by
// GetAvailability, e.g. the BlueZ presence check on Linux.
func WithAvailabilityProbe(probe func() bool) Option {
	return func(s *Session) { s.probe = probe }
}

// NewSession enables the adapter and starts the event listener. Fails with
// ErrNoAdapter when no usable radio is present.
func NewSession(adapter Adapter, opts ...Option) (*Session, error) {
	s := &Session{
		adapter:       adapter,
		selector:      FirstMatchSelector{},
		pollInterval:  defaultPollInterval,
		cache:         newPeripheralCache(),
		notifications: newNotificationRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoAdapter, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.listenerDone = make(chan struct{})
	go func() {
		defer close(s.listenerDone)
		s.eventLoop(ctx)
	}()
	return s, nil
}

// Close stops the event listener and cancels every active notification
// task.
func (s *Session) Close() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, t := range s.notifications.drain() {
		t.cancel()
		<-t.done
		_ = t.char.Unsubscribe(ctx)
	}
	<-s.listenerDone
	return nil
}

// GetAvailability reports whether a Bluetooth adapter is present. A session
// only constructs with a working adapter, so this is true unless a platform
// probe says otherwise.
func (s *Session) GetAvailability(ctx context.Context) (bool, error) {
	if s.probe != nil {
		return s.probe(), nil
	}
	return true, nil
}

// GetDevices returns descriptors for every cached device.
func (s *Session) GetDevices(ctx context.Context) ([]DeviceDescriptor, error) {
	return describeAll(s.cache.list()), nil
}

// RequestDevice runs discovery and selection: scan, match against the
// request filters, hand candidates to the selection arbiter, and persist
// the chosen device into the cache. The scan policy follows the arbiter's
// WantsFullScan flag.
func (s *Session) RequestDevice(ctx context.Context, opts RequestDeviceOptions) (DeviceDescriptor, error) {
	if err := opts.validate(); err != nil {
		return DeviceDescriptor{}, err
	}

	var (
		outcome *scanOutcome
		sel     Selection
		err     error
	)
	if s.selector.WantsFullScan() {
		outcome, err = s.discover(ctx, opts, scanExhaustive, nil, nil)
		if err != nil {
			return DeviceDescriptor{}, err
		}
		sc := &SelectionContext{Options: opts, Candidates: describeAll(outcome.matched)}
		select {
		case <-ctx.Done():
			return DeviceDescriptor{}, ctx.Err()
		case sel = <-s.selector.Select(ctx, sc):
		}
	} else {
		updates := make(chan CandidateUpdate, 8)
		sc := &SelectionContext{Options: opts, Updates: updates}

		selectCtx, cancelSelect := context.WithCancel(ctx)
		defer cancelSelect()
		selCh := s.selector.Select(selectCtx, sc)

		sink := func(devices []DeviceDescriptor, completed bool) {
			u := CandidateUpdate{Devices: devices, Completed: completed}
			// The arbiter must not block the scan loop; drop the update if
			// it is not keeping up. The emitter copy still goes out.
			select {
			case updates <- u:
			default:
			}
			s.emit(EventRequestDeviceUpdate, RequestDeviceUpdate(u))
		}

		outcome, err = s.discover(ctx, opts, scanStreaming, sink, selCh)
		close(updates)
		if err != nil {
			return DeviceDescriptor{}, err
		}
		if outcome.selection != nil {
			sel = *outcome.selection
		} else {
			// Scan finished first; the arbiter resolves on its own clock.
			select {
			case <-ctx.Done():
				return DeviceDescriptor{}, ctx.Err()
			case sel = <-selCh:
			}
		}
	}

	if !sel.OK {
		return DeviceDescriptor{}, ErrSelectionCancelled
	}
	p, ok := outcome.byID[sel.DeviceID]
	if !ok {
		return DeviceDescriptor{}, &DeviceNotFoundError{DeviceID: sel.DeviceID}
	}
	s.cache.put(p)
	return Describe(p), nil
}

// peripheral resolves a device id via the cache, falling back to the
// adapter's currently known peripherals and caching a hit.
func (s *Session) peripheral(ctx context.Context, deviceID string) (Peripheral, error) {
	if p, ok := s.cache.get(deviceID); ok {
		return p, nil
	}
	known, err := s.adapter.Peripherals(ctx)
	if err != nil {
		return nil, fmt.Errorf("webbt: enumerate peripherals: %w", err)
	}
	for _, p := range known {
		if p.ID() == deviceID {
			s.cache.put(p)
			return p, nil
		}
	}
	return nil, &DeviceNotFoundError{DeviceID: deviceID}
}

// ensureServices connects if necessary and returns the peripheral's
// discovered services, running discovery on first use.
func (s *Session) ensureServices(ctx context.Context, p Peripheral) ([]Service, error) {
	if svcs, ok := p.Services(); ok {
		return svcs, nil
	}
	if !p.IsConnected() {
		if err := p.Connect(ctx); err != nil {
			return nil, fmt.Errorf("webbt: connect to %s: %w", p.ID(), err)
		}
	}
	svcs, err := p.DiscoverServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("webbt: discover services on %s: %w", p.ID(), err)
	}
	return svcs, nil
}

// ConnectGATT connects to the device, discovers its services and returns a
// descriptor snapshot of the GATT server.
func (s *Session) ConnectGATT(ctx context.Context, deviceID string) (GattServerInfo, error) {
	p, err := s.peripheral(ctx, deviceID)
	if err != nil {
		return GattServerInfo{}, err
	}
	if !p.IsConnected() {
		if err := p.Connect(ctx); err != nil {
			return GattServerInfo{}, fmt.Errorf("webbt: connect to %s: %w", deviceID, err)
		}
	}
	svcs, err := p.DiscoverServices(ctx)
	if err != nil {
		return GattServerInfo{}, fmt.Errorf("webbt: discover services on %s: %w", deviceID, err)
	}
	return GattServerInfo{
		DeviceID:  deviceID,
		Connected: p.IsConnected(),
		Services:  describeServices(svcs),
	}, nil
}

// DisconnectGATT drops the device's live connection. Its notification tasks
// are cancelled first; the adapter's disconnect event performs the same
// cleanup idempotently.
func (s *Session) DisconnectGATT(ctx context.Context, deviceID string) error {
	p, ok := s.cache.get(deviceID)
	if !ok {
		return &DeviceNotFoundError{DeviceID: deviceID}
	}
	s.cancelDeviceTasks(ctx, deviceID)
	if err := p.Disconnect(ctx); err != nil {
		return fmt.Errorf("webbt: disconnect from %s: %w", deviceID, err)
	}
	return nil
}

// ForgetDevice evicts the device from the cache and cancels its
// notification tasks. Forgetting does not require disconnecting first.
func (s *Session) ForgetDevice(ctx context.Context, deviceID string) error {
	s.cancelDeviceTasks(ctx, deviceID)
	if !s.cache.remove(deviceID) {
		return &DeviceNotFoundError{DeviceID: deviceID}
	}
	return nil
}

// GetPrimaryServices lists the device's primary services, optionally
// restricted to one service UUID.
func (s *Session) GetPrimaryServices(ctx context.Context, deviceID, serviceUUID string) ([]BluetoothService, error) {
	var wanted string
	if serviceUUID != "" {
		n, err := NormalizeUUID(serviceUUID)
		if err != nil {
			return nil, err
		}
		wanted = n
	}
	p, err := s.peripheral(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	svcs, err := s.ensureServices(ctx, p)
	if err != nil {
		return nil, err
	}
	var out []BluetoothService
	for _, svc := range svcs {
		if !svc.IsPrimary() {
			continue
		}
		if wanted != "" && canonicalUUID(svc.UUID()) != wanted {
			continue
		}
		out = append(out, describeService(svc))
	}
	if wanted != "" && len(out) == 0 {
		return nil, &ServiceNotFoundError{DeviceID: deviceID, ServiceUUID: wanted}
	}
	return out, nil
}

// GetCharacteristics lists a service's characteristics, optionally
// restricted to one characteristic UUID.
func (s *Session) GetCharacteristics(ctx context.Context, deviceID, serviceUUID, characteristicUUID string) ([]BluetoothCharacteristic, error) {
	svc, err := s.resolveService(ctx, deviceID, serviceUUID)
	if err != nil {
		return nil, err
	}
	var wanted string
	if characteristicUUID != "" {
		n, err := NormalizeUUID(characteristicUUID)
		if err != nil {
			return nil, err
		}
		wanted = n
	}
	var out []BluetoothCharacteristic
	for _, c := range svc.Characteristics() {
		if wanted != "" && canonicalUUID(c.UUID()) != wanted {
			continue
		}
		out = append(out, describeCharacteristic(c))
	}
	if wanted != "" && len(out) == 0 {
		return nil, &CharacteristicNotFoundError{DeviceID: deviceID, CharacteristicUUID: wanted}
	}
	return out, nil
}

// ReadCharacteristicValue reads the characteristic and returns the value
// base64 encoded.
func (s *Session) ReadCharacteristicValue(ctx context.Context, deviceID, serviceUUID, characteristicUUID string) (string, error) {
	_, _, char, err := s.resolveCharacteristic(ctx, deviceID, serviceUUID, characteristicUUID)
	if err != nil {
		return "", err
	}
	data, err := char.Read(ctx)
	if err != nil {
		return "", fmt.Errorf("webbt: read characteristic %s: %w", characteristicUUID, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// WriteCharacteristicValue decodes the base64 value and writes it to the
// characteristic, with or without response.
func (s *Session) WriteCharacteristicValue(ctx context.Context, deviceID, serviceUUID, characteristicUUID, value string, withResponse bool) error {
	_, _, char, err := s.resolveCharacteristic(ctx, deviceID, serviceUUID, characteristicUUID)
	if err != nil {
		return err
	}
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return &InvalidRequestError{Reason: "value is not valid base64: " + err.Error()}
	}
	if err := char.Write(ctx, data, withResponse); err != nil {
		return fmt.Errorf("webbt: write characteristic %s: %w", characteristicUUID, err)
	}
	return nil
}

// resolveService normalizes the service UUID and looks it up on the
// device, triggering discovery if it has not run yet.
func (s *Session) resolveService(ctx context.Context, deviceID, serviceUUID string) (Service, error) {
	svcUUID, err := NormalizeUUID(serviceUUID)
	if err != nil {
		return nil, err
	}
	p, err := s.peripheral(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	svcs, err := s.ensureServices(ctx, p)
	if err != nil {
		return nil, err
	}
	for _, svc := range svcs {
		if canonicalUUID(svc.UUID()) == svcUUID {
			return svc, nil
		}
	}
	return nil, &ServiceNotFoundError{DeviceID: deviceID, ServiceUUID: svcUUID}
}

// resolveCharacteristic resolves a (device, service, characteristic)
// triple to live handles, normalizing both UUIDs and reporting the
// offending id on a lookup miss.
func (s *Session) resolveCharacteristic(ctx context.Context, deviceID, serviceUUID, characteristicUUID string) (Peripheral, Service, Characteristic, error) {
	charUUID, err := NormalizeUUID(characteristicUUID)
	if err != nil {
		return nil, nil, nil, err
	}
	p, err := s.peripheral(ctx, deviceID)
	if err != nil {
		return nil, nil, nil, err
	}
	svc, err := s.resolveService(ctx, deviceID, serviceUUID)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, c := range svc.Characteristics() {
		if canonicalUUID(c.UUID()) == charUUID {
			return p, svc, c, nil
		}
	}
	return nil, nil, nil, &CharacteristicNotFoundError{DeviceID: deviceID, CharacteristicUUID: charUUID}
}
