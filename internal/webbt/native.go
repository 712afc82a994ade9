package webbt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"
)

// NativeAdapter implements Adapter over tinygo.org/x/bluetooth. Device ids
// are the adapter's address strings: MAC addresses on Linux/Windows,
// CoreBluetooth UUIDs on macOS.
type NativeAdapter struct {
	adapter *bluetooth.Adapter

	mu       sync.Mutex
	scanning bool
	found    map[string]*nativePeripheral
	events   chan AdapterEvent
}

// NewNativeAdapter wraps the platform's default Bluetooth adapter.
func NewNativeAdapter() *NativeAdapter {
	return &NativeAdapter{
		adapter: bluetooth.DefaultAdapter,
		found:   make(map[string]*nativePeripheral),
		events:  make(chan AdapterEvent, 16),
	}
}

func (a *NativeAdapter) Enable() error {
	if err := a.adapter.Enable(); err != nil {
		return err
	}

	// The adapter-level handler is the only cross-platform signal for
	// connection lifecycle changes; fan it out to the event stream and
	// keep per-peripheral connection flags current.
	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		id := device.Address.String()
		a.mu.Lock()
		p, ok := a.found[id]
		a.mu.Unlock()
		if ok {
			p.setConnected(connected)
		}
		kind := PeripheralConnected
		if !connected {
			kind = PeripheralDisconnected
		}
		select {
		case a.events <- AdapterEvent{Kind: kind, DeviceID: id}:
		default:
			slog.Warn("[BLE] adapter event dropped, stream full", "device", id)
		}
	})
	return nil
}

// StartScan launches the radio scan in the background, accumulating every
// sighting into the peripheral set returned by Peripherals. tinygo's
// advertisement payload cannot be enumerated, so the advertised-service
// list of each sighting is probed against the caller's UUIDs of interest
// plus any service-data UUIDs present.
func (a *NativeAdapter) StartScan(serviceUUIDs []string) error {
	interest := make([]bluetooth.UUID, 0, len(serviceUUIDs))
	for _, s := range serviceUUIDs {
		u, err := bluetooth.ParseUUID(s)
		if err != nil {
			return fmt.Errorf("webbt: parse service UUID %q: %w", s, err)
		}
		interest = append(interest, u)
	}

	a.mu.Lock()
	if a.scanning {
		a.mu.Unlock()
		return nil
	}
	a.scanning = true
	a.mu.Unlock()

	go func() {
		// Scan blocks until StopScan; sightings land in the callback.
		err := a.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			a.record(result, interest)
		})
		if err != nil {
			slog.Warn("[BLE] scan ended with error", "error", err)
		}
		a.mu.Lock()
		a.scanning = false
		a.mu.Unlock()
	}()
	return nil
}

func (a *NativeAdapter) record(result bluetooth.ScanResult, interest []bluetooth.UUID) {
	id := result.Address.String()

	var advertised []string
	for _, u := range interest {
		if result.HasServiceUUID(u) {
			advertised = append(advertised, u.String())
		}
	}
	for _, sd := range result.ServiceData() {
		advertised = appendUnique(advertised, sd.UUID.String())
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.found[id]
	if !ok {
		p = &nativePeripheral{
			adapter: a,
			id:      id,
			addr:    result.Address,
		}
		a.found[id] = p
	}
	p.updateAdvertisement(result.LocalName(), advertised)
}

func (a *NativeAdapter) StopScan() error {
	a.mu.Lock()
	scanning := a.scanning
	a.mu.Unlock()
	if !scanning {
		return nil
	}
	return a.adapter.StopScan()
}

func (a *NativeAdapter) Peripherals(ctx context.Context) ([]Peripheral, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Peripheral, 0, len(a.found))
	for _, p := range a.found {
		out = append(out, p)
	}
	return out, nil
}

func (a *NativeAdapter) Events(ctx context.Context) (<-chan AdapterEvent, error) {
	return a.events, nil
}

// Compile-time check that NativeAdapter implements Adapter.
var _ Adapter = (*NativeAdapter)(nil)

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

type nativePeripheral struct {
	adapter *NativeAdapter
	id      string
	addr    bluetooth.Address

	mu         sync.Mutex
	name       string
	advertised []string
	device     *bluetooth.Device
	connected  bool
	services   []Service
	discovered bool
	notifyCh   chan CharacteristicValue
}

func (p *nativePeripheral) ID() string { return p.id }

func (p *nativePeripheral) LocalName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

func (p *nativePeripheral) AdvertisedServices() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.advertised))
	copy(out, p.advertised)
	return out
}

func (p *nativePeripheral) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *nativePeripheral) setConnected(connected bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = connected
}

func (p *nativePeripheral) updateAdvertisement(name string, advertised []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if name != "" {
		p.name = name
	}
	for _, u := range advertised {
		p.advertised = appendUnique(p.advertised, u)
	}
}

// Connect wraps tinygo's blocking Connect so the caller's ctx is honored.
// The underlying attempt cannot be aborted from here; on ctx expiry it is
// left to time out on its own.
func (p *nativePeripheral) Connect(ctx context.Context) error {
	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := p.adapter.adapter.Connect(p.addr, bluetooth.ConnectionParams{})
		ch <- connectResult{device, err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("webbt: connect to %s: %w", p.id, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("webbt: connect to %s: %w", p.id, r.err)
		}
		p.mu.Lock()
		p.device = &r.device
		p.connected = true
		p.mu.Unlock()
		return nil
	}
}

func (p *nativePeripheral) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	device := p.device
	p.mu.Unlock()
	if device == nil {
		return nil
	}
	if err := device.Disconnect(); err != nil {
		return err
	}
	p.setConnected(false)
	return nil
}

func (p *nativePeripheral) DiscoverServices(ctx context.Context) ([]Service, error) {
	p.mu.Lock()
	if p.discovered {
		svcs := make([]Service, len(p.services))
		copy(svcs, p.services)
		p.mu.Unlock()
		return svcs, nil
	}
	device := p.device
	p.mu.Unlock()

	if device == nil {
		return nil, fmt.Errorf("webbt: discover services on %s: not connected", p.id)
	}

	rawServices, err := device.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("webbt: discover services: %w", err)
	}

	services := make([]Service, 0, len(rawServices))
	for i := range rawServices {
		svc := rawServices[i]
		rawChars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			return nil, fmt.Errorf("webbt: discover characteristics of %s: %w", svc.UUID().String(), err)
		}
		chars := make([]Characteristic, 0, len(rawChars))
		for j := range rawChars {
			chars = append(chars, &nativeCharacteristic{
				peripheral: p,
				char:       rawChars[j],
				uuid:       rawChars[j].UUID().String(),
			})
		}
		services = append(services, &nativeService{
			uuid:  svc.UUID().String(),
			chars: chars,
		})
	}

	p.mu.Lock()
	p.services = services
	p.discovered = true
	p.mu.Unlock()
	return services, nil
}

func (p *nativePeripheral) Services() ([]Service, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.discovered {
		return nil, false
	}
	svcs := make([]Service, len(p.services))
	copy(svcs, p.services)
	return svcs, true
}

func (p *nativePeripheral) Notifications(ctx context.Context) (<-chan CharacteristicValue, error) {
	p.mu.Lock()
	if p.notifyCh == nil {
		p.notifyCh = make(chan CharacteristicValue, 32)
	}
	ch := p.notifyCh
	p.mu.Unlock()
	return ch, nil
}

func (p *nativePeripheral) pushNotification(v CharacteristicValue) {
	p.mu.Lock()
	ch := p.notifyCh
	p.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
		slog.Warn("[BLE] notification dropped, stream full", "device", p.id, "characteristic", v.CharacteristicUUID)
	}
}

type nativeService struct {
	uuid  string
	chars []Characteristic
}

func (s *nativeService) UUID() string { return s.uuid }

// tinygo's central API only surfaces primary services.
func (s *nativeService) IsPrimary() bool { return true }

func (s *nativeService) Characteristics() []Characteristic {
	out := make([]Characteristic, len(s.chars))
	copy(out, s.chars)
	return out
}

type nativeCharacteristic struct {
	peripheral *nativePeripheral
	char       bluetooth.DeviceCharacteristic
	uuid       string
}

func (c *nativeCharacteristic) UUID() string { return c.uuid }

// Properties returns an empty flag set: tinygo's central API does not
// expose GATT property bits.
func (c *nativeCharacteristic) Properties() CharacteristicProperties {
	return CharacteristicProperties{}
}

// Descriptors returns nil: tinygo's central API cannot enumerate
// descriptors.
func (c *nativeCharacteristic) Descriptors() []string { return nil }

func (c *nativeCharacteristic) Read(ctx context.Context) ([]byte, error) {
	buf := make([]byte, 512)
	n, err := c.char.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (c *nativeCharacteristic) Write(ctx context.Context, data []byte, withResponse bool) error {
	if withResponse {
		_, err := c.char.Write(data)
		return err
	}
	_, err := c.char.WriteWithoutResponse(data)
	return err
}

func (c *nativeCharacteristic) Subscribe(ctx context.Context) error {
	return c.char.EnableNotifications(func(buf []byte) {
		value := make([]byte, len(buf))
		copy(value, buf)
		c.peripheral.pushNotification(CharacteristicValue{
			CharacteristicUUID: c.uuid,
			Value:              value,
		})
	})
}

// Unsubscribe disables notifications; tinygo treats a nil callback as
// disable.
func (c *nativeCharacteristic) Unsubscribe(ctx context.Context) error {
	return c.char.EnableNotifications(nil)
}
