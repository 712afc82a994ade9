// Package webbt implements a Web-Bluetooth-style session manager on top of
// a native BLE adapter: scan for devices, match them against filters,
// arbitrate selection, resolve GATT services and characteristics, and run
// background notification streams. The adapter itself is abstracted so the
// session can be driven by tinygo.org/x/bluetooth in production and by an
// in-memory adapter in tests.
package webbt

import "context"

// AdapterEventKind classifies connection-lifecycle events.
type AdapterEventKind int

const (
	// PeripheralConnected signals that a peripheral established a connection.
	PeripheralConnected AdapterEventKind = iota
	// PeripheralDisconnected signals that a peripheral dropped off.
	PeripheralDisconnected
)

// AdapterEvent is one entry of the adapter's connection-lifecycle stream.
type AdapterEvent struct {
	Kind     AdapterEventKind
	DeviceID string
}

// CharacteristicValue is one notification received on a peripheral's
// notification stream.
type CharacteristicValue struct {
	CharacteristicUUID string
	Value              []byte
}

// Adapter abstracts the local Bluetooth radio. All methods may be called
// concurrently. Implementations report UUIDs in canonical lowercase
// 128-bit form.
type Adapter interface {
	// Enable powers on the adapter. Failure means no usable radio.
	Enable() error
	// StartScan begins advertising discovery. serviceUUIDs lists the
	// service UUIDs the caller is interested in; backends that cannot
	// enumerate advertised services use it to probe each advertisement.
	StartScan(serviceUUIDs []string) error
	// StopScan ends an active scan. Safe to call when not scanning.
	StopScan() error
	// Peripherals enumerates the peripherals currently known to the
	// adapter (seen in the active or a previous scan).
	Peripherals(ctx context.Context) ([]Peripheral, error)
	// Events returns the adapter's connection-lifecycle event stream.
	// The stream is valid until ctx is cancelled.
	Events(ctx context.Context) (<-chan AdapterEvent, error)
}

// Peripheral is a handle to a remote BLE device. The handle stays valid
// across disconnects; it may represent a currently-disconnected device.
type Peripheral interface {
	// ID is the opaque device identifier, stable per adapter session.
	ID() string
	// LocalName is the advertised display name, empty if none.
	LocalName() string
	// AdvertisedServices lists the service UUIDs seen in advertisements.
	AdvertisedServices() []string
	// IsConnected reports the live connection state.
	IsConnected() bool
	// Connect establishes a connection.
	Connect(ctx context.Context) error
	// Disconnect drops the connection.
	Disconnect(ctx context.Context) error
	// DiscoverServices performs GATT service discovery, caching the result
	// on the handle. Requires a connection.
	DiscoverServices(ctx context.Context) ([]Service, error)
	// Services returns the discovered services, or ok=false if discovery
	// has not run yet.
	Services() ([]Service, bool)
	// Notifications returns the peripheral's notification stream carrying
	// values for every subscribed characteristic, valid until ctx is
	// cancelled.
	Notifications(ctx context.Context) (<-chan CharacteristicValue, error)
}

// Service is a discovered GATT service.
type Service interface {
	UUID() string
	IsPrimary() bool
	Characteristics() []Characteristic
}

// Characteristic is a discovered GATT characteristic.
type Characteristic interface {
	UUID() string
	Properties() CharacteristicProperties
	// Descriptors lists descriptor UUIDs; empty on backends that cannot
	// enumerate descriptors.
	Descriptors() []string
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte, withResponse bool) error
	// Subscribe enables notifications at the adapter level; values arrive
	// on the owning peripheral's notification stream.
	Subscribe(ctx context.Context) error
	Unsubscribe(ctx context.Context) error
}
