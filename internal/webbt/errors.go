package webbt

import (
	"errors"
	"fmt"
)

// ErrNoAdapter is returned when no Bluetooth radio is present at session
// construction.
var ErrNoAdapter = errors.New("webbt: bluetooth adapter is not available on this system")

// ErrSelectionCancelled is returned when the selection arbiter resolved to
// no device, either by explicit cancel or by its own timeout.
var ErrSelectionCancelled = errors.New("webbt: device selection was cancelled")

// InvalidRequestError reports malformed request options, detected before
// any scanning starts.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "webbt: invalid request: " + e.Reason
}

// InvalidUUIDError reports a token that parses to neither a short-form nor
// a 128-bit UUID.
type InvalidUUIDError struct {
	Token string
}

func (e *InvalidUUIDError) Error() string {
	return fmt.Sprintf("webbt: invalid UUID %q", e.Token)
}

// DeviceNotFoundError reports a lookup miss, or a discovery that ended with
// zero matches (empty DeviceID).
type DeviceNotFoundError struct {
	DeviceID string
}

func (e *DeviceNotFoundError) Error() string {
	if e.DeviceID == "" {
		return "webbt: no matching device found"
	}
	return fmt.Sprintf("webbt: device %s not found", e.DeviceID)
}

// ServiceNotFoundError reports a GATT service lookup miss.
type ServiceNotFoundError struct {
	DeviceID    string
	ServiceUUID string
}

func (e *ServiceNotFoundError) Error() string {
	return fmt.Sprintf("webbt: service %s not found for device %s", e.ServiceUUID, e.DeviceID)
}

// CharacteristicNotFoundError reports a GATT characteristic lookup miss.
type CharacteristicNotFoundError struct {
	DeviceID           string
	CharacteristicUUID string
}

func (e *CharacteristicNotFoundError) Error() string {
	return fmt.Sprintf("webbt: characteristic %s not found for device %s", e.CharacteristicUUID, e.DeviceID)
}

// DescriptorNotFoundError reports a GATT descriptor lookup miss.
type DescriptorNotFoundError struct {
	DeviceID       string
	DescriptorUUID string
}

func (e *DescriptorNotFoundError) Error() string {
	return fmt.Sprintf("webbt: descriptor %s not found for device %s", e.DescriptorUUID, e.DeviceID)
}

// NotificationsActiveError reports a second subscription attempt for a
// (device, characteristic) pair that already has an owner.
type NotificationsActiveError struct {
	DeviceID           string
	CharacteristicUUID string
}

func (e *NotificationsActiveError) Error() string {
	return fmt.Sprintf("webbt: notifications already active for %s on device %s", e.CharacteristicUUID, e.DeviceID)
}

// NotificationsNotActiveError reports a stop for a (device, characteristic)
// pair with no registered subscription.
type NotificationsNotActiveError struct {
	DeviceID           string
	CharacteristicUUID string
}

func (e *NotificationsNotActiveError) Error() string {
	return fmt.Sprintf("webbt: notifications not active for %s on device %s", e.CharacteristicUUID, e.DeviceID)
}
