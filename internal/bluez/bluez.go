// Package bluez probes the BlueZ daemon over the system D-Bus. It backs
// the availability check on Linux, where a compiled-in radio backend says
// nothing about whether bluetoothd is actually running and powered.
package bluez

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	busName      = "org.bluez"
	adapterPath  = "/org/bluez/hci0"
	adapterIface = "org.bluez.Adapter1"
	propsIface   = "org.freedesktop.DBus.Properties"
)

// Probe wraps a system D-Bus connection for BlueZ queries.
type Probe struct {
	conn *dbus.Conn
}

// NewProbe connects to the system bus and verifies BlueZ is present.
func NewProbe() (*Probe, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.Close()
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	found := false
	for _, n := range names {
		if n == busName {
			found = true
			break
		}
	}
	if !found {
		conn.Close()
		return nil, fmt.Errorf("org.bluez not found on system bus, is bluetooth.service running?")
	}
	return &Probe{conn: conn}, nil
}

// Close releases the bus connection.
func (p *Probe) Close() {
	p.conn.Close()
}

// AdapterPowered reports the Powered property of the default adapter.
func (p *Probe) AdapterPowered() (bool, error) {
	obj := p.conn.Object(busName, adapterPath)
	var v dbus.Variant
	if err := obj.Call(propsIface+".Get", 0, adapterIface, "Powered").Store(&v); err != nil {
		return false, fmt.Errorf("get Powered: %w", err)
	}
	val, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("property Powered is not bool")
	}
	return val, nil
}

// Available reports whether BlueZ is reachable and the default adapter is
// powered. Every failure mode reads as unavailable.
func Available() bool {
	p, err := NewProbe()
	if err != nil {
		return false
	}
	defer p.Close()
	powered, err := p.AdapterPowered()
	if err != nil {
		return false
	}
	return powered
}
