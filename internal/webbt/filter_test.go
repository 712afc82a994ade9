package webbt

import (
	"errors"
	"testing"
)

func TestDeviceFilterMatches(t *testing.T) {
	heartRate := "0000180d-0000-1000-8000-00805f9b34fb"
	battery := "0000180f-0000-1000-8000-00805f9b34fb"

	device := DeviceDescriptor{
		ID:    "AA:BB:CC:DD:EE:FF",
		Name:  "Polar H10",
		UUIDs: []string{heartRate, battery},
	}
	unnamed := DeviceDescriptor{
		ID:    "11:22:33:44:55:66",
		UUIDs: []string{heartRate},
	}

	tests := []struct {
		name   string
		filter DeviceFilter
		device DeviceDescriptor
		want   bool
	}{
		{"empty filter matches anything", DeviceFilter{}, device, true},
		{"exact name match", DeviceFilter{Name: "Polar H10"}, device, true},
		{"exact name is case sensitive", DeviceFilter{Name: "polar h10"}, device, false},
		{"name constraint vs unnamed device", DeviceFilter{Name: "Polar H10"}, unnamed, false},
		{"prefix match", DeviceFilter{NamePrefix: "Polar"}, device, true},
		{"prefix mismatch", DeviceFilter{NamePrefix: "Wahoo"}, device, false},
		{"prefix constraint vs unnamed device", DeviceFilter{NamePrefix: "P"}, unnamed, false},
		{"single service subset", DeviceFilter{Services: []string{heartRate}}, device, true},
		{"short-form service constraint", DeviceFilter{Services: []string{"180d"}}, device, true},
		{"all services present", DeviceFilter{Services: []string{heartRate, battery}}, device, true},
		{"missing service", DeviceFilter{Services: []string{battery}}, unnamed, false},
		{"name and service both required", DeviceFilter{Name: "Polar H10", Services: []string{"180f"}}, device, true},
		{"name matches but service missing", DeviceFilter{Name: "Polar H10", Services: []string{"fff0"}}, device, false},
	}
	for _, tt := range tests {
		if got := tt.filter.Matches(tt.device); got != tt.want {
			t.Errorf("%s: Matches() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRequestDeviceOptionsMatching(t *testing.T) {
	device := DeviceDescriptor{
		ID:    "dev-1",
		Name:  "Thermometer",
		UUIDs: []string{"00001809-0000-1000-8000-00805f9b34fb"},
	}

	acceptAll := RequestDeviceOptions{AcceptAllDevices: true}
	if !acceptAll.MatchesDescriptor(device) {
		t.Error("acceptAllDevices should match everything")
	}
	acceptAllWithFilters := RequestDeviceOptions{
		AcceptAllDevices: true,
		Filters:          []DeviceFilter{{Name: "does-not-exist"}},
	}
	if !acceptAllWithFilters.MatchesDescriptor(device) {
		t.Error("acceptAllDevices should match regardless of filters")
	}

	// OR across filters, AND within one filter.
	either := RequestDeviceOptions{Filters: []DeviceFilter{
		{Name: "Something Else"},
		{Services: []string{"1809"}},
	}}
	if !either.MatchesDescriptor(device) {
		t.Error("one matching filter out of several should be enough")
	}
	neither := RequestDeviceOptions{Filters: []DeviceFilter{
		{Name: "Something Else"},
		{Services: []string{"180d"}},
	}}
	if neither.MatchesDescriptor(device) {
		t.Error("no matching filter should mean no match")
	}
}

func TestRequestDeviceOptionsValidate(t *testing.T) {
	var invalidReq *InvalidRequestError

	err := RequestDeviceOptions{}.validate()
	if !errors.As(err, &invalidReq) {
		t.Errorf("empty options: error = %v, want *InvalidRequestError", err)
	}

	err = RequestDeviceOptions{ScanTimeoutMs: -5, AcceptAllDevices: true}.validate()
	if !errors.As(err, &invalidReq) {
		t.Errorf("negative timeout: error = %v, want *InvalidRequestError", err)
	}

	var invalidUUID *InvalidUUIDError
	err = RequestDeviceOptions{Filters: []DeviceFilter{{Services: []string{"nope"}}}}.validate()
	if !errors.As(err, &invalidUUID) {
		t.Errorf("bad filter UUID: error = %v, want *InvalidUUIDError", err)
	}

	if err := (RequestDeviceOptions{AcceptAllDevices: true}).validate(); err != nil {
		t.Errorf("acceptAll with no filters should be valid, got %v", err)
	}
	if err := (RequestDeviceOptions{Filters: []DeviceFilter{{Name: "X"}}}).validate(); err != nil {
		t.Errorf("filters without acceptAll should be valid, got %v", err)
	}
}

func TestScanTimeoutDefault(t *testing.T) {
	if got := (RequestDeviceOptions{}).scanTimeout(); got != defaultScanTimeout {
		t.Errorf("scanTimeout() = %v, want %v", got, defaultScanTimeout)
	}
	opts := RequestDeviceOptions{ScanTimeoutMs: 200}
	if got := opts.scanTimeout(); got.Milliseconds() != 200 {
		t.Errorf("scanTimeout() = %v, want 200ms", got)
	}
}

func TestServiceUUIDUnion(t *testing.T) {
	opts := RequestDeviceOptions{Filters: []DeviceFilter{
		{Services: []string{"180d", "180f"}},
		{Services: []string{"0x180d", "1809"}},
	}}
	got := opts.serviceUUIDs()
	want := []string{
		"0000180d-0000-1000-8000-00805f9b34fb",
		"0000180f-0000-1000-8000-00805f9b34fb",
		"00001809-0000-1000-8000-00805f9b34fb",
	}
	if len(got) != len(want) {
		t.Fatalf("serviceUUIDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("serviceUUIDs()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
