package webbt

import (
	"strings"
	"time"
)

const defaultScanTimeout = 10 * time.Second

// Matches reports whether a descriptor satisfies every present constraint
// of the filter. Name matching is case sensitive; a device without a name
// never matches a name or prefix constraint. The service constraint is a
// subset test against the descriptor's advertised UUIDs.
func (f DeviceFilter) Matches(d DeviceDescriptor) bool {
	if f.Name != "" && d.Name != f.Name {
		return false
	}
	if f.NamePrefix != "" {
		if d.Name == "" || !strings.HasPrefix(d.Name, f.NamePrefix) {
			return false
		}
	}
	if len(f.Services) > 0 {
		advertised := make(map[string]bool, len(d.UUIDs))
		for _, u := range d.UUIDs {
			advertised[canonicalUUID(u)] = true
		}
		for _, want := range f.Services {
			if !advertised[canonicalUUID(want)] {
				return false
			}
		}
	}
	return true
}

// MatchesDescriptor reports whether any filter matches, or true for
// accept-all requests regardless of filters.
func (o RequestDeviceOptions) MatchesDescriptor(d DeviceDescriptor) bool {
	if o.AcceptAllDevices {
		return true
	}
	for _, f := range o.Filters {
		if f.Matches(d) {
			return true
		}
	}
	return false
}

// validate rejects malformed options before any scanning starts.
func (o RequestDeviceOptions) validate() error {
	if !o.AcceptAllDevices && len(o.Filters) == 0 {
		return &InvalidRequestError{Reason: "acceptAllDevices is false and no filters were given"}
	}
	if o.ScanTimeoutMs < 0 {
		return &InvalidRequestError{Reason: "scanTimeoutMs must be positive"}
	}
	for _, f := range o.Filters {
		for _, svc := range f.Services {
			if _, err := NormalizeUUID(svc); err != nil {
				return err
			}
		}
	}
	return nil
}

// scanTimeout returns the configured timeout, defaulting to 10s.
func (o RequestDeviceOptions) scanTimeout() time.Duration {
	if o.ScanTimeoutMs <= 0 {
		return defaultScanTimeout
	}
	return time.Duration(o.ScanTimeoutMs) * time.Millisecond
}

// serviceUUIDs returns the normalized union of all filter service UUIDs,
// in first-appearance order. Used to seed the adapter scan.
func (o RequestDeviceOptions) serviceUUIDs() []string {
	var out []string
	seen := make(map[string]bool)
	for _, f := range o.Filters {
		for _, svc := range f.Services {
			n, err := NormalizeUUID(svc)
			if err != nil {
				continue
			}
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}
