package webbt

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// defaultPollInterval is the cadence at which the discovery loop polls the
// adapter's peripheral list.
const defaultPollInterval = 250 * time.Millisecond

// scanPolicy decides whether a discovery loop runs to its deadline or stops
// as soon as the selection arbiter resolves.
type scanPolicy int

const (
	scanExhaustive scanPolicy = iota
	scanStreaming
)

// matchSink receives the matched candidate set whenever it grows, and once
// more with completed=true when scanning ends. Streaming mode only.
type matchSink func(devices []DeviceDescriptor, completed bool)

// scanOutcome is the result of one discovery loop. matched preserves
// discovery order; selection is set when the arbiter resolved mid-scan.
type scanOutcome struct {
	matched   []Peripheral
	byID      map[string]Peripheral
	selection *Selection
}

// discover runs the time-bounded discovery loop: start the adapter scan,
// poll the peripheral list at a fixed interval, dedup matches by device id
// (first match wins, later sightings are ignored), and stop at the deadline
// or, in streaming mode, as soon as resolved delivers a selection. The
// underlying scan is always stopped on exit; stop failures are logged and
// swallowed so they cannot mask the discovery result.
func (s *Session) discover(ctx context.Context, opts RequestDeviceOptions, policy scanPolicy, onUpdate matchSink, resolved <-chan Selection) (*scanOutcome, error) {
	if err := s.adapter.StartScan(opts.serviceUUIDs()); err != nil {
		return nil, fmt.Errorf("webbt: start scan: %w", err)
	}
	defer func() {
		if err := s.adapter.StopScan(); err != nil {
			slog.Warn("[BLE] stop scan failed", "error", err)
		}
	}()

	deadline := time.Now().Add(opts.scanTimeout())
	out := &scanOutcome{byID: make(map[string]Peripheral)}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		peripherals, err := s.adapter.Peripherals(ctx)
		if err != nil {
			return nil, fmt.Errorf("webbt: enumerate peripherals: %w", err)
		}

		grew := false
		for _, p := range peripherals {
			id := p.ID()
			if _, ok := out.byID[id]; ok {
				continue
			}
			if !opts.MatchesDescriptor(Describe(p)) {
				continue
			}
			out.byID[id] = p
			out.matched = append(out.matched, p)
			grew = true
		}

		if policy == scanStreaming {
			// One notification burst per iteration, and only when the
			// matched set actually grew.
			if grew && onUpdate != nil {
				onUpdate(describeAll(out.matched), false)
			}
			if resolved != nil {
				select {
				case sel := <-resolved:
					out.selection = &sel
					if onUpdate != nil {
						onUpdate(describeAll(out.matched), true)
					}
					return out, nil
				default:
				}
			}
		}

		if !time.Now().Before(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	if policy == scanStreaming && onUpdate != nil {
		onUpdate(describeAll(out.matched), true)
	}
	if len(out.matched) == 0 {
		return nil, &DeviceNotFoundError{}
	}
	return out, nil
}
