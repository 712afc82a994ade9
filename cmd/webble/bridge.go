package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/chaz8081/webble/internal/webbt"
)

// request is one JSON line from the host: an id, a command name and
// command-specific params.
type request struct {
	ID     int64           `json:"id"`
	Cmd    string          `json:"cmd"`
	Params json.RawMessage `json:"params"`
}

// response answers exactly one request by id.
type response struct {
	ID     int64  `json:"id"`
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// eventMessage is an unsolicited push to the host.
type eventMessage struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// deviceParams addresses commands at a device, service or characteristic.
type deviceParams struct {
	DeviceID           string `json:"deviceId"`
	ServiceUUID        string `json:"serviceUuid"`
	CharacteristicUUID string `json:"characteristicUuid"`
	Value              string `json:"value"`
	WithResponse       *bool  `json:"withResponse"`
}

// selectParams is the host's answer to a selection dialog.
type selectParams struct {
	DeviceID  string `json:"deviceId"`
	Cancelled bool   `json:"cancelled"`
}

// bridge speaks JSON lines over stdio: requests in, responses and events
// out. It doubles as the session's event emitter and, in dialog mode, as
// the selection dialog surface with the host UI on the other end.
type bridge struct {
	session       *webbt.Session
	in            io.Reader
	scanTimeoutMs int64

	writeMu sync.Mutex
	out     io.Writer

	// Buffered so a stray selectDevice never blocks the read loop.
	responses chan webbt.DialogResponse
}

func newBridge(in io.Reader, out io.Writer, scanTimeoutMs int64) *bridge {
	return &bridge{
		in:            in,
		out:           out,
		scanTimeoutMs: scanTimeoutMs,
		responses:     make(chan webbt.DialogResponse, 1),
	}
}

// run reads requests line by line until EOF. Each request is served on its
// own goroutine so a blocking requestDevice does not stall selectDevice.
func (b *bridge) run() {
	scanner := bufio.NewScanner(b.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			log.Printf("ERROR: malformed request line: %v", err)
			continue
		}
		go b.serve(req)
	}
	if err := scanner.Err(); err != nil {
		log.Printf("ERROR: reading requests: %v", err)
	}
}

func (b *bridge) serve(req request) {
	result, err := b.dispatch(context.Background(), req)
	resp := response{ID: req.ID, OK: err == nil, Result: result}
	if err != nil {
		resp.Error = err.Error()
	}
	b.writeLine(resp)
}

func (b *bridge) dispatch(ctx context.Context, req request) (any, error) {
	switch req.Cmd {
	case "getAvailability":
		return b.session.GetAvailability(ctx)

	case "getDevices":
		return b.session.GetDevices(ctx)

	case "requestDevice":
		var opts webbt.RequestDeviceOptions
		if err := unmarshalParams(req.Params, &opts); err != nil {
			return nil, err
		}
		if opts.ScanTimeoutMs == 0 {
			opts.ScanTimeoutMs = b.scanTimeoutMs
		}
		return b.session.RequestDevice(ctx, opts)

	case "selectDevice":
		var p selectParams
		if err := unmarshalParams(req.Params, &p); err != nil {
			return nil, err
		}
		select {
		case b.responses <- webbt.DialogResponse{DeviceID: p.DeviceID, Cancelled: p.Cancelled}:
		default:
			return nil, fmt.Errorf("no selection in progress")
		}
		return nil, nil

	case "connectGatt":
		p, err := b.deviceParams(req.Params)
		if err != nil {
			return nil, err
		}
		return b.session.ConnectGATT(ctx, p.DeviceID)

	case "disconnectGatt":
		p, err := b.deviceParams(req.Params)
		if err != nil {
			return nil, err
		}
		return nil, b.session.DisconnectGATT(ctx, p.DeviceID)

	case "forgetDevice":
		p, err := b.deviceParams(req.Params)
		if err != nil {
			return nil, err
		}
		return nil, b.session.ForgetDevice(ctx, p.DeviceID)

	case "getPrimaryServices":
		p, err := b.deviceParams(req.Params)
		if err != nil {
			return nil, err
		}
		return b.session.GetPrimaryServices(ctx, p.DeviceID, p.ServiceUUID)

	case "getCharacteristics":
		p, err := b.deviceParams(req.Params)
		if err != nil {
			return nil, err
		}
		return b.session.GetCharacteristics(ctx, p.DeviceID, p.ServiceUUID, p.CharacteristicUUID)

	case "readCharacteristicValue":
		p, err := b.deviceParams(req.Params)
		if err != nil {
			return nil, err
		}
		return b.session.ReadCharacteristicValue(ctx, p.DeviceID, p.ServiceUUID, p.CharacteristicUUID)

	case "writeCharacteristicValue":
		p, err := b.deviceParams(req.Params)
		if err != nil {
			return nil, err
		}
		withResponse := true
		if p.WithResponse != nil {
			withResponse = *p.WithResponse
		}
		return nil, b.session.WriteCharacteristicValue(ctx, p.DeviceID, p.ServiceUUID, p.CharacteristicUUID, p.Value, withResponse)

	case "startNotifications":
		p, err := b.deviceParams(req.Params)
		if err != nil {
			return nil, err
		}
		return nil, b.session.StartNotifications(ctx, p.DeviceID, p.ServiceUUID, p.CharacteristicUUID)

	case "stopNotifications":
		p, err := b.deviceParams(req.Params)
		if err != nil {
			return nil, err
		}
		return nil, b.session.StopNotifications(ctx, p.DeviceID, p.ServiceUUID, p.CharacteristicUUID)

	default:
		return nil, fmt.Errorf("unknown command %q", req.Cmd)
	}
}

func (b *bridge) deviceParams(raw json.RawMessage) (deviceParams, error) {
	var p deviceParams
	if err := unmarshalParams(raw, &p); err != nil {
		return deviceParams{}, err
	}
	return p, nil
}

func unmarshalParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

// Emit implements webbt.Emitter.
func (b *bridge) Emit(event string, payload any) error {
	return b.writeLine(eventMessage{Event: event, Payload: payload})
}

// Present implements webbt.DialogSurface by pushing the initial candidate
// set to the host; further candidates flow through the emitter.
func (b *bridge) Present(_ context.Context, sc *webbt.SelectionContext) error {
	return b.Emit(webbt.EventRequestDeviceUpdate, webbt.RequestDeviceUpdate{Devices: sc.Candidates})
}

// Responses implements webbt.DialogSurface.
func (b *bridge) Responses() <-chan webbt.DialogResponse {
	return b.responses
}

// Dismiss implements webbt.DialogSurface. A buffered response from a
// finished dialog must not leak into the next one.
func (b *bridge) Dismiss() {
	for {
		select {
		case <-b.responses:
		default:
			return
		}
	}
}

func (b *bridge) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	data = append(data, '\n')
	_, err = b.out.Write(data)
	return err
}
