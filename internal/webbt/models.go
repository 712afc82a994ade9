package webbt

// Event names pushed to the host collaborator. The URI-style naming matches
// the Web Bluetooth event vocabulary the host side listens on.
const (
	EventCharacteristicValueChanged = "web-bluetooth://characteristic-value-changed"
	EventGattServerDisconnected     = "web-bluetooth://gattserver-disconnected"
	EventRequestDeviceUpdate        = "web-bluetooth://request-device-update"
)

// DeviceDescriptor is a point-in-time view of a peripheral, derived on
// demand and never cached independently of the peripheral handle.
type DeviceDescriptor struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name,omitempty"`
	UUIDs                  []string `json:"uuids"`
	WatchingAdvertisements bool     `json:"watchingAdvertisements"`
	Connected              bool     `json:"connected"`
}

// DeviceFilter constrains which advertising devices match a request.
// All present constraints must hold (empty string / empty slice = unset).
type DeviceFilter struct {
	Services   []string `json:"services"`
	Name       string   `json:"name,omitempty"`
	NamePrefix string   `json:"namePrefix,omitempty"`
}

// RequestDeviceOptions configures a RequestDevice call. If AcceptAllDevices
// is false at least one filter is required. ScanTimeoutMs defaults to 10s.
type RequestDeviceOptions struct {
	AcceptAllDevices bool           `json:"acceptAllDevices"`
	Filters          []DeviceFilter `json:"filters"`
	OptionalServices []string       `json:"optionalServices"`
	ScanTimeoutMs    int64          `json:"scanTimeoutMs"`
}

// GattServerInfo is the service snapshot returned by ConnectGATT.
type GattServerInfo struct {
	DeviceID  string             `json:"deviceId"`
	Connected bool               `json:"connected"`
	Services  []BluetoothService `json:"services"`
}

// BluetoothService describes one GATT service.
type BluetoothService struct {
	UUID            string                    `json:"uuid"`
	IsPrimary       bool                      `json:"isPrimary"`
	Characteristics []BluetoothCharacteristic `json:"characteristics"`
}

// BluetoothCharacteristic describes one GATT characteristic.
type BluetoothCharacteristic struct {
	UUID        string                   `json:"uuid"`
	Properties  CharacteristicProperties `json:"properties"`
	Descriptors []BluetoothDescriptor    `json:"descriptors"`
}

// CharacteristicProperties is the GATT property-flag set of a characteristic.
type CharacteristicProperties struct {
	Broadcast                 bool `json:"broadcast"`
	Read                      bool `json:"read"`
	WriteWithoutResponse      bool `json:"writeWithoutResponse"`
	Write                     bool `json:"write"`
	Notify                    bool `json:"notify"`
	Indicate                  bool `json:"indicate"`
	AuthenticatedSignedWrites bool `json:"authenticatedSignedWrites"`
	ReliableWrite             bool `json:"reliableWrite"`
	WritableAuxiliaries       bool `json:"writableAuxiliaries"`
}

// BluetoothDescriptor describes one GATT descriptor.
type BluetoothDescriptor struct {
	UUID string `json:"uuid"`
}

// NotificationEvent is the payload of EventCharacteristicValueChanged.
// Value is base64 encoded.
type NotificationEvent struct {
	DeviceID           string `json:"deviceId"`
	ServiceUUID        string `json:"serviceUuid"`
	CharacteristicUUID string `json:"characteristicUuid"`
	Value              string `json:"value"`
}

// DeviceEvent is the payload of EventGattServerDisconnected.
type DeviceEvent struct {
	DeviceID string `json:"deviceId"`
}

// RequestDeviceUpdate is the payload of EventRequestDeviceUpdate, sent while
// a streaming-mode selection is in progress and once more with
// Completed=true when scanning ends.
type RequestDeviceUpdate struct {
	Devices   []DeviceDescriptor `json:"devices"`
	Completed bool               `json:"completed"`
}

// Describe derives a descriptor from a live peripheral handle.
func Describe(p Peripheral) DeviceDescriptor {
	return DeviceDescriptor{
		ID:        p.ID(),
		Name:      p.LocalName(),
		UUIDs:     p.AdvertisedServices(),
		Connected: p.IsConnected(),
	}
}

func describeAll(peripherals []Peripheral) []DeviceDescriptor {
	out := make([]DeviceDescriptor, len(peripherals))
	for i, p := range peripherals {
		out[i] = Describe(p)
	}
	return out
}

func describeService(svc Service) BluetoothService {
	chars := svc.Characteristics()
	out := BluetoothService{
		UUID:            svc.UUID(),
		IsPrimary:       svc.IsPrimary(),
		Characteristics: make([]BluetoothCharacteristic, len(chars)),
	}
	for i, c := range chars {
		out.Characteristics[i] = describeCharacteristic(c)
	}
	return out
}

func describeServices(svcs []Service) []BluetoothService {
	out := make([]BluetoothService, len(svcs))
	for i, svc := range svcs {
		out[i] = describeService(svc)
	}
	return out
}

func describeCharacteristic(c Characteristic) BluetoothCharacteristic {
	descriptors := c.Descriptors()
	out := BluetoothCharacteristic{
		UUID:        c.UUID(),
		Properties:  c.Properties(),
		Descriptors: make([]BluetoothDescriptor, len(descriptors)),
	}
	for i, d := range descriptors {
		out.Descriptors[i] = BluetoothDescriptor{UUID: d}
	}
	return out
}
