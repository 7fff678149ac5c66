package models

// Reading is one normalized telemetry sample of a room.
type Reading struct {
	Room        string   `json:"room"`
	TimestampMs int64    `json:"timestamp_ms"`
	TempC       *float64 `json:"temp_c,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Occupied    bool     `json:"occupied"`
	Voltage     float64  `json:"voltage"`
	Amps        float64  `json:"amps"`
	PowerW      float64  `json:"power_w"`

	// Optional controller hints some firmware embeds in telemetry.
	EcoMode *bool `json:"eco_mode,omitempty"`
	Fan     *bool `json:"fan,omitempty"`
	Lamp    *bool `json:"lamp,omitempty"`
}

// Device returns the device flag reported for kind, if any.
func (r Reading) Device(kind DeviceKind) (bool, bool) {
	var p *bool
	switch kind {
	case DeviceFan:
		p = r.Fan
	case DeviceLamp:
		p = r.Lamp
	}
	if p == nil {
		return false, false
	}
	return *p, true
}
