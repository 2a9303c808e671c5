package types

// Source identifies what a sampler measures.
type Source string

var SourceLight = Source("light") // lux
var SourcePower = Source("power") // watts

// Sources in telemetry field order.
var Sources = []Source{SourceLight, SourcePower}

// PowerDeviceType selects the adapter used for the power source.
type PowerDeviceType string

var PowerDeviceGTI = PowerDeviceType("gti")
var PowerDeviceMbus = PowerDeviceType("mbus")
var PowerDeviceP1ib = PowerDeviceType("p1ib")

// Profile is the power profile the controller believes is active on the worker.
type Profile string

var ProfileNone = Profile("")
var ProfileLow = Profile("low")
var ProfileHigh = Profile("high")

// Indicator is the value reported in telemetry for the profile. Ambient renders it as a state colour.
func (p Profile) Indicator() *float64 {
	var v float64
	switch p {
	case ProfileHigh:
		v = 9
	case ProfileLow:
		v = 12
	default:
		return nil
	}
	return &v
}

func (p Profile) String() string {
	if p == ProfileNone {
		return "none"
	}
	return string(p)
}
