package state

import "github.com/nergy-se/gtimonitor/pkg/weather"

// Report is one outgoing telemetry record. Nil fields are not sent.
type Report struct {
	Light         *float64 `json:"light,omitempty"`
	Power         *float64 `json:"power,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	CloudCover    *float64 `json:"cloudCover,omitempty"`
	Humidity      *float64 `json:"humidity,omitempty"`
	Profile       *float64 `json:"profile,omitempty"`
	Pressure      *float64 `json:"pressure,omitempty"`
	Precipitation *float64 `json:"precipitation,omitempty"`
}

// WithWeather copies the weather snapshot into the report. A nil snapshot leaves the weather fields absent.
func (r *Report) WithWeather(w *weather.Snapshot) *Report {
	if w == nil {
		return r
	}
	r.Temperature = Pointer(w.Temperature)
	r.CloudCover = Pointer(w.CloudCover)
	r.Humidity = Pointer(w.Humidity)
	r.Pressure = Pointer(w.Pressure)
	r.Precipitation = Pointer(w.Precipitation)
	return r
}

// Fields returns the positional channel layout d1..d8.
func (r Report) Fields() []*float64 {
	return []*float64{
		r.Light,
		r.Power,
		r.Temperature,
		r.CloudCover,
		r.Humidity,
		r.Profile,
		r.Pressure,
		r.Precipitation,
	}
}

func (r Report) Map() map[string]interface{} {
	m := make(map[string]interface{})
	if r.Light != nil {
		m["light"] = *r.Light
	}
	if r.Power != nil {
		m["power"] = *r.Power
	}
	if r.Temperature != nil {
		m["temperature"] = *r.Temperature
	}
	if r.CloudCover != nil {
		m["cloudCover"] = *r.CloudCover
	}
	if r.Humidity != nil {
		m["humidity"] = *r.Humidity
	}
	if r.Profile != nil {
		m["profile"] = *r.Profile
	}
	if r.Pressure != nil {
		m["pressure"] = *r.Pressure
	}
	if r.Precipitation != nil {
		m["precipitation"] = *r.Precipitation
	}
	return m
}

func Pointer[K any](val K) *K {
	return &val
}
