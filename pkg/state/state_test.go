package state

import (
	"testing"

	"github.com/nergy-se/gtimonitor/pkg/weather"
	"github.com/stretchr/testify/assert"
)

func TestFieldsLayout(t *testing.T) {
	r := &Report{
		Power:   Pointer(123.4),
		Profile: Pointer(9.0),
	}
	r.WithWeather(&weather.Snapshot{
		Description:   "clear sky",
		Temperature:   21.5,
		Humidity:      40,
		CloudCover:    10,
		Pressure:      1013,
		Precipitation: 0.2,
	})

	f := r.Fields()
	assert.Len(t, f, 8)
	assert.Nil(t, f[0])
	assert.Equal(t, 123.4, *f[1])
	assert.Equal(t, 21.5, *f[2])
	assert.Equal(t, 10.0, *f[3])
	assert.Equal(t, 40.0, *f[4])
	assert.Equal(t, 9.0, *f[5])
	assert.Equal(t, 1013.0, *f[6])
	assert.Equal(t, 0.2, *f[7])
}

func TestWithoutWeather(t *testing.T) {
	r := (&Report{Light: Pointer(800.0)}).WithWeather(nil)
	assert.Equal(t, map[string]interface{}{"light": 800.0}, r.Map())
}
