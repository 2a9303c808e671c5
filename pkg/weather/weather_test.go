package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nergy-se/gtimonitor/pkg/api/v1/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.Equal(t, "1850147", r.URL.Query().Get("id"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		assert.Equal(t, "key", r.URL.Query().Get("appid"))
		w.Write([]byte(`{
  "weather": [{"id": 500, "main": "Rain", "description": "light rain"}],
  "main": {"temp": 12.3, "pressure": 1008, "humidity": 87},
  "wind": {"speed": 4.1},
  "clouds": {"all": 90},
  "rain": {"1h": 0.5},
  "snow": {"1h": 0.25}
}`))
	}))
	defer srv.Close()

	c := New(config.OpenWeather{BaseURL: srv.URL, CityID: "1850147", APIKey: "key", Lang: "en"})
	s, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Snapshot{
		Description:   "light rain",
		Temperature:   12.3,
		Humidity:      87,
		CloudCover:    90,
		Pressure:      1008,
		WindSpeed:     4.1,
		Precipitation: 0.75,
	}, s)
}

func TestCurrentError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(config.OpenWeather{BaseURL: srv.URL, CityID: "1", APIKey: "bad"})
	_, err := c.Current(context.Background())
	assert.ErrorIs(t, err, ErrFetch)
	assert.Contains(t, err.Error(), "401")
}
