package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nergy-se/gtimonitor/pkg/api/v1/config"
	"github.com/sirupsen/logrus"
)

var ErrFetch = errors.New("weather fetch failed")

// Snapshot is the current weather at the configured city. Units are metric.
type Snapshot struct {
	Description   string
	Temperature   float64 // C
	Humidity      float64 // %
	CloudCover    float64 // %
	Pressure      float64 // hPa
	WindSpeed     float64 // m/s
	Precipitation float64 // mm rain+snow last hour
}

type currentResponse struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Pressure float64 `json:"pressure"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Rain struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
	Snow struct {
		OneHour float64 `json:"1h"`
	} `json:"snow"`
}

type Client struct {
	httpClient *http.Client
	config     config.OpenWeather
}

func New(c config.OpenWeather) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		config:     c,
	}
}

func (c *Client) Current(ctx context.Context) (*Snapshot, error) {
	q := url.Values{}
	q.Set("id", c.config.CityID)
	q.Set("mode", "json")
	q.Set("lang", c.config.Lang)
	q.Set("units", "metric")
	q.Set("appid", c.config.APIKey)
	u := fmt.Sprintf("%s/data/2.5/weather?%s", c.config.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	logrus.Tracef("weather: GET %s/data/2.5/weather id=%s", c.config.BaseURL, c.config.CityID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("%w: StatusCode: %d", ErrFetch, resp.StatusCode)
	}

	response := &currentResponse{}
	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	s := &Snapshot{
		Temperature:   response.Main.Temp,
		Humidity:      response.Main.Humidity,
		CloudCover:    response.Clouds.All,
		Pressure:      response.Main.Pressure,
		WindSpeed:     response.Wind.Speed,
		Precipitation: response.Rain.OneHour + response.Snow.OneHour,
	}
	if len(response.Weather) > 0 {
		s.Description = response.Weather[0].Description
	}
	return s, nil
}
