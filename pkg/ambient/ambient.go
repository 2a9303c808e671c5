package ambient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/nergy-se/gtimonitor/pkg/api/v1/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var ErrStatus = errors.New("ambient unexpected status")

const createdLayout = "2006-01-02T15:04:05"

// Reading is one stored point read back from a channel. Fields holds d1..d8.
type Reading struct {
	Time   time.Time
	Fields [8]*float64
}

type readData struct {
	Created string   `json:"created"`
	D1      *float64 `json:"d1"`
	D2      *float64 `json:"d2"`
	D3      *float64 `json:"d3"`
	D4      *float64 `json:"d4"`
	D5      *float64 `json:"d5"`
	D6      *float64 `json:"d6"`
	D7      *float64 `json:"d7"`
	D8      *float64 `json:"d8"`
}

// Client talks to the Ambient channel API. Ambient rejects writes to the same
// channel closer than a few seconds apart so Send spaces them per channel.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	minInterval time.Duration

	limiters map[int]*rate.Limiter
	mutex    sync.Mutex
}

func New(c config.Ambient) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		baseURL:     c.BaseURL,
		minInterval: config.Seconds(c.MinIntervalSeconds),
		limiters:    make(map[int]*rate.Limiter),
	}
}

func (c *Client) limiter(channelID int) *rate.Limiter {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	l, ok := c.limiters[channelID]
	if !ok {
		l = rate.NewLimiter(rate.Every(c.minInterval), 1)
		c.limiters[channelID] = l
	}
	return l
}

// Send posts one point. fields are d1..d8 in order, nil fields are left out. An empty comment is not sent.
func (c *Client) Send(ctx context.Context, ch config.Channel, ts time.Time, fields []*float64, comment string) error {
	if len(fields) > 8 {
		return fmt.Errorf("ambient accepts at most 8 fields, got %d", len(fields))
	}

	data := map[string]interface{}{
		"created": ts.UTC().Format(createdLayout),
	}
	for i, f := range fields {
		if f != nil {
			data[fmt.Sprintf("d%d", i+1)] = *f
		}
	}
	if comment != "" {
		data["cmnt"] = comment
	}
	body, err := json.Marshal(map[string]interface{}{
		"writeKey": ch.WriteKey,
		"data":     []interface{}{data},
	})
	if err != nil {
		return err
	}

	err = c.limiter(ch.ID).Wait(ctx)
	if err != nil {
		return err
	}

	u := fmt.Sprintf("%s/api/v2/channels/%d/dataarray", c.baseURL, ch.ID)
	logrus.Tracef("ambient: POST %s body %s", u, body)
	req, err := http.NewRequestWithContext(ctx, "POST", u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("%w: %s StatusCode: %d", ErrStatus, ch, resp.StatusCode)
	}
	return nil
}

// ReadDay returns every point stored in the channel for the given date.
func (c *Client) ReadDay(ctx context.Context, ch config.Channel, date time.Time) ([]Reading, error) {
	q := url.Values{}
	q.Set("readKey", ch.ReadKey)
	q.Set("date", date.Format("2006-01-02"))
	u := fmt.Sprintf("%s/api/v2/channels/%d/data?%s", c.baseURL, ch.ID, q.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	logrus.Tracef("ambient: GET %s/api/v2/channels/%d/data date=%s", c.baseURL, ch.ID, date.Format("2006-01-02"))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("%w: %s StatusCode: %d", ErrStatus, ch, resp.StatusCode)
	}

	var raw []readData
	err = json.NewDecoder(resp.Body).Decode(&raw)
	if err != nil {
		return nil, err
	}

	readings := make([]Reading, 0, len(raw))
	for _, d := range raw {
		ts, err := time.Parse(time.RFC3339Nano, d.Created)
		if err != nil {
			return nil, fmt.Errorf("error parsing created %q: %w", d.Created, err)
		}
		readings = append(readings, Reading{
			Time:   ts,
			Fields: [8]*float64{d.D1, d.D2, d.D3, d.D4, d.D5, d.D6, d.D7, d.D8},
		})
	}
	return readings, nil
}
