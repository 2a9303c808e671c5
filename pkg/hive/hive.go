package hive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nergy-se/gtimonitor/pkg/api/v1/config"
	"github.com/sirupsen/logrus"
)

var (
	ErrAuth = errors.New("hive unauthorized")
	ErrAPI  = errors.New("hive api error")
)

// Client switches the overclock profile of one Hive OS worker.
type Client struct {
	httpClient *http.Client
	config     *config.Hive
}

func New(c *config.Hive) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		config:     c,
	}
}

type ocResponse struct {
	Data []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
}

// ListProfiles returns the farm's overclock profiles by name.
func (c *Client) ListProfiles(ctx context.Context) (map[string]int, error) {
	u := fmt.Sprintf("%s/farms/%d/oc", c.config.BaseURL, c.config.FarmID)
	response := &ocResponse{}
	err := c.do(ctx, "GET", u, nil, response)
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]int, len(response.Data))
	for _, oc := range response.Data {
		profiles[oc.Name] = oc.ID
	}
	return profiles, nil
}

// SetActiveProfile replaces the worker's overclock with profile id.
func (c *Client) SetActiveProfile(ctx context.Context, id int) error {
	u := fmt.Sprintf("%s/farms/%d/workers/%d", c.config.BaseURL, c.config.FarmID, c.config.WorkerID)
	body := map[string]interface{}{
		"oc_id":         id,
		"oc_apply_mode": "replace",
	}
	return c.do(ctx, "PATCH", u, body, nil)
}

func (c *Client) do(ctx context.Context, method, u string, body, dst interface{}) error {
	var b []byte
	if body != nil {
		var err error
		b, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	logrus.Tracef("hive: %s %s", method, u)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s %s StatusCode: %d", ErrAuth, method, u, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: %s %s StatusCode: %d", ErrAPI, method, u, resp.StatusCode)
	}

	if dst == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
