package influx

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/nergy-se/gtimonitor/pkg/api/v1/config"
	"github.com/nergy-se/gtimonitor/pkg/state"
)

// Mirror writes every aggregated point to an InfluxDB v2 bucket, tagged with its tier.
type Mirror struct {
	client      influxdb2.Client
	write       api.WriteAPIBlocking
	measurement string
}

func New(c config.Influx) *Mirror {
	client := influxdb2.NewClientWithOptions(c.URL, c.Token,
		influxdb2.DefaultOptions().SetHTTPRequestTimeout(10))
	return &Mirror{
		client:      client,
		write:       client.WriteAPIBlocking(c.Org, c.Bucket),
		measurement: c.Measurement,
	}
}

func (m *Mirror) Mirror(ctx context.Context, tier string, ts time.Time, r *state.Report) error {
	fields := r.Map()
	if len(fields) == 0 {
		return nil
	}
	p := influxdb2.NewPoint(m.measurement, map[string]string{"tier": tier}, fields, ts)
	err := m.write.WritePoint(ctx, p)
	if err != nil {
		return fmt.Errorf("error writing to influxdb: %w", err)
	}
	return nil
}

func (m *Mirror) Close() {
	m.client.Close()
}
