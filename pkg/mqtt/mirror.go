package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nergy-se/gtimonitor/pkg/state"
)

// Mirror publishes aggregated points as json to <prefix>/<tier>.
type Mirror struct {
	broker *Broker
	prefix string
}

func NewMirror(b *Broker, prefix string) *Mirror {
	return &Mirror{broker: b, prefix: prefix}
}

func (m *Mirror) Mirror(ctx context.Context, tier string, ts time.Time, r *state.Report) error {
	payload := r.Map()
	payload["time"] = ts.UTC().Format(time.RFC3339)
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return m.broker.Publish(m.prefix+"/"+tier, b)
}
