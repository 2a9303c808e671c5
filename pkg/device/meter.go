package device

import (
	"time"

	"github.com/nergy-se/gtimonitor/pkg/api/v1/config"
	"github.com/nergy-se/gtimonitor/pkg/api/v1/meter"
	"github.com/nergy-se/gtimonitor/pkg/mbus"
)

// Mbus reads current power from an M-Bus energy meter.
type Mbus struct {
	config config.Mbus
	mbus   *mbus.Mbus
}

func NewMbus(c config.Mbus) *Mbus {
	return &Mbus{
		config: c,
		mbus:   mbus.New(c.ComPort),
	}
}

func (m *Mbus) Connect() error {
	return m.mbus.Connect()
}

func (m *Mbus) Read() (float64, error) {
	data, err := m.mbus.ReadValues(m.config.Model, m.config.PrimaryID)
	if err != nil {
		return 0, readError("mbus", err)
	}
	return data.Current_W, nil
}

func (m *Mbus) Close() error {
	return m.mbus.Close()
}

// P1ib returns the latest power pushed by a p1ib bridge over MQTT.
type P1ib struct {
	cache  *meter.Cache
	maxAge time.Duration
	now    func() time.Time
}

func NewP1ib(cache *meter.Cache, maxAge time.Duration) *P1ib {
	return &P1ib{
		cache:  cache,
		maxAge: maxAge,
		now:    time.Now,
	}
}

func (p *P1ib) Connect() error { return nil }

func (p *P1ib) Read() (float64, error) {
	d, err := p.cache.Fresh(p.now(), p.maxAge)
	if err != nil {
		return 0, readError("p1ib", err)
	}
	return d.Current_W, nil
}

func (p *P1ib) Close() error { return nil }
