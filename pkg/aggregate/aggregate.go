package aggregate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nergy-se/gtimonitor/pkg/api/v1/config"
	"github.com/nergy-se/gtimonitor/pkg/api/v1/types"
	"github.com/nergy-se/gtimonitor/pkg/metrics"
	"github.com/nergy-se/gtimonitor/pkg/retry"
	"github.com/nergy-se/gtimonitor/pkg/state"
	"github.com/nergy-se/gtimonitor/pkg/weather"
	"github.com/nergy-se/gtimonitor/pkg/window"
	"github.com/sirupsen/logrus"
)

type Sink interface {
	Send(ctx context.Context, ch config.Channel, ts time.Time, fields []*float64, comment string) error
}

type WeatherProvider interface {
	Current(ctx context.Context) (*weather.Snapshot, error)
}

type ProfileReader interface {
	Current() types.Profile
}

// Mirror receives a copy of every point sent by a tier. Failures are only logged.
type Mirror interface {
	Mirror(ctx context.Context, tier string, ts time.Time, r *state.Report) error
}

// Stage moves one source through a tier: In is drained, the mean is appended to Out.
// Out is nil on the last tier.
type Stage struct {
	Source types.Source
	In     *window.Buffer
	Out    *window.Buffer
}

// Point is one tier's output for one window.
type Point struct {
	Time    time.Time // start of the window
	Values  map[types.Source]float64
	Weather *weather.Snapshot
	Comment string
	Profile *float64
}

func (p Point) Report() *state.Report {
	r := &state.Report{Profile: p.Profile}
	if v, ok := p.Values[types.SourceLight]; ok {
		r.Light = state.Pointer(v)
	}
	if v, ok := p.Values[types.SourcePower]; ok {
		r.Power = state.Pointer(v)
	}
	return r.WithWeather(p.Weather)
}

// Tier drains its stages on every tick, forwards the means and sends them as one point.
type Tier struct {
	name    string
	stages  []Stage
	sink    Sink
	channel config.Channel
	retry   *retry.Executor

	weather WeatherProvider
	profile ProfileReader
	mirrors []Mirror
	now     func() time.Time

	windowStart     time.Time
	lastDescription string
	mutex           sync.Mutex
}

// New creates a tier. A nil sink or an unconfigured channel only disables sending,
// the means are still forwarded.
func New(name string, sink Sink, channel config.Channel, r *retry.Executor, stages ...Stage) *Tier {
	t := &Tier{
		name:    name,
		stages:  stages,
		sink:    sink,
		channel: channel,
		retry:   r,
		now:     time.Now,
	}
	t.windowStart = t.now()
	return t
}

func (t *Tier) WithWeather(w WeatherProvider) *Tier {
	t.weather = w
	return t
}

func (t *Tier) WithProfile(p ProfileReader) *Tier {
	t.profile = p
	return t
}

func (t *Tier) WithMirrors(m ...Mirror) *Tier {
	t.mirrors = append(t.mirrors, m...)
	return t
}

func (t *Tier) Name() string {
	return t.name
}

// Pending returns the number of samples waiting in each input buffer.
func (t *Tier) Pending() map[types.Source]int {
	p := make(map[types.Source]int, len(t.stages))
	for _, s := range t.stages {
		p[s.Source] = s.In.Len()
	}
	return p
}

// Tick runs one aggregation cycle. An empty window is a no-op.
func (t *Tier) Tick(ctx context.Context) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	logger := logrus.WithField("tier", t.name)
	now := t.now()
	p := Point{
		Time:   t.windowStart,
		Values: make(map[types.Source]float64, len(t.stages)),
	}
	t.windowStart = now

	for _, s := range t.stages {
		d, ok := s.In.DrainAverage()
		if !ok {
			logger.Debugf("aggregate: no %s samples this window", s.Source)
			continue
		}
		p.Values[s.Source] = d.Average
		metrics.LastMean.WithLabelValues(t.name, string(s.Source)).Set(d.Average)
		logger.Debugf("aggregate: %s mean=%.2f of %d samples", s.In.Name(), d.Average, d.Count)

		// forwarded before sending so a send stuck in retries does not starve the next tier
		if s.Out != nil {
			s.Out.Append(d.Average)
		}
	}
	if len(p.Values) == 0 {
		return nil
	}

	if t.weather != nil {
		w, err := t.weather.Current(ctx)
		if err != nil {
			logger.Warnf("aggregate: sending without weather: %s", err)
		} else {
			p.Weather = w
			if w.Description != t.lastDescription {
				p.Comment = w.Description
				t.lastDescription = w.Description
			}
		}
	}
	if t.profile != nil {
		p.Profile = t.profile.Current().Indicator()
	}

	report := p.Report()
	err := t.send(ctx, p, report)

	for _, m := range t.mirrors {
		if merr := m.Mirror(ctx, t.name, p.Time, report); merr != nil {
			logger.Warnf("aggregate: mirror failed: %s", merr)
		}
	}
	return err
}

func (t *Tier) send(ctx context.Context, p Point, report *state.Report) error {
	if t.sink == nil || !t.channel.Configured() {
		return nil
	}
	err := t.retry.Do(ctx, fmt.Sprintf("send %s to %s", t.name, t.channel), func(ctx context.Context) error {
		return t.sink.Send(ctx, t.channel, p.Time, report.Fields(), p.Comment)
	})
	metrics.Sends.WithLabelValues(t.name, metrics.Result(err)).Inc()
	if err != nil {
		return fmt.Errorf("error sending %s point to %s: %w", t.name, t.channel, err)
	}
	return nil
}
