package sampler

import (
	"context"

	"github.com/nergy-se/gtimonitor/pkg/alarm"
	"github.com/nergy-se/gtimonitor/pkg/api/v1/types"
	"github.com/nergy-se/gtimonitor/pkg/device"
	"github.com/nergy-se/gtimonitor/pkg/metrics"
	"github.com/nergy-se/gtimonitor/pkg/window"
	"github.com/sirupsen/logrus"
)

// Sampler reads one value from a device per tick into a buffer.
type Sampler struct {
	source  types.Source
	adapter device.Adapter
	buffer  *window.Buffer
	alarms  *alarm.ActiveAlarms
}

func New(source types.Source, adapter device.Adapter, buffer *window.Buffer, alarms *alarm.ActiveAlarms) *Sampler {
	return &Sampler{
		source:  source,
		adapter: adapter,
		buffer:  buffer,
		alarms:  alarms,
	}
}

func (s *Sampler) Source() types.Source {
	return s.source
}

// Tick takes one sample. A failed read skips the tick and is logged here, loudly
// only when the device starts failing, so it never returns an error.
func (s *Sampler) Tick(ctx context.Context) error {
	logger := logrus.WithField("source", s.source)

	v, err := s.adapter.Read()
	if err != nil {
		metrics.SampleErrors.WithLabelValues(string(s.source)).Inc()
		if s.alarms.Add(string(s.source)) {
			logger.Errorf("sampler: %s", err)
		} else {
			logger.Debugf("sampler: still failing: %s", err)
		}
		return nil
	}

	if s.alarms.Remove(string(s.source)) {
		logger.Info("sampler: device recovered")
	}
	metrics.Samples.WithLabelValues(string(s.source)).Inc()
	s.buffer.Append(v)
	logger.Tracef("sampler: %.1f into %s", v, s.buffer.Name())
	return nil
}
