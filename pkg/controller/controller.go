package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/nergy-se/gtimonitor/pkg/api/v1/config"
	"github.com/nergy-se/gtimonitor/pkg/api/v1/types"
	"github.com/nergy-se/gtimonitor/pkg/metrics"
	"github.com/nergy-se/gtimonitor/pkg/retry"
	"github.com/nergy-se/gtimonitor/pkg/window"
	"github.com/sirupsen/logrus"
)

// ProfileAPI switches the power profile of the remote worker.
type ProfileAPI interface {
	ListProfiles(ctx context.Context) (map[string]int, error)
	SetActiveProfile(ctx context.Context, id int) error
}

// Decide is a Schmitt trigger around threshold. The band
// [threshold-hysteresis, threshold+hysteresis] is closed and never switches.
// ok is false when no transition should be requested.
func Decide(avg, threshold, hysteresis float64, current types.Profile) (target types.Profile, ok bool) {
	switch {
	case avg > threshold+hysteresis && current != types.ProfileHigh:
		return types.ProfileHigh, true
	case avg < threshold-hysteresis && current != types.ProfileLow:
		return types.ProfileLow, true
	}
	return current, false
}

// Controller switches between the low and high profile based on the coarse average of one source.
type Controller struct {
	config config.Control
	buffer *window.Buffer
	api    ProfileAPI
	retry  *retry.Executor

	current types.Profile
	mutex   sync.RWMutex
}

func New(c config.Control, buffer *window.Buffer, api ProfileAPI, r *retry.Executor) *Controller {
	return &Controller{
		config: c,
		buffer: buffer,
		api:    api,
		retry:  r,
	}
}

// Current is the profile last confirmed by the API. ProfileNone until the first switch.
func (c *Controller) Current() types.Profile {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.current
}

func (c *Controller) set(p types.Profile) {
	c.mutex.Lock()
	c.current = p
	c.mutex.Unlock()
}

func (c *Controller) profileName(p types.Profile) string {
	if p == types.ProfileHigh {
		return c.config.HighProfile
	}
	return c.config.LowProfile
}

// Tick consumes the buffered average and switches profile if needed. The average is
// gone even if the switch fails, the next tick decides on fresh data.
func (c *Controller) Tick(ctx context.Context) error {
	d, ok := c.buffer.DrainAverage()
	if !ok {
		logrus.Debug("controller: no data this period")
		return nil
	}

	current := c.Current()
	logger := logrus.WithFields(logrus.Fields{
		"average": d.Average,
		"current": current,
	})
	target, ok := Decide(d.Average, c.config.Threshold, c.config.Hysteresis, current)
	if !ok {
		logger.Debug("controller: no profile change")
		return nil
	}

	name := c.profileName(target)
	logger.Infof("controller: switching profile to %s (%s)", target, name)
	err := c.retry.Do(ctx, "switch profile to "+name, func(ctx context.Context) error {
		profiles, err := c.api.ListProfiles(ctx)
		if err != nil {
			return err
		}
		id, ok := profiles[name]
		if !ok {
			return retry.Permanent(fmt.Errorf("%w: unknown profile %q", config.ErrConfiguration, name))
		}
		return c.api.SetActiveProfile(ctx, id)
	})
	metrics.Transitions.WithLabelValues(string(target), metrics.Result(err)).Inc()
	if err != nil {
		return fmt.Errorf("error switching profile to %s, staying at %s: %w", name, current, err)
	}

	c.set(target)
	if v := target.Indicator(); v != nil {
		metrics.Profile.Set(*v)
	}
	return nil
}
