package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/nergy-se/gtimonitor/pkg/aggregate"
	"github.com/nergy-se/gtimonitor/pkg/alarm"
	"github.com/nergy-se/gtimonitor/pkg/ambient"
	"github.com/nergy-se/gtimonitor/pkg/api/v1/config"
	"github.com/nergy-se/gtimonitor/pkg/api/v1/meter"
	"github.com/nergy-se/gtimonitor/pkg/api/v1/types"
	"github.com/nergy-se/gtimonitor/pkg/controller"
	"github.com/nergy-se/gtimonitor/pkg/controller/dummy"
	"github.com/nergy-se/gtimonitor/pkg/device"
	"github.com/nergy-se/gtimonitor/pkg/hive"
	"github.com/nergy-se/gtimonitor/pkg/httpapi"
	"github.com/nergy-se/gtimonitor/pkg/influx"
	"github.com/nergy-se/gtimonitor/pkg/mqtt"
	"github.com/nergy-se/gtimonitor/pkg/retry"
	"github.com/nergy-se/gtimonitor/pkg/sampler"
	"github.com/nergy-se/gtimonitor/pkg/schedule"
	"github.com/nergy-se/gtimonitor/pkg/summary"
	"github.com/nergy-se/gtimonitor/pkg/version"
	"github.com/nergy-se/gtimonitor/pkg/weather"
	"github.com/nergy-se/gtimonitor/pkg/window"
	"github.com/sirupsen/logrus"
)

type App struct {
	wg     *sync.WaitGroup
	config *config.CliConfig

	scheduler  *schedule.Scheduler
	alarms     *alarm.ActiveAlarms
	meterCache *meter.Cache
	ambient    *ambient.Client
	broker     *mqtt.Broker
	influx     *influx.Mirror

	devices       map[types.Source]device.Adapter
	samplers      []*sampler.Sampler
	tiers         []*aggregate.Tier
	controlBuffer *window.Buffer
	controller    *controller.Controller
	summary       *summary.Job
}

func New(config *config.CliConfig) *App {
	return &App{
		wg:         &sync.WaitGroup{},
		config:     config,
		scheduler:  schedule.New(),
		alarms:     &alarm.ActiveAlarms{},
		meterCache: &meter.Cache{},
		ambient:    ambient.New(config.Service.Ambient),
		devices:    make(map[types.Source]device.Adapter),
	}
}

func (a *App) Start(ctx context.Context) error {
	logrus.Infof("gtimonitor %s starting", version.Get())

	if a.config.MQTT.Listen != "" {
		broker, err := mqtt.Start(ctx, a.wg, a.config.MQTT.Listen)
		if err != nil {
			return fmt.Errorf("error starting mqtt broker: %w", err)
		}
		a.broker = broker
		if a.config.PowerDevice() == types.PowerDeviceP1ib {
			err = broker.SubscribeP1ib(a.config.Device.P1ib.Topic, a.meterCache)
			if err != nil {
				return fmt.Errorf("error subscribing to %s: %w", a.config.Device.P1ib.Topic, err)
			}
		}
	}
	if a.config.Influx.Configured() {
		a.influx = influx.New(a.config.Influx)
	}

	err := a.setupDevices()
	if err != nil {
		return err
	}
	a.setupPipeline()

	err = a.schedule()
	if err != nil {
		return err
	}
	a.scheduler.Start(ctx)

	if a.config.HTTP.Listen != "" {
		httpapi.New(a.config.HTTP.Listen, a.Status).Start(ctx, a.wg)
	}
	return nil
}

// Wait blocks until ctx given to Start is cancelled and everything has stopped.
func (a *App) Wait() {
	a.scheduler.Wait()
	a.wg.Wait()
}

// Close releases device connections. Call after Wait.
func (a *App) Close() {
	for source, d := range a.devices {
		err := d.Close()
		if err != nil {
			logrus.Errorf("error closing %s device: %s", source, err)
		}
	}
	if a.influx != nil {
		a.influx.Close()
	}
}

func (a *App) setupDevices() error {
	if a.config.SourceEnabled(types.SourceLight) {
		a.devices[types.SourceLight] = device.NewLight(a.config.Device.Light)
	}
	if a.config.SourceEnabled(types.SourcePower) {
		d, err := device.NewPower(a.config, a.meterCache)
		if err != nil {
			return err
		}
		a.devices[types.SourcePower] = d
	}
	if len(a.devices) == 0 {
		logrus.Warn("no devices configured, nothing will be sampled")
	}

	for source, d := range a.devices {
		// not fatal, adapters connect again on read
		if err := d.Connect(); err != nil {
			logrus.Errorf("error connecting %s device: %s", source, err)
		}
	}
	return nil
}

// setupPipeline chains raw buffers through the current tier, the optional quarter
// tier and finally into the controller buffer.
func (a *App) setupPipeline() {
	ambientRetry := retry.New(retry.Policy{
		Attempts: a.config.Retry.Attempts,
		Delay:    config.Seconds(a.config.Retry.AmbientDelaySeconds),
	})
	logrus.Debugf("ambient retry: %s", ambientRetry.Policy())
	quarter := a.config.Service.Ambient.Quarter.Configured()
	controlSource := types.Source(a.config.Control.Source)
	if a.config.ControlEnabled() {
		a.controlBuffer = window.New(string(controlSource) + " control")
	}

	var currentStages, quarterStages []aggregate.Stage
	for _, source := range types.Sources {
		d, ok := a.devices[source]
		if !ok {
			continue
		}
		raw := window.New(string(source) + " raw")
		a.samplers = append(a.samplers, sampler.New(source, d, raw, a.alarms))

		var control *window.Buffer
		if source == controlSource {
			control = a.controlBuffer
		}
		if quarter {
			mid := window.New(string(source) + " current")
			currentStages = append(currentStages, aggregate.Stage{Source: source, In: raw, Out: mid})
			quarterStages = append(quarterStages, aggregate.Stage{Source: source, In: mid, Out: control})
		} else {
			currentStages = append(currentStages, aggregate.Stage{Source: source, In: raw, Out: control})
		}
	}

	var mirrors []aggregate.Mirror
	if a.broker != nil && a.config.MQTT.Mirror != "" {
		mirrors = append(mirrors, mqtt.NewMirror(a.broker, a.config.MQTT.Mirror))
	}
	if a.influx != nil {
		mirrors = append(mirrors, a.influx)
	}

	if a.controlBuffer != nil {
		var api controller.ProfileAPI
		if a.config.Service.Hive.Configured() {
			api = hive.New(&a.config.Service.Hive)
		} else {
			logrus.Warn("no hive api configured, profile switches are only logged")
			api = dummy.New(a.config.Control.LowProfile, a.config.Control.HighProfile)
		}
		hiveRetry := retry.New(retry.Policy{
			Attempts: a.config.Retry.Attempts,
			Delay:    config.Seconds(a.config.Retry.HiveDelaySeconds),
		})
		logrus.Debugf("hive retry: %s", hiveRetry.Policy())
		a.controller = controller.New(a.config.Control, a.controlBuffer, api, hiveRetry)
	}

	current := aggregate.New("current", a.ambient, a.config.Service.Ambient.Current, ambientRetry, currentStages...).
		WithMirrors(mirrors...)
	if a.config.Service.OpenWeather.Configured() {
		current.WithWeather(weather.New(a.config.Service.OpenWeather))
	}
	a.tiers = append(a.tiers, current)
	if quarter {
		a.tiers = append(a.tiers, aggregate.New("quarter", a.ambient, a.config.Service.Ambient.Quarter, ambientRetry, quarterStages...).
			WithMirrors(mirrors...))
	}
	if a.controller != nil {
		for _, t := range a.tiers {
			t.WithProfile(a.controller)
		}
	}

	ch := a.config.Service.Ambient
	if ch.Current.Configured() && ch.Current.ReadKey != "" && ch.Summary.Configured() {
		a.summary = summary.New(a.ambient, ch.Current, ch.Summary, a.config.Cost, ambientRetry)
	}
}

type cronJob struct {
	name string
	spec string
	job  schedule.Job
}

func (a *App) schedule() error {
	s := a.config.Schedule
	for _, smp := range a.samplers {
		initial, period := s.PowerInitialSeconds, s.PowerSeconds
		if smp.Source() == types.SourceLight {
			initial, period = s.LightInitialSeconds, s.LightSeconds
		}
		a.scheduler.FixedDelay("sample "+string(smp.Source()), config.Seconds(initial), config.Seconds(period), smp.Tick)
	}

	var jobs []cronJob
	for _, t := range a.tiers {
		spec := s.Current
		if t.Name() == "quarter" {
			spec = s.Quarter
		}
		jobs = append(jobs, cronJob{"aggregate " + t.Name(), spec, t.Tick})
	}
	if a.controller != nil {
		jobs = append(jobs, cronJob{"control", s.Control, a.controller.Tick})
	}
	if a.summary != nil {
		jobs = append(jobs, cronJob{"summary", s.Summary, a.summary.Run})
	}

	for _, j := range jobs {
		err := a.scheduler.Cron(j.name, j.spec, j.job)
		if err != nil {
			return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
		}
		logrus.Debugf("scheduled %s at %q", j.name, j.spec)
	}
	return nil
}

func (a *App) Status() httpapi.Status {
	st := httpapi.Status{
		Version:  version.Get(),
		Profile:  types.ProfileNone.String(),
		Pending:  make(map[string]map[types.Source]int),
		Alarms:   a.alarms.List(),
		NextRuns: a.scheduler.Next(),
	}
	for _, t := range a.tiers {
		st.Pending[t.Name()] = t.Pending()
	}
	if a.controller != nil {
		st.Profile = a.controller.Current().String()
		st.Pending["control"] = map[types.Source]int{
			types.Source(a.config.Control.Source): a.controlBuffer.Len(),
		}
	}
	return st
}
