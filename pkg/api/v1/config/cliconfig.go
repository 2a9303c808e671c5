package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/koding/multiconfig"
	"github.com/nergy-se/gtimonitor/pkg/api/v1/types"
)

var ErrConfiguration = errors.New("configuration error")

type CliConfig struct {
	Device   Device
	Service  Service
	Control  Control
	Cost     Cost
	Schedule Schedule
	Retry    Retry
	MQTT     MQTT
	Influx   Influx
	HTTP     HTTP

	LogLevel string `default:"info"`
}

type Device struct {
	// Power selects the adapter for the power source: gti, mbus or p1ib. Empty disables it.
	Power string `default:"gti"`
	GTI   GTI
	Light Light
	Mbus  Mbus
	P1ib  P1ib
}

type GTI struct {
	ComPort  string
	Address  string // modbus tcp, used instead of ComPort when set
	UnitID   int    `default:"1"`
	Register int    `default:"86"`
	BaudRate int    `default:"9600"`
}

func (g GTI) Configured() bool {
	return g.ComPort != "" || g.Address != ""
}

type Light struct {
	ComPort  string
	BaudRate int `default:"9600"`
}

func (l Light) Configured() bool {
	return l.ComPort != ""
}

type Mbus struct {
	ComPort   string
	PrimaryID int
	Model     string `default:"garo-GNM3D-MBUS"`
}

func (m Mbus) Configured() bool {
	return m.ComPort != ""
}

type P1ib struct {
	Topic         string `default:"p1ib/sensor_state"`
	MaxAgeSeconds int    `default:"60"`
}

type Service struct {
	Ambient     Ambient
	OpenWeather OpenWeather
	Hive        Hive
}

type Ambient struct {
	BaseURL            string `default:"http://ambidata.io"`
	MinIntervalSeconds int    `default:"6"`
	Current            Channel
	Quarter            Channel
	Summary            Channel
}

type Channel struct {
	ID       int
	ReadKey  string
	WriteKey string
}

func (c Channel) Configured() bool {
	return c.ID != 0 && c.WriteKey != ""
}

func (c Channel) String() string {
	return fmt.Sprintf("channel %d", c.ID)
}

type OpenWeather struct {
	BaseURL string `default:"https://api.openweathermap.org"`
	CityID  string
	APIKey  string
	Lang    string `default:"en"`
}

func (o OpenWeather) Configured() bool {
	return o.CityID != "" && o.APIKey != ""
}

type Hive struct {
	BaseURL       string `default:"https://api2.hiveos.farm/api/v2"`
	FarmID        int
	WorkerID      int
	PersonalToken string
	TokenFile     string

	mutex sync.RWMutex
}

func (h *Hive) Configured() bool {
	return h.FarmID != 0 && h.WorkerID != 0
}

func (h *Hive) Token() string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.PersonalToken
}

func (h *Hive) SetToken(t string) {
	h.mutex.Lock()
	h.PersonalToken = strings.TrimSpace(t)
	h.mutex.Unlock()
}

// LoadToken reads the personal token from TokenFile unless one was given directly.
func (h *Hive) LoadToken() error {
	if h.TokenFile == "" || h.Token() != "" {
		return nil
	}
	if _, err := os.Stat(h.TokenFile); err == nil {
		b, err := os.ReadFile(h.TokenFile)
		if err != nil {
			return err
		}
		if len(b) == 0 {
			return nil // dont load empty token
		}

		h.SetToken(string(b))
	}
	return nil
}

type Control struct {
	Source      string `default:"power"`
	Threshold   float64
	Hysteresis  float64
	LowProfile  string
	HighProfile string
	// DryRun logs profile switches instead of calling Hive when no Hive API is configured.
	DryRun bool
}

type Cost struct {
	KWh float64 // price per kWh
}

type Schedule struct {
	LightInitialSeconds int    `default:"3"`
	LightSeconds        int    `default:"3"`
	PowerInitialSeconds int    `default:"3"`
	PowerSeconds        int    `default:"30"`
	Current             string `default:"0 */3 * * * *"`
	Quarter             string `default:"5 */15 * * * *"`
	Control             string `default:"10 */15 * * * *"`
	Summary             string `default:"0 1 0 * * *"`
}

type Retry struct {
	Attempts            int `default:"5"`
	AmbientDelaySeconds int `default:"300"`
	HiveDelaySeconds    int `default:"60"`
}

type MQTT struct {
	Listen string // embedded broker, for example :1883. Empty disables it.
	// Mirror publishes every aggregated point below this topic prefix.
	Mirror string
}

type Influx struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string `default:"gtimonitor"`
}

func (i Influx) Configured() bool {
	return i.URL != "" && i.Bucket != ""
}

type HTTP struct {
	Listen string
}

func Seconds(s int) time.Duration {
	return time.Duration(s) * time.Second
}

// Load reads defaults, the toml file named by GTIMONITOR_CONFIG, the environment and flags, in that order.
func Load(args []string) (*CliConfig, error) {
	loaders := []multiconfig.Loader{&multiconfig.TagLoader{}}
	if path := os.Getenv("GTIMONITOR_CONFIG"); path != "" {
		loaders = append(loaders, &multiconfig.TOMLLoader{Path: path})
	}
	loaders = append(loaders,
		&multiconfig.EnvironmentLoader{Prefix: "GTIMONITOR", CamelCase: true},
		&multiconfig.FlagLoader{Args: args, CamelCase: true},
	)

	c := &CliConfig{}
	err := multiconfig.MultiLoader(loaders...).Load(c)
	if err != nil {
		return nil, err
	}
	err = c.Service.Hive.LoadToken()
	if err != nil {
		return nil, fmt.Errorf("error loading hive token: %w", err)
	}
	return c, c.Validate()
}

// PowerDevice returns the configured power adapter type or empty if the power source is disabled.
func (c *CliConfig) PowerDevice() types.PowerDeviceType {
	switch types.PowerDeviceType(c.Device.Power) {
	case types.PowerDeviceGTI:
		if c.Device.GTI.Configured() {
			return types.PowerDeviceGTI
		}
	case types.PowerDeviceMbus:
		if c.Device.Mbus.Configured() {
			return types.PowerDeviceMbus
		}
	case types.PowerDeviceP1ib:
		if c.MQTT.Listen != "" {
			return types.PowerDeviceP1ib
		}
	}
	return ""
}

// SourceEnabled reports whether a sampler will run for s.
func (c *CliConfig) SourceEnabled(s types.Source) bool {
	switch s {
	case types.SourceLight:
		return c.Device.Light.Configured()
	case types.SourcePower:
		return c.PowerDevice() != ""
	}
	return false
}

// ControlEnabled reports whether the profile controller should be scheduled.
func (c *CliConfig) ControlEnabled() bool {
	return c.Service.Hive.Configured() || c.Control.DryRun
}

// Validate checks values that would make a configured feature misbehave.
// Missing optional blocks only disable their feature.
func (c *CliConfig) Validate() error {
	var errs []error

	switch types.PowerDeviceType(c.Device.Power) {
	case "", types.PowerDeviceGTI, types.PowerDeviceMbus, types.PowerDeviceP1ib:
	default:
		errs = append(errs, fmt.Errorf("unknown power device %q", c.Device.Power))
	}

	if c.ControlEnabled() {
		src := types.Source(c.Control.Source)
		if src != types.SourceLight && src != types.SourcePower {
			errs = append(errs, fmt.Errorf("unknown control source %q", c.Control.Source))
		} else if !c.SourceEnabled(src) {
			errs = append(errs, fmt.Errorf("control source %s has no device configured", src))
		}
		if c.Control.Threshold < 0 || c.Control.Hysteresis < 0 {
			errs = append(errs, fmt.Errorf("threshold and hysteresis must be >= 0"))
		}
		if c.Control.LowProfile == "" || c.Control.HighProfile == "" {
			errs = append(errs, fmt.Errorf("low and high profile names are required"))
		}
	}

	if c.Retry.Attempts < 1 {
		errs = append(errs, fmt.Errorf("retry attempts must be >= 1"))
	}
	if c.Schedule.LightSeconds <= 0 || c.Schedule.PowerSeconds <= 0 {
		errs = append(errs, fmt.Errorf("sample intervals must be > 0"))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConfiguration, errors.Join(errs...))
}
