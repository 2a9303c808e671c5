package device

import (
	"errors"
	"fmt"

	"github.com/nergy-se/gtimonitor/pkg/api/v1/config"
	"github.com/nergy-se/gtimonitor/pkg/api/v1/meter"
	"github.com/nergy-se/gtimonitor/pkg/api/v1/types"
)

var ErrRead = errors.New("device read failed")

// Adapter reads one scalar from a device. Implementations reconnect on their own
// after transport errors; callers just keep calling Read.
type Adapter interface {
	Connect() error
	Read() (float64, error)
	Close() error
}

func readError(name string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrRead, name, err)
}

// NewPower returns the adapter selected by c.Device.Power. cache is only used by p1ib.
func NewPower(c *config.CliConfig, cache *meter.Cache) (Adapter, error) {
	switch c.PowerDevice() {
	case types.PowerDeviceGTI:
		return NewGTI(c.Device.GTI), nil
	case types.PowerDeviceMbus:
		return NewMbus(c.Device.Mbus), nil
	case types.PowerDeviceP1ib:
		return NewP1ib(cache, config.Seconds(c.Device.P1ib.MaxAgeSeconds)), nil
	}
	return nil, fmt.Errorf("%w: no power device configured", config.ErrConfiguration)
}
