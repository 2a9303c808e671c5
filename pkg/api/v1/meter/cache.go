package meter

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrNoData = errors.New("no meter data received yet")
	ErrStale  = errors.New("meter data is stale")
)

// Cache holds the latest pushed meter reading.
type Cache struct {
	data *Data
	sync.RWMutex
}

func (c *Cache) Get() *Data {
	c.RLock()
	defer c.RUnlock()
	return c.data
}

func (c *Cache) Set(d *Data) {
	c.Lock()
	c.data = d
	c.Unlock()
}

// Fresh returns the latest reading if it is younger than maxAge. maxAge 0 accepts any age.
func (c *Cache) Fresh(now time.Time, maxAge time.Duration) (*Data, error) {
	d := c.Get()
	if d == nil {
		return nil, ErrNoData
	}
	if maxAge > 0 && d.Age(now) > maxAge {
		return nil, ErrStale
	}
	return d, nil
}
