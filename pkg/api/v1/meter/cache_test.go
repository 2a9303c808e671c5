package meter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheFresh(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := &Cache{}

	_, err := c.Fresh(now, time.Minute)
	assert.ErrorIs(t, err, ErrNoData)

	c.Set(&Data{Current_W: 4396, Time: now.Add(-30 * time.Second)})
	d, err := c.Fresh(now, time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, 4396.0, d.Current_W)

	_, err = c.Fresh(now.Add(time.Minute), time.Minute)
	assert.ErrorIs(t, err, ErrStale)

	_, err = c.Fresh(now.Add(time.Hour), 0)
	assert.NoError(t, err)
}
