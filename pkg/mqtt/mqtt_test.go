package mqtt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nergy-se/gtimonitor/pkg/api/v1/meter"
	"github.com/nergy-se/gtimonitor/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeP1ib(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	defer func() {
		cancel()
		wg.Wait()
	}()

	b, err := Start(ctx, wg, "127.0.0.1:18831")
	require.NoError(t, err)

	cache := &meter.Cache{}
	err = b.SubscribeP1ib("p1ib/sensor_state", cache)
	require.NoError(t, err)

	err = b.Publish("p1ib/sensor_state", []byte(`{
  "p1ib_active_power_plus_q1_q4": 0,
  "p1ib_active_power_minus_q2_q3": 1.25,
  "p1ib_hourly_active_export_q2_q3": 12925.573,
  "p1ib_voltage_l1": 233.6
}`))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return cache.Get() != nil
	}, time.Second, 10*time.Millisecond)

	d := cache.Get()
	assert.Equal(t, 1250.0, d.Current_W)
	assert.Equal(t, 233.6, d.L1_V)
	assert.Equal(t, "p1ib", d.Model)
	assert.WithinDuration(t, time.Now(), d.Time, time.Second)
}

func TestAsMeterData(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d := P1ib{P1IbActivePowerMinusQ2Q3: 4.396, P1IbCurrentL3: 11.8}.AsMeterData("p1ib/sensor_state", ts)
	assert.InDelta(t, 4396.0, d.Current_W, 0.0001)
	assert.Equal(t, 11.8, d.L3_A)
	assert.Equal(t, ts, d.Time)
}

func TestMirror(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	defer func() {
		cancel()
		wg.Wait()
	}()

	b, err := Start(ctx, wg, "127.0.0.1:18832")
	require.NoError(t, err)

	received := make(chan []byte, 1)
	err = b.Subscribe("gtimonitor/#", func(topic string, payload []byte) {
		assert.Equal(t, "gtimonitor/current", topic)
		received <- payload
	})
	require.NoError(t, err)

	m := NewMirror(b, "gtimonitor")
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	err = m.Mirror(ctx, "current", ts, &state.Report{Power: state.Pointer(250.0), Profile: state.Pointer(9.0)})
	require.NoError(t, err)

	select {
	case payload := <-received:
		assert.JSONEq(t, `{"time":"2024-05-01T12:00:00Z","power":250,"profile":9}`, string(payload))
	case <-time.After(time.Second):
		t.Fatal("no message published")
	}
}
