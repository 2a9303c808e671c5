package summary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nergy-se/gtimonitor/pkg/ambient"
	"github.com/nergy-se/gtimonitor/pkg/api/v1/config"
	"github.com/nergy-se/gtimonitor/pkg/retry"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var ErrFetchExhausted = errors.New("daily summary fetch failed")

// powerField is the index of the power value (d2) in stored readings.
const powerField = 1

type Store interface {
	ReadDay(ctx context.Context, ch config.Channel, date time.Time) ([]ambient.Reading, error)
	Send(ctx context.Context, ch config.Channel, ts time.Time, fields []*float64, comment string) error
}

// Job publishes yesterday's produced energy and its value as one point.
type Job struct {
	store  Store
	source config.Channel
	target config.Channel
	price  decimal.Decimal
	retry  *retry.Executor

	now func() time.Time
	loc *time.Location
}

func New(store Store, source, target config.Channel, cost config.Cost, r *retry.Executor) *Job {
	return &Job{
		store:  store,
		source: source,
		target: target,
		price:  decimal.NewFromFloat(cost.KWh),
		retry:  r,
		now:    time.Now,
		loc:    time.Local,
	}
}

// Energy averages the power readings of each local hour and sums the hourly means,
// giving Wh. Readings without power are ignored.
func Energy(readings []ambient.Reading, loc *time.Location) (wh float64, hours int) {
	type acc struct {
		sum   float64
		count int
	}
	byHour := make(map[int]*acc)
	for _, r := range readings {
		p := r.Fields[powerField]
		if p == nil {
			continue
		}
		h := r.Time.In(loc).Hour()
		a, ok := byHour[h]
		if !ok {
			a = &acc{}
			byHour[h] = a
		}
		a.sum += *p
		a.count++
	}
	for _, a := range byHour {
		wh += a.sum / float64(a.count)
	}
	return wh, len(byHour)
}

// Cost is wh at price per kWh, rounded to 2 decimals.
func Cost(wh float64, price decimal.Decimal) decimal.Decimal {
	return decimal.NewFromFloat(wh).Mul(price).Div(decimal.NewFromInt(1000)).Round(2)
}

// Run fetches and publishes with separate retries so a failed fetch is never retried as a publish.
func (j *Job) Run(ctx context.Context) error {
	now := j.now().In(j.loc)
	day := time.Date(now.Year(), now.Month(), now.Day()-1, 0, 0, 0, 0, j.loc)
	logger := logrus.WithField("day", day.Format("2006-01-02"))

	var readings []ambient.Reading
	err := j.retry.Do(ctx, "read day from "+j.source.String(), func(ctx context.Context) error {
		var err error
		readings, err = j.store.ReadDay(ctx, j.source, day)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFetchExhausted, day.Format("2006-01-02"), err)
	}

	wh, hours := Energy(readings, j.loc)
	cost := Cost(wh, j.price)
	if hours == 0 {
		logger.Warn("summary: no power readings for the day")
	}
	c, _ := cost.Float64()
	fields := []*float64{&wh, &c}
	logger.Infof("summary: %.1f Wh over %d hours, cost %s", wh, hours, cost.StringFixed(2))

	err = j.retry.Do(ctx, "publish summary to "+j.target.String(), func(ctx context.Context) error {
		return j.store.Send(ctx, j.target, day, fields, "")
	})
	if err != nil {
		return fmt.Errorf("error publishing summary for %s: %w", day.Format("2006-01-02"), err)
	}
	return nil
}
