package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fortnoxab/gohtmock"
	"github.com/nergy-se/gtimonitor/pkg/api/v1/config"
	"github.com/nergy-se/gtimonitor/pkg/app"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbrandon/mbserver"
)

func baseConfig() *config.CliConfig {
	return &config.CliConfig{
		Schedule: config.Schedule{
			LightInitialSeconds: 1,
			LightSeconds:        1,
			PowerInitialSeconds: 0,
			PowerSeconds:        1,
			Current:             "* * * * * *",
			Quarter:             "* * * * * *",
			Control:             "*/2 * * * * *",
			Summary:             "* * * * * *",
		},
		Retry: config.Retry{
			Attempts:            2,
			AmbientDelaySeconds: 1,
			HiveDelaySeconds:    1,
		},
		LogLevel: "debug",
	}
}

func TestSampleSendAndSwitchProfile(t *testing.T) {
	logrus.SetLevel(logrus.DebugLevel)

	serv := mbserver.NewServer()
	serv.HoldingRegisters[86] = 5000 // 500.0 W
	err := serv.ListenTCP("127.0.0.1:1502")
	require.NoError(t, err)
	defer serv.Close()

	weather := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		w.Write([]byte(`{"weather":[{"description":"clear sky"}],"main":{"temp":18.5,"pressure":1013,"humidity":40},"clouds":{"all":0}}`))
	}))
	defer weather.Close()

	mock := gohtmock.New()
	var mu sync.Mutex
	var points []string
	mock.Mock("/api/v2/channels/1/dataarray", "", func(r *http.Request) int {
		b, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		mu.Lock()
		points = append(points, string(b))
		mu.Unlock()
		return 200
	}).SetMethod("POST")
	mock.Mock("/farms/1/oc", `{"data":[{"id":11,"name":"eco"},{"id":12,"name":"full"}]}`)
	switched := make(chan struct{})
	once := &sync.Once{}
	mock.Mock("/farms/1/workers/2", "", func(r *http.Request) int {
		b, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"oc_id":12,"oc_apply_mode":"replace"}`, string(b))
		assert.Equal(t, "Bearer mysecrettoken", r.Header.Get("Authorization"))
		once.Do(func() { close(switched) })
		return 200
	}).SetMethod("PATCH")

	c := baseConfig()
	c.Device = config.Device{
		Power: "gti",
		GTI:   config.GTI{Address: "127.0.0.1:1502", UnitID: 1, Register: 86},
	}
	c.Service = config.Service{
		Ambient: config.Ambient{
			BaseURL: mock.URL(),
			Current: config.Channel{ID: 1, WriteKey: "wk"},
		},
		OpenWeather: config.OpenWeather{BaseURL: weather.URL, CityID: "1850147", APIKey: "key", Lang: "en"},
		Hive: config.Hive{
			BaseURL:       mock.URL(),
			FarmID:        1,
			WorkerID:      2,
			PersonalToken: "mysecrettoken",
		},
	}
	c.Control = config.Control{Source: "power", Threshold: 100, Hysteresis: 10, LowProfile: "eco", HighProfile: "full"}
	c.HTTP = config.HTTP{Listen: "127.0.0.1:18080"}
	require.NoError(t, c.Validate())

	a := app.New(c)
	ctx, cancel := context.WithCancel(context.TODO())
	defer func() {
		cancel()
		a.Wait()
		a.Close()
	}()
	err = a.Start(ctx)
	require.NoError(t, err)

	select {
	case <-switched:
	case <-time.After(10 * time.Second):
		t.Fatal("profile was never switched")
	}

	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:18080/status")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		st := map[string]interface{}{}
		if json.NewDecoder(resp.Body).Decode(&st) != nil {
			return false
		}
		return st["profile"] == "high"
	}, 3*time.Second, 100*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, points)
	assert.Contains(t, points[0], `"writeKey":"wk"`)
	assert.Contains(t, points[0], `"d2":500`)
	assert.Contains(t, points[0], `"d3":18.5`)
	assert.Contains(t, points[0], `"cmnt":"clear sky"`)
	for _, p := range points[1:] {
		assert.NotContains(t, p, `"cmnt"`)
	}
	mock.AssertMocksCalled(t)
}

func TestDailySummary(t *testing.T) {
	logrus.SetLevel(logrus.DebugLevel)

	yesterday := time.Now().AddDate(0, 0, -1)
	day := time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 0, 0, 0, 0, time.Local)

	published := make(chan string, 1)
	ambient := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "GET" && r.URL.Path == "/api/v2/channels/1/data":
			assert.Equal(t, "rk", r.URL.Query().Get("readKey"))
			assert.Equal(t, day.Format("2006-01-02"), r.URL.Query().Get("date"))
			readings := []map[string]interface{}{
				{"created": day.Add(10 * time.Hour).UTC().Format(time.RFC3339Nano), "d2": 1000.0},
				{"created": day.Add(10*time.Hour + 30*time.Minute).UTC().Format(time.RFC3339Nano), "d2": 3000.0},
				{"created": day.Add(11 * time.Hour).UTC().Format(time.RFC3339Nano), "d2": 500.0},
				{"created": day.Add(12 * time.Hour).UTC().Format(time.RFC3339Nano), "d1": 200.0},
			}
			assert.NoError(t, json.NewEncoder(w).Encode(readings))
		case r.Method == "POST" && r.URL.Path == "/api/v2/channels/2/dataarray":
			b, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			select {
			case published <- string(b):
			default:
			}
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ambient.Close()

	c := baseConfig()
	c.Service.Ambient = config.Ambient{
		BaseURL: ambient.URL,
		Current: config.Channel{ID: 1, ReadKey: "rk", WriteKey: "wk1"},
		Summary: config.Channel{ID: 2, WriteKey: "wk2"},
	}
	c.Cost = config.Cost{KWh: 25}
	require.NoError(t, c.Validate())

	a := app.New(c)
	ctx, cancel := context.WithCancel(context.TODO())
	defer func() {
		cancel()
		a.Wait()
		a.Close()
	}()
	require.NoError(t, a.Start(ctx))

	var body string
	select {
	case body = <-published:
	case <-time.After(5 * time.Second):
		t.Fatal("summary was never published")
	}

	// hour 10 averages 2000, hour 11 is 500
	assert.Contains(t, body, `"writeKey":"wk2"`)
	assert.Contains(t, body, `"d1":2500`)
	assert.Contains(t, body, `"d2":62.5`)
	assert.Contains(t, body, `"created":"`+day.UTC().Format("2006-01-02T15:04:05")+`"`)
	assert.False(t, strings.Contains(body, `"d3"`))
}
