package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nergy-se/gtimonitor/pkg/api/v1/types"
	"github.com/nergy-se/gtimonitor/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	s := New(":0", func() Status {
		return Status{
			Profile: "high",
			Pending: map[string]map[types.Source]int{"current": {types.SourcePower: 4}},
			Alarms:  []string{"light"},
		}
	})
	h := s.Handler()

	var tests = []struct {
		name     string
		method   string
		path     string
		code     int
		contains string
	}{
		{name: "health", method: "GET", path: "/health", code: 200, contains: "ok"},
		{name: "metrics", method: "GET", path: "/metrics", code: 200, contains: "gtimonitor_samples_total"},
		{name: "wrong method", method: "POST", path: "/health", code: 405},
		{name: "not found", method: "GET", path: "/nope", code: 404},
	}
	metrics.Samples.WithLabelValues("power").Inc()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}
}

func TestStatus(t *testing.T) {
	s := New(":0", func() Status {
		return Status{
			Profile: "low",
			Pending: map[string]map[types.Source]int{"current": {types.SourcePower: 4, types.SourceLight: 60}},
		}
	})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, 200, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	got := Status{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "low", got.Profile)
	assert.Equal(t, 60, got.Pending["current"][types.SourceLight])
}

func TestShutdownClosesAccessLog(t *testing.T) {
	s := New("127.0.0.1:18081", func() Status { return Status{} })
	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	s.Start(ctx, wg)

	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:18081/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == 200
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	wg.Wait()
	_, err := s.accessLog.Write([]byte("late\n"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}
