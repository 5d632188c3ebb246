package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ValentinKolb/sockdev/lib/bridge"
	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
)

// bridges holds the bridge of the most recently bound server per device name.
// The gauges are registered once per name and always read through this map.
var bridges = xsync.NewMapOf[string, *bridge.Bridge]()

// registerGauges exposes the bridge state of the device
func (s *DeviceServer) registerGauges() {
	device := s.config.DeviceName
	bridges.Store(device, s.bridge)

	metrics.GetOrCreateGauge(fmt.Sprintf(`sockdev_bridge_queue_length{device=%q}`, device), func() float64 {
		if b, ok := bridges.Load(device); ok {
			return float64(b.Len())
		}
		return 0
	})
	metrics.GetOrCreateGauge(fmt.Sprintf(`sockdev_bridge_waiting{device=%q}`, device), func() float64 {
		if b, ok := bridges.Load(device); ok {
			return float64(b.Waiting())
		}
		return 0
	})
}

// unregisterGauges detaches the bridge from the gauges, unless another server
// with the same device name took over
func (s *DeviceServer) unregisterGauges() {
	bridges.Compute(s.config.DeviceName, func(current *bridge.Bridge, loaded bool) (*bridge.Bridge, bool) {
		return current, current == s.bridge
	})
}

// serveMetrics runs the prometheus endpoint until ctx is done
func (s *DeviceServer) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	srv := &http.Server{
		Addr:              s.config.MetricsEndpoint,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	Logger.Infof("[%s] metrics available at http://%s/metrics", s.config.DeviceName, s.config.MetricsEndpoint)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		Logger.Errorf("[%s] metrics endpoint failed: %v", s.config.DeviceName, err)
	}
}
