package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/sockdev/lib/bridge"
	"github.com/ValentinKolb/sockdev/lib/device"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("executor")

// Executor is the only goroutine that touches a device driver. It drains the
// bridge in FIFO order, runs each command through the driver's method table and
// publishes the result. Execution errors and panics become "Exception: <msg>"
// results, so one failing command never stops the loop.
type Executor struct {
	bridge *bridge.Bridge
	driver device.IDriver
	now    func() time.Time

	executed   *metrics.Counter
	exceptions *metrics.Counter
	dropped    *metrics.Counter
	duration   *metrics.Histogram
	waited     *metrics.Histogram
}

// New creates an executor for driver, fed by b
func New(b *bridge.Bridge, driver device.IDriver) *Executor {
	name := driver.Name()
	return &Executor{
		bridge:     b,
		driver:     driver,
		now:        time.Now,
		executed:   metrics.GetOrCreateCounter(fmt.Sprintf(`sockdev_executor_commands_total{device=%q}`, name)),
		exceptions: metrics.GetOrCreateCounter(fmt.Sprintf(`sockdev_executor_exceptions_total{device=%q}`, name)),
		dropped:    metrics.GetOrCreateCounter(fmt.Sprintf(`sockdev_executor_dropped_results_total{device=%q}`, name)),
		duration:   metrics.GetOrCreateHistogram(fmt.Sprintf(`sockdev_executor_duration_seconds{device=%q}`, name)),
		waited:     metrics.GetOrCreateHistogram(fmt.Sprintf(`sockdev_executor_queue_wait_seconds{device=%q}`, name)),
	}
}

// Run executes queued commands until ctx is done or the bridge is closed.
// It blocks on the bridge channel, an idle executor costs nothing.
func (e *Executor) Run(ctx context.Context) error {
	log.Infof("[%s] executor started", e.driver.Name())
	defer log.Infof("[%s] executor stopped", e.driver.Name())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-e.bridge.Recv():
			if !ok {
				return nil
			}
			e.waited.UpdateDuration(env.Enqueued)

			r := e.Execute(env.Text, env.Command)
			if !e.bridge.Publish(env.ID, r) {
				e.dropped.Inc()
			}
		}
	}
}

// Execute runs a single command against the driver and converts the outcome
// into a result. It must only be called from the executor goroutine.
func (e *Executor) Execute(text string, cmd device.Command) (r device.Result) {
	start := e.now()
	defer func() {
		e.executed.Inc()
		e.duration.UpdateDuration(start)
	}()

	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("[%s] panic while executing %s: %v", e.driver.Name(), text, rec)
			e.exceptions.Inc()
			r = device.NewExceptionResult(e.now(), text, rec)
		}
	}()

	value, err := e.driver.Methods().Invoke(cmd)
	if err != nil {
		log.Warningf("[%s] %s failed: %v", e.driver.Name(), text, err)
		e.exceptions.Inc()
		return device.NewExceptionResult(e.now(), text, err)
	}

	log.Debugf("[%s] %s -> %v", e.driver.Name(), text, value)
	return device.NewResult(e.now(), text, value)
}
