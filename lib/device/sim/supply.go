package sim

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ValentinKolb/sockdev/lib/device"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("device")

// ErrOutOfRange is returned for setpoints outside the supply limits
var ErrOutOfRange = errors.New("setpoint out of range")

// IPowerSupply is the capability interface of a power supply. It is implemented by
// the local simulated driver and by the remote proxy in the rpc client package, so
// code written against it does not care where the device lives.
type IPowerSupply interface {
	// ReadValue returns [timestamp, voltage, current, output]
	ReadValue() ([]float64, error)
	SetVoltage(volts float64) error
	GetVoltage() (float64, error)
	SetOutput(on bool) error
	Identify() (string, error)
	GetWarnings() ([]string, error)
}

// PowerSupply is a simulated bench power supply driving a resistive load.
// It is not safe for concurrent use, in a server only the executor calls it.
type PowerSupply struct {
	profile  Profile
	voltage  float64
	output   bool
	warnings []string
	closed   bool
	now      func() time.Time
	table    *device.Table
}

// New creates a simulated power supply
func New(profile Profile) (*PowerSupply, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	p := &PowerSupply{
		profile: profile,
		voltage: profile.InitialVolts,
		output:  profile.OutputOn,
		now:     time.Now,
	}
	p.table = p.buildTable()
	log.Infof("[%s] simulated power supply %s (serial %s) ready", profile.Name, profile.Model, profile.Serial)
	return p, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see device.IDriver)
// --------------------------------------------------------------------------

func (p *PowerSupply) Name() string {
	return p.profile.Name
}

func (p *PowerSupply) Verification() string {
	return fmt.Sprintf("%s,%s", p.profile.Model, p.profile.Serial)
}

func (p *PowerSupply) Info() map[string]any {
	return map[string]any{
		"name":        p.profile.Name,
		"model":       p.profile.Model,
		"serial":      p.profile.Serial,
		"max_voltage": p.profile.MaxVoltage,
		"columns":     []string{"time", "voltage", "current", "output"},
		"units":       []string{"s", "V", "A", ""},
	}
}

func (p *PowerSupply) Methods() *device.Table {
	return p.table
}

func (p *PowerSupply) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.output = false
	log.Infof("[%s] output disabled, device closed", p.profile.Name)
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IPowerSupply)
// --------------------------------------------------------------------------

func (p *PowerSupply) ReadValue() ([]float64, error) {
	if err := p.checkOpen(); err != nil {
		return nil, err
	}
	v := p.measuredVoltage()
	out := 0.0
	if p.output {
		out = 1
	}
	ts := device.UnixSeconds(p.now()) - p.profile.TimeOffset
	return []float64{ts, v, v / p.profile.LoadOhm, out}, nil
}

func (p *PowerSupply) SetVoltage(volts float64) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if volts < 0 || volts > p.profile.MaxVoltage {
		p.warn(fmt.Sprintf("rejected setpoint %g V", volts))
		return fmt.Errorf("%w: %g V not in [0, %g]", ErrOutOfRange, volts, p.profile.MaxVoltage)
	}
	p.voltage = volts
	return nil
}

func (p *PowerSupply) GetVoltage() (float64, error) {
	if err := p.checkOpen(); err != nil {
		return 0, err
	}
	return p.voltage, nil
}

func (p *PowerSupply) SetOutput(on bool) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	p.output = on
	return nil
}

func (p *PowerSupply) Identify() (string, error) {
	if err := p.checkOpen(); err != nil {
		return "", err
	}
	return p.Verification(), nil
}

// GetWarnings returns and clears the collected warnings
func (p *PowerSupply) GetWarnings() ([]string, error) {
	warnings := p.warnings
	p.warnings = nil
	if warnings == nil {
		warnings = []string{}
	}
	return warnings, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (p *PowerSupply) checkOpen() error {
	if p.closed {
		return fmt.Errorf("device %s is closed", p.profile.Name)
	}
	return nil
}

func (p *PowerSupply) measuredVoltage() float64 {
	if !p.output {
		return 0
	}
	if p.profile.NoiseVolt == 0 {
		return p.voltage
	}
	return p.voltage + (rand.Float64()*2-1)*p.profile.NoiseVolt
}

func (p *PowerSupply) warn(msg string) {
	p.warnings = append(p.warnings, msg)
	log.Warningf("[%s] %s", p.profile.Name, msg)
}

// buildTable registers the remotely callable methods
func (p *PowerSupply) buildTable() *device.Table {
	return device.NewTable().
		Register("ReadValue", func(device.Call) (any, error) {
			values, err := p.ReadValue()
			if err != nil {
				return nil, err
			}
			return values, nil
		}).
		Register("SetVoltage", func(call device.Call) (any, error) {
			v, err := call.Float(0, "volts")
			if err != nil {
				return nil, err
			}
			return nil, p.SetVoltage(v)
		}).
		Register("GetVoltage", func(device.Call) (any, error) {
			return p.GetVoltage()
		}).
		Register("SetOutput", func(call device.Call) (any, error) {
			on, err := call.Bool(0, "on")
			if err != nil {
				return nil, err
			}
			return nil, p.SetOutput(on)
		}).
		Register("Identify", func(device.Call) (any, error) {
			return p.Identify()
		}).
		Register("GetWarnings", func(device.Call) (any, error) {
			return p.GetWarnings()
		}).
		Register("Fail", func(call device.Call) (any, error) {
			msg, err := call.Text(0, "message")
			if err != nil {
				msg = "simulated failure"
			}
			return nil, errors.New(msg)
		}).
		Register("Sleep", func(call device.Call) (any, error) {
			sec, err := call.Float(0, "seconds")
			if err != nil {
				return nil, err
			}
			time.Sleep(time.Duration(sec * float64(time.Second)))
			return sec, nil
		})
}
