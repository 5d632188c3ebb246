package client

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/sockdev/lib/call"
	"github.com/ValentinKolb/sockdev/lib/device"
	"github.com/ValentinKolb/sockdev/lib/device/sim"
)

// NewPowerSupplyProxy creates a sim.IPowerSupply whose methods run through caller.
// With a DeviceClient as caller the supply is remote, with a bridge it runs
// in-process; either way it is used like the local driver.
func NewPowerSupplyProxy(deviceName string, caller call.ICaller) *PowerSupplyProxy {
	return &PowerSupplyProxy{
		wrapper: call.NewWrapper(deviceName, caller),
		ctx:     context.Background(),
	}
}

// PowerSupplyProxy implements sim.IPowerSupply on top of a call.Wrapper
type PowerSupplyProxy struct {
	wrapper *call.Wrapper
	ctx     context.Context
}

// WithContext returns a shallow copy of the proxy whose calls use ctx.
// Cancelling ctx aborts a waiting call.
func (p *PowerSupplyProxy) WithContext(ctx context.Context) *PowerSupplyProxy {
	if ctx == nil {
		panic("nil context")
	}
	p2 := *p
	p2.ctx = ctx
	return &p2
}

var _ sim.IPowerSupply = (*PowerSupplyProxy)(nil)

// --------------------------------------------------------------------------
// Interface Methods (docu see sim.IPowerSupply)
// --------------------------------------------------------------------------

func (p *PowerSupplyProxy) ReadValue() ([]float64, error) {
	v, err := p.invoke("ReadValue")
	if err != nil {
		return nil, err
	}
	return toFloats(v)
}

func (p *PowerSupplyProxy) SetVoltage(volts float64) error {
	_, err := p.invoke("SetVoltage", volts)
	return err
}

func (p *PowerSupplyProxy) GetVoltage() (float64, error) {
	v, err := p.invoke("GetVoltage")
	if err != nil {
		return 0, err
	}
	f, ok := device.ToFloat(v)
	if !ok {
		return 0, fmt.Errorf("GetVoltage: unexpected value %v", v)
	}
	return f, nil
}

func (p *PowerSupplyProxy) SetOutput(on bool) error {
	_, err := p.invoke("SetOutput", on)
	return err
}

func (p *PowerSupplyProxy) Identify() (string, error) {
	v, err := p.invoke("Identify")
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("Identify: unexpected value %v", v)
	}
	return s, nil
}

func (p *PowerSupplyProxy) GetWarnings() ([]string, error) {
	v, err := p.invoke("GetWarnings")
	if err != nil {
		return nil, err
	}
	switch values := v.(type) {
	case []string:
		return values, nil
	case []any:
		warnings := make([]string, 0, len(values))
		for _, item := range values {
			warnings = append(warnings, fmt.Sprint(item))
		}
		return warnings, nil
	default:
		return nil, fmt.Errorf("GetWarnings: unexpected value %v", v)
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// invoke calls method and turns the Failure sentinel into call.ErrFailed
func (p *PowerSupplyProxy) invoke(method string, args ...any) (any, error) {
	v, err := p.wrapper.Invoke(p.ctx, method, args...)
	if err != nil {
		return nil, err
	}
	if call.IsFailure(v) {
		return nil, fmt.Errorf("%w: %s.%s", call.ErrFailed, p.wrapper.Device(), method)
	}
	return v, nil
}

func toFloats(v any) ([]float64, error) {
	switch values := v.(type) {
	case []float64:
		return values, nil
	case []any:
		floats := make([]float64, len(values))
		for i, item := range values {
			f, ok := device.ToFloat(item)
			if !ok {
				return nil, fmt.Errorf("unexpected reading element %v", item)
			}
			floats[i] = f
		}
		return floats, nil
	default:
		return nil, fmt.Errorf("unexpected reading %v", v)
	}
}
