package sim

import (
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/sockdev/lib/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSupply(t *testing.T) *PowerSupply {
	t.Helper()
	p, err := New(DefaultProfile())
	require.NoError(t, err)
	p.now = func() time.Time { return time.Unix(100, 0) }
	return p
}

func TestPowerSupply(t *testing.T) {
	p := newTestSupply(t)

	require.NoError(t, p.SetVoltage(5))
	v, err := p.GetVoltage()
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)

	// output off reads zero
	values, err := p.ReadValue()
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 0, 0, 0}, values)

	require.NoError(t, p.SetOutput(true))
	values, err = p.ReadValue()
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 5, 0.05, 1}, values)

	err = p.SetVoltage(31)
	assert.True(t, errors.Is(err, ErrOutOfRange))

	warnings, err := p.GetWarnings()
	require.NoError(t, err)
	assert.Len(t, warnings, 1)

	warnings, err = p.GetWarnings()
	require.NoError(t, err)
	assert.Empty(t, warnings)

	id, err := p.Identify()
	require.NoError(t, err)
	assert.Equal(t, "SIM-PSU-30,0001", id)

	require.NoError(t, p.Close())
	_, err = p.GetVoltage()
	assert.Error(t, err)
}

func TestPowerSupplyMethodTable(t *testing.T) {
	p := newTestSupply(t)
	table := p.Methods()

	_, err := table.Invoke(device.MustParseCommand("SetVoltage(12)"))
	require.NoError(t, err)
	_, err = table.Invoke(device.MustParseCommand("SetOutput(on=True)"))
	require.NoError(t, err)

	v, err := table.Invoke(device.MustParseCommand("GetVoltage()"))
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)

	v, err = table.Invoke(device.MustParseCommand("ReadValue()"))
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 12, 0.12, 1}, v)

	_, err = table.Invoke(device.MustParseCommand("Fail('overheated')"))
	assert.EqualError(t, err, "overheated")

	_, err = table.Invoke(device.MustParseCommand("SetVoltage('high')"))
	assert.True(t, errors.Is(err, device.ErrArgument))

	v, err = table.Invoke(device.MustParseCommand("Sleep(0.001)"))
	require.NoError(t, err)
	assert.Equal(t, 0.001, v)
}

func TestPowerSupplyImplementsInterfaces(t *testing.T) {
	var _ device.IDriver = (*PowerSupply)(nil)
	var _ IPowerSupply = (*PowerSupply)(nil)
}

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile([]byte("name: lab\nmax_voltage: 12\ninitial_voltage: 3.3\n"))
	require.NoError(t, err)
	assert.Equal(t, "lab", p.Name)
	assert.Equal(t, 12.0, p.MaxVoltage)
	assert.Equal(t, 3.3, p.InitialVolts)
	assert.Equal(t, 100.0, p.LoadOhm, "default kept")

	_, err = ParseProfile([]byte("max_voltage: -1\n"))
	assert.Error(t, err)

	_, err = ParseProfile([]byte("initial_voltage: 50\n"))
	assert.Error(t, err)

	_, err = ParseProfile([]byte("name: [unclosed\n"))
	assert.Error(t, err)
}
