package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile describes a simulated power supply
type Profile struct {
	Name         string  `yaml:"name"`
	Model        string  `yaml:"model"`
	Serial       string  `yaml:"serial"`
	MaxVoltage   float64 `yaml:"max_voltage"`
	LoadOhm      float64 `yaml:"load_ohm"`
	NoiseVolt    float64 `yaml:"noise_volt"`
	TimeOffset   float64 `yaml:"time_offset"`
	InitialVolts float64 `yaml:"initial_voltage"`
	OutputOn     bool    `yaml:"output_on"`
}

// DefaultProfile returns the profile used when no file is given
func DefaultProfile() Profile {
	return Profile{
		Name:       "psu",
		Model:      "SIM-PSU-30",
		Serial:     "0001",
		MaxVoltage: 30,
		LoadOhm:    100,
	}
}

// LoadProfile reads a yaml profile; missing fields keep their defaults
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes a yaml profile on top of DefaultProfile
func ParseProfile(data []byte) (Profile, error) {
	p := DefaultProfile()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate checks the profile values
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile: name must not be empty")
	}
	if p.MaxVoltage <= 0 {
		return fmt.Errorf("profile: max_voltage must be positive, got %v", p.MaxVoltage)
	}
	if p.LoadOhm <= 0 {
		return fmt.Errorf("profile: load_ohm must be positive, got %v", p.LoadOhm)
	}
	if p.InitialVolts < 0 || p.InitialVolts > p.MaxVoltage {
		return fmt.Errorf("profile: initial_voltage %v out of range [0, %v]", p.InitialVolts, p.MaxVoltage)
	}
	return nil
}
