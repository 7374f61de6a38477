package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/banshee-data/sort/internal/assignment"
)

// DefaultConfigPath is the path to the canonical tracker defaults file.
const DefaultConfigPath = "config/tracker.defaults.json"

// TuningConfig represents the root configuration for tracker tuning parameters.
// Every field is optional; the Get* accessors supply the default for any field
// left out of the JSON, so partial configs are safe.
type TuningConfig struct {
	// Lifecycle and association
	MaxAge       *int     `json:"max_age,omitempty"`
	IOUThreshold *float64 `json:"iou_threshold,omitempty"`
	MinHits      *int     `json:"min_hits,omitempty"`
	Solver       *string  `json:"solver,omitempty"`

	// Kalman initial covariance
	InitPosVar *float64 `json:"init_pos_var,omitempty"`
	InitVelVar *float64 `json:"init_vel_var,omitempty"`

	// Kalman process noise (Q diagonal)
	ProcessNoisePos     *float64 `json:"process_noise_pos,omitempty"`
	ProcessNoiseVel     *float64 `json:"process_noise_vel,omitempty"`
	ProcessNoiseSizeVel *float64 `json:"process_noise_size_vel,omitempty"`

	// Kalman measurement noise (R diagonal)
	MeasurementNoisePos  *float64 `json:"measurement_noise_pos,omitempty"`
	MeasurementNoiseSize *float64 `json:"measurement_noise_size,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated from
// the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	empty := EmptyTuningConfig()
	return &TuningConfig{
		MaxAge:               ptrInt(empty.GetMaxAge()),
		IOUThreshold:         ptrFloat64(empty.GetIOUThreshold()),
		MinHits:              ptrInt(empty.GetMinHits()),
		Solver:               ptrString(empty.GetSolver()),
		InitPosVar:           ptrFloat64(empty.GetInitPosVar()),
		InitVelVar:           ptrFloat64(empty.GetInitVelVar()),
		ProcessNoisePos:      ptrFloat64(empty.GetProcessNoisePos()),
		ProcessNoiseVel:      ptrFloat64(empty.GetProcessNoiseVel()),
		ProcessNoiseSizeVel:  ptrFloat64(empty.GetProcessNoiseSizeVel()),
		MeasurementNoisePos:  ptrFloat64(empty.GetMeasurementNoisePos()),
		MeasurementNoiseSize: ptrFloat64(empty.GetMeasurementNoiseSize()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MaxAge != nil && *c.MaxAge < 0 {
		return fmt.Errorf("max_age must be non-negative, got %d", *c.MaxAge)
	}

	if c.IOUThreshold != nil {
		v := *c.IOUThreshold
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("iou_threshold must be between 0 and 1, got %f", v)
		}
	}

	if c.MinHits != nil && *c.MinHits < 0 {
		return fmt.Errorf("min_hits must be non-negative, got %d", *c.MinHits)
	}

	if c.Solver != nil {
		if _, err := assignment.ByName(*c.Solver); err != nil {
			return fmt.Errorf("solver: %w", err)
		}
	}

	variances := []struct {
		name string
		v    *float64
	}{
		{"init_pos_var", c.InitPosVar},
		{"init_vel_var", c.InitVelVar},
		{"process_noise_pos", c.ProcessNoisePos},
		{"process_noise_vel", c.ProcessNoiseVel},
		{"process_noise_size_vel", c.ProcessNoiseSizeVel},
		{"measurement_noise_pos", c.MeasurementNoisePos},
		{"measurement_noise_size", c.MeasurementNoiseSize},
	}
	for _, f := range variances {
		if f.v == nil {
			continue
		}
		if math.IsNaN(*f.v) || math.IsInf(*f.v, 0) || *f.v <= 0 {
			return fmt.Errorf("%s must be a positive finite variance, got %f", f.name, *f.v)
		}
	}

	return nil
}

// GetMaxAge returns the max_age value or the default.
func (c *TuningConfig) GetMaxAge() int {
	if c.MaxAge == nil {
		return 1
	}
	return *c.MaxAge
}

// GetIOUThreshold returns the iou_threshold value or the default.
func (c *TuningConfig) GetIOUThreshold() float64 {
	if c.IOUThreshold == nil {
		return 0.3
	}
	return *c.IOUThreshold
}

// GetMinHits returns the min_hits value or the default.
func (c *TuningConfig) GetMinHits() int {
	if c.MinHits == nil {
		return 3
	}
	return *c.MinHits
}

// GetSolver returns the solver name or the default.
func (c *TuningConfig) GetSolver() string {
	if c.Solver == nil || *c.Solver == "" {
		return assignment.NameMunkres
	}
	return *c.Solver
}

// GetInitPosVar returns the init_pos_var value or the default.
func (c *TuningConfig) GetInitPosVar() float64 {
	if c.InitPosVar == nil {
		return 10
	}
	return *c.InitPosVar
}

// GetInitVelVar returns the init_vel_var value or the default.
// Initial velocities are unobservable, hence the large variance.
func (c *TuningConfig) GetInitVelVar() float64 {
	if c.InitVelVar == nil {
		return 10000
	}
	return *c.InitVelVar
}

// GetProcessNoisePos returns the process_noise_pos value or the default.
func (c *TuningConfig) GetProcessNoisePos() float64 {
	if c.ProcessNoisePos == nil {
		return 1
	}
	return *c.ProcessNoisePos
}

// GetProcessNoiseVel returns the process_noise_vel value or the default.
func (c *TuningConfig) GetProcessNoiseVel() float64 {
	if c.ProcessNoiseVel == nil {
		return 0.01
	}
	return *c.ProcessNoiseVel
}

// GetProcessNoiseSizeVel returns the process_noise_size_vel value or the default.
func (c *TuningConfig) GetProcessNoiseSizeVel() float64 {
	if c.ProcessNoiseSizeVel == nil {
		return 0.0001
	}
	return *c.ProcessNoiseSizeVel
}

// GetMeasurementNoisePos returns the measurement_noise_pos value or the default.
func (c *TuningConfig) GetMeasurementNoisePos() float64 {
	if c.MeasurementNoisePos == nil {
		return 1
	}
	return *c.MeasurementNoisePos
}

// GetMeasurementNoiseSize returns the measurement_noise_size value or the default.
func (c *TuningConfig) GetMeasurementNoiseSize() float64 {
	if c.MeasurementNoiseSize == nil {
		return 10
	}
	return *c.MeasurementNoiseSize
}
