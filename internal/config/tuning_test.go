package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/sort/internal/assignment"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.MaxAge == nil || *cfg.MaxAge != 1 {
		t.Errorf("Expected MaxAge 1, got %v", cfg.MaxAge)
	}
	if cfg.IOUThreshold == nil || *cfg.IOUThreshold != 0.3 {
		t.Errorf("Expected IOUThreshold 0.3, got %v", cfg.IOUThreshold)
	}
	if cfg.Solver == nil || *cfg.Solver != assignment.NameMunkres {
		t.Errorf("Expected Solver %q, got %v", assignment.NameMunkres, cfg.Solver)
	}

	if cfg.GetMinHits() != 3 {
		t.Errorf("GetMinHits() = %d, want 3", cfg.GetMinHits())
	}
	if cfg.GetInitVelVar() != 10000 {
		t.Errorf("GetInitVelVar() = %f, want 10000", cfg.GetInitVelVar())
	}
	if cfg.GetMeasurementNoiseSize() != 10 {
		t.Errorf("GetMeasurementNoiseSize() = %f, want 10", cfg.GetMeasurementNoiseSize())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestEmptyTuningConfigDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()
	def := DefaultTuningConfig()

	if cfg.GetMaxAge() != *def.MaxAge {
		t.Errorf("GetMaxAge() = %d, want %d", cfg.GetMaxAge(), *def.MaxAge)
	}
	if cfg.GetProcessNoiseSizeVel() != *def.ProcessNoiseSizeVel {
		t.Errorf("GetProcessNoiseSizeVel() = %f, want %f", cfg.GetProcessNoiseSizeVel(), *def.ProcessNoiseSizeVel)
	}
	empty := ""
	cfg.Solver = &empty
	if cfg.GetSolver() != assignment.NameMunkres {
		t.Errorf("empty solver should fall back to %q, got %q", assignment.NameMunkres, cfg.GetSolver())
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "max_age": 5,
  "iou_threshold": 0.5,
  "solver": "go-hungarian",
  "measurement_noise_size": 4
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetMaxAge() != 5 {
		t.Errorf("Expected MaxAge 5, got %d", cfg.GetMaxAge())
	}
	if cfg.GetIOUThreshold() != 0.5 {
		t.Errorf("Expected IOUThreshold 0.5, got %f", cfg.GetIOUThreshold())
	}
	if cfg.GetSolver() != assignment.NameGoHungarian {
		t.Errorf("Expected Solver %q, got %q", assignment.NameGoHungarian, cfg.GetSolver())
	}
	if cfg.GetMeasurementNoiseSize() != 4 {
		t.Errorf("Expected MeasurementNoiseSize 4, got %f", cfg.GetMeasurementNoiseSize())
	}
	// Omitted fields keep their defaults.
	if cfg.GetMinHits() != 3 {
		t.Errorf("Expected default MinHits 3, got %d", cfg.GetMinHits())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigWrongExtension(t *testing.T) {
	_, err := LoadTuningConfig("/tmp/config.yaml")
	if err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "max_age": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestLoadTuningConfigFailsValidation(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad_values.json")

	if err := os.WriteFile(configPath, []byte(`{"iou_threshold": 2}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	if _, err := LoadTuningConfig(configPath); err == nil {
		t.Error("Expected validation error, got nil")
	}
}

func TestLoadDefaultsFile(t *testing.T) {
	cfg, err := LoadTuningConfig(filepath.Join("..", "..", DefaultConfigPath))
	if err != nil {
		t.Fatalf("failed to load %s: %v", DefaultConfigPath, err)
	}
	def := DefaultTuningConfig()
	if cfg.GetMaxAge() != def.GetMaxAge() || cfg.GetIOUThreshold() != def.GetIOUThreshold() {
		t.Errorf("defaults file drifted from built-in defaults: max_age=%d iou=%f",
			cfg.GetMaxAge(), cfg.GetIOUThreshold())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     DefaultTuningConfig(),
			wantErr: false,
		},
		{
			name:    "empty config is valid",
			cfg:     &TuningConfig{},
			wantErr: false,
		},
		{
			name:    "negative max age",
			cfg:     &TuningConfig{MaxAge: ptrInt(-1)},
			wantErr: true,
		},
		{
			name:    "iou threshold too low",
			cfg:     &TuningConfig{IOUThreshold: ptrFloat64(-0.1)},
			wantErr: true,
		},
		{
			name:    "iou threshold too high",
			cfg:     &TuningConfig{IOUThreshold: ptrFloat64(1.5)},
			wantErr: true,
		},
		{
			name:    "negative min hits",
			cfg:     &TuningConfig{MinHits: ptrInt(-2)},
			wantErr: true,
		},
		{
			name:    "unknown solver",
			cfg:     &TuningConfig{Solver: ptrString("greedy")},
			wantErr: true,
		},
		{
			name:    "zero measurement noise",
			cfg:     &TuningConfig{MeasurementNoisePos: ptrFloat64(0)},
			wantErr: true,
		},
		{
			name:    "zero max age is valid",
			cfg:     &TuningConfig{MaxAge: ptrInt(0)},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
