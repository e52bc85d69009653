// Package config holds the tunable parameters of the delta pipeline.
//
// All fields are optional pointers so partial JSON configs are safe:
// fields omitted from a file keep their defaults, which the Get*
// accessors supply. Configuration is passed explicitly into each
// pipeline invocation; there is no module-level mutable state.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Pipeline defaults. The offset search scans whole meters over ±15 m,
// alignment interpolates on a 1 m grid, and the final delta is computed
// on a 5 m grid over the shared distance span.
const (
	DefaultNumWindows   = 4
	DefaultOffsetMinM   = -15
	DefaultOffsetMaxM   = 15
	DefaultOffsetStepM  = 1
	DefaultInterpStepM  = 1
	DefaultGridStepM    = 5.0
	DefaultSmoothWindow = 5
)

// PipelineConfig represents the tunable parameters for one delta
// calculation. The JSON schema is shared by the config file, the
// /api/compare request body and the CLI overrides.
type PipelineConfig struct {
	// Alignment params
	NumWindows  *int `json:"num_windows,omitempty"`
	OffsetMinM  *int `json:"offset_min_m,omitempty"`
	OffsetMaxM  *int `json:"offset_max_m,omitempty"`
	OffsetStepM *int `json:"offset_step_m,omitempty"`
	InterpStepM *int `json:"interp_step_m,omitempty"`

	// Resampling params
	GridStepM *float64 `json:"grid_step_m,omitempty"`

	// Export params
	SmoothWindow *int `json:"smooth_window,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyPipelineConfig returns a PipelineConfig with all fields set to
// nil, meaning every parameter takes its default.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under
// the max file size. Fields omitted from the JSON file retain their
// default values, so partial configs are safe.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
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

	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *PipelineConfig) Validate() error {
	if c.NumWindows != nil && *c.NumWindows < 1 {
		return fmt.Errorf("num_windows must be at least 1, got %d", *c.NumWindows)
	}
	if c.OffsetStepM != nil && *c.OffsetStepM < 1 {
		return fmt.Errorf("offset_step_m must be at least 1, got %d", *c.OffsetStepM)
	}
	if c.InterpStepM != nil && *c.InterpStepM < 1 {
		return fmt.Errorf("interp_step_m must be at least 1, got %d", *c.InterpStepM)
	}
	if c.GridStepM != nil && *c.GridStepM <= 0 {
		return fmt.Errorf("grid_step_m must be positive, got %f", *c.GridStepM)
	}
	if c.SmoothWindow != nil && *c.SmoothWindow < 1 {
		return fmt.Errorf("smooth_window must be at least 1, got %d", *c.SmoothWindow)
	}

	// The offset range must be non-empty after both bounds resolve.
	if c.GetOffsetMin() > c.GetOffsetMax() {
		return fmt.Errorf("offset range is empty: min %d > max %d", c.GetOffsetMin(), c.GetOffsetMax())
	}

	return nil
}

// GetNumWindows returns the num_windows value or the default.
func (c *PipelineConfig) GetNumWindows() int {
	if c.NumWindows == nil {
		return DefaultNumWindows
	}
	return *c.NumWindows
}

// GetOffsetMin returns the offset_min_m value or the default.
func (c *PipelineConfig) GetOffsetMin() int {
	if c.OffsetMinM == nil {
		return DefaultOffsetMinM
	}
	return *c.OffsetMinM
}

// GetOffsetMax returns the offset_max_m value or the default.
func (c *PipelineConfig) GetOffsetMax() int {
	if c.OffsetMaxM == nil {
		return DefaultOffsetMaxM
	}
	return *c.OffsetMaxM
}

// GetOffsetStep returns the offset_step_m value or the default.
func (c *PipelineConfig) GetOffsetStep() int {
	if c.OffsetStepM == nil {
		return DefaultOffsetStepM
	}
	return *c.OffsetStepM
}

// GetInterpStep returns the interp_step_m value or the default.
func (c *PipelineConfig) GetInterpStep() int {
	if c.InterpStepM == nil {
		return DefaultInterpStepM
	}
	return *c.InterpStepM
}

// GetGridStep returns the grid_step_m value or the default.
func (c *PipelineConfig) GetGridStep() float64 {
	if c.GridStepM == nil {
		return DefaultGridStepM
	}
	return *c.GridStepM
}

// GetSmoothWindow returns the smooth_window value or the default.
func (c *PipelineConfig) GetSmoothWindow() int {
	if c.SmoothWindow == nil {
		return DefaultSmoothWindow
	}
	return *c.SmoothWindow
}

// WithNumWindows returns a copy of the config with num_windows set.
func (c *PipelineConfig) WithNumWindows(n int) *PipelineConfig {
	out := *c
	out.NumWindows = ptrInt(n)
	return &out
}

// WithGridStep returns a copy of the config with grid_step_m set.
func (c *PipelineConfig) WithGridStep(step float64) *PipelineConfig {
	out := *c
	out.GridStepM = ptrFloat64(step)
	return &out
}
