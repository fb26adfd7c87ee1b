// Package config loads the server's local JSONC configuration file. It is
// read once at process start; there is no hot-reload, so a changed file on
// disk has no effect until the server is restarted.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	jsonc "github.com/muhammadmuzzammil1998/jsonc"

	"github.com/Galarius/opencl-language-server/internal/diagnostics"
)

// File is the decoded shape of the local configuration file. Every field is
// optional; a zero value means "let the Diagnostics Engine keep its
// default".
type File struct {
	BuildOptions        diagnostics.BuildOptions `json:"buildOptions"`
	MaxNumberOfProblems *uint64                  `json:"maxNumberOfProblems"`
	DeviceID            *uint32                  `json:"deviceID"`
}

// Load reads and decodes a JSONC file at path. A missing file is not an
// error: it returns a zero-value File so the caller applies no overrides.
func Load(path string) (File, error) {
	var cfg File
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	clean := jsonc.ToJSON(b)
	if err := json.Unmarshal(clean, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Apply pushes every field File carries onto engine, in the same order the
// session handler applies a workspace/configuration response: build options,
// problem cap, then device selection.
func Apply(cfg File, engine *diagnostics.Engine) {
	if cfg.BuildOptions != "" {
		engine.SetBuildOptions(cfg.BuildOptions)
	}
	if cfg.MaxNumberOfProblems != nil {
		engine.SetMaxProblemsCount(*cfg.MaxNumberOfProblems)
	}
	if cfg.DeviceID != nil {
		engine.SetOpenCLDevice(*cfg.DeviceID)
	}
}
