// Package config loads the analyzer policy: thresholds, weights, exclusion
// patterns, and similarity settings. All values are pass-through inputs to
// the engine; nothing here is computed.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Thresholds struct {
	MaxPositionalParams int `yaml:"max_positional_params"` // position coupling above this
	ParamsPointerRule   int `yaml:"params_pointer_rule"`   // tags the indirection safety rule above this
	MaxFunctionLines    int `yaml:"max_function_lines"`
	CriticalFuncLines   int `yaml:"critical_function_lines"`
	GodClassMethods     int `yaml:"god_class_methods"`
	GodClassLines       int `yaml:"god_class_lines"`
	MaxGlobals          int `yaml:"max_globals"`
	ComplexityHigh      int `yaml:"complexity_high"`
	ComplexityCritical  int `yaml:"complexity_critical"`
	ParametersHigh      int `yaml:"parameters_high"`
	ParametersCritical  int `yaml:"parameters_critical"`
	MinAssertions       int `yaml:"min_assertions"`
}

type Similarity struct {
	Threshold           float64 `yaml:"threshold"`            // similar-pair cutoff
	FunctionalThreshold float64 `yaml:"functional_threshold"` // semantic-group cutoff
	MinStatements       int     `yaml:"min_statements"`       // smaller functions are excluded
}

type Consensus struct {
	Threshold float64 `yaml:"threshold"` // cross-tool confidence needed for an upgrade
}

type Config struct {
	Exclusions   []string   `yaml:"exclusions"`
	MaxFileBytes int64      `yaml:"max_file_bytes"`
	Workers      int        `yaml:"workers"` // 0 means GOMAXPROCS
	Thresholds   Thresholds `yaml:"thresholds"`
	Similarity   Similarity `yaml:"similarity"`
	Consensus    Consensus  `yaml:"consensus"`
}

// Default returns the service-defaults policy.
func Default() *Config {
	return &Config{
		Exclusions: []string{
			"test_", "tests/", "_test.py", "conftest.py",
			".git/", "__pycache__/", "build/", "dist/",
			".tox/", ".venv/", "venv/", "node_modules/", ".cache/",
		},
		MaxFileBytes: 1 << 20,
		Thresholds: Thresholds{
			MaxPositionalParams: 3,
			ParamsPointerRule:   5,
			MaxFunctionLines:    60,
			CriticalFuncLines:   100,
			GodClassMethods:     20,
			GodClassLines:       500,
			MaxGlobals:          5,
			ComplexityHigh:      10,
			ComplexityCritical:  15,
			ParametersHigh:      5,
			ParametersCritical:  8,
			MinAssertions:       2,
		},
		Similarity: Similarity{
			Threshold:           0.70,
			FunctionalThreshold: 0.60,
			MinStatements:       4,
		},
		Consensus: Consensus{Threshold: 0.75},
	}
}

// Load reads a YAML policy file over the defaults, then applies environment
// overrides. A missing file is not an error; the defaults apply.
func Load(path string) (*Config, error) {
	// Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				applyEnv(cfg)
				return cfg, nil
			}
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CONNASCENCE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("CONNASCENCE_MAX_FILE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxFileBytes = n
		}
	}
	if v := os.Getenv("CONNASCENCE_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			cfg.Similarity.Threshold = f
		}
	}
}
