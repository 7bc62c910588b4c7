package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
	"github.com/picogrid/swarm-defense/pkg/logger"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file. Sections missing from the
// file keep their default values.
func LoadConfig(path string) (*ScenarioConfig, error) {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadConfigOrDefault loads config from file or returns default, with environment overrides
func LoadConfigOrDefault(path string) (*ScenarioConfig, error) {
	var config *ScenarioConfig
	var err error

	if path != "" {
		config, err = LoadConfig(path)
		if err != nil {
			logger.Warnf("Could not load config from %s: %v", path, err)
			config = nil
		}
	}

	// Try default locations if no config loaded yet
	if config == nil {
		defaultPaths := []string{
			"config.yaml",
			"swarm-defense.yaml",
			filepath.Join("cmd", "swarm-defense", "config.yaml"),
		}

		for _, p := range defaultPaths {
			if _, err := os.Stat(p); err == nil {
				config, err = LoadConfig(p)
				if err == nil {
					logger.Debugf("Loaded config from: %s", p)
					break
				}
			}
		}
	}

	if config == nil {
		logger.Debug("Using default configuration")
		config = GetDefaultConfig()
	}

	// Always apply environment variable overrides
	MergeWithEnvironment(config)

	return config, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *ScenarioConfig, path string) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// MergeWithCLIOverrides applies CLI parameter overrides to the configuration.
// Values of the wrong type are ignored; validation catches bad ranges.
func MergeWithCLIOverrides(config *ScenarioConfig, overrides map[string]interface{}) {
	for key, value := range overrides {
		switch key {
		case "friendly_count":
			if count, ok := toInt(value); ok {
				config.Scenario.FriendlyCount = count
			}
		case "enemy_count":
			if count, ok := toInt(value); ok {
				config.Scenario.EnemyCount = count
			}
		case "ground_attack_ratio":
			if ratio, ok := toFloat(value); ok {
				config.Scenario.GroundAttackRatio = ratio
			}
		case "max_speed":
			if v, ok := toFloat(value); ok {
				config.Scenario.MaxSpeed = v
			}
		case "weapon_range":
			if v, ok := toFloat(value); ok {
				config.Scenario.WeaponRange = v
			}
		case "detection_range":
			if v, ok := toFloat(value); ok {
				config.Scenario.DetectionRange = v
			}
		case "friendly_health":
			if v, ok := toFloat(value); ok {
				config.Scenario.FriendlyHealth = v
			}
		case "enemy_health":
			if v, ok := toFloat(value); ok {
				config.Scenario.EnemyHealth = v
			}
		case "strategy":
			if name, ok := value.(string); ok {
				config.Scenario.Strategy = name
			}
		case "formation":
			if name, ok := value.(string); ok {
				config.Scenario.Formation = strings.ToLower(name)
			}
		case "max_time":
			if v, ok := toFloat(value); ok {
				config.Simulation.MaxTime = v
			}
		case "dt":
			if v, ok := toFloat(value); ok {
				config.Simulation.DT = v
			}
		case "seed":
			if seed, ok := toInt(value); ok {
				config.Simulation.Seed = int64(seed)
			}
		case "record_stride":
			if stride, ok := toInt(value); ok {
				config.Simulation.RecordStride = stride
			}
		case "tick_interval":
			if d, ok := value.(time.Duration); ok {
				config.Simulation.TickInterval = d
			}
		case "worker_count":
			if n, ok := toInt(value); ok {
				config.Performance.WorkerCount = n
			}
		case "verbose_logging":
			if verbose, ok := value.(bool); ok {
				config.Logging.Verbose = verbose
			}
		case "enable_aar":
			if enable, ok := value.(bool); ok {
				config.Logging.EnableAAR = enable
			}
		case "aar_format":
			if format, ok := value.(string); ok {
				config.Logging.AARFormat = format
			}
		case "archive":
			if enable, ok := value.(bool); ok {
				config.Archive.Enabled = enable
			}
		case "log_level":
			if level, ok := value.(string); ok {
				validLevels := []string{"debug", "info", "warn", "error"}
				for _, valid := range validLevels {
					if level == valid {
						config.Logging.ConsoleLevel = level
						break
					}
				}
			}
		}
	}
}

func toInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), v == float64(int(v))
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// LoadConfigWithOverrides loads config and applies both environment and CLI overrides
func LoadConfigWithOverrides(path string, cliOverrides map[string]interface{}) (*ScenarioConfig, error) {
	config, err := LoadConfigOrDefault(path)
	if err != nil {
		return nil, err
	}

	// Apply CLI overrides after environment variables
	if cliOverrides != nil {
		MergeWithCLIOverrides(config, cliOverrides)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed after overrides: %w", err)
	}

	return config, nil
}

// MergeWithEnvironment merges config with environment variables
func MergeWithEnvironment(config *ScenarioConfig) {
	// Override force sizes
	if v := os.Getenv("SWARM_FRIENDLY_COUNT"); v != "" {
		if count, err := strconv.Atoi(v); err == nil && count > 0 {
			config.Scenario.FriendlyCount = count
		}
	}

	if v := os.Getenv("SWARM_ENEMY_COUNT"); v != "" {
		if count, err := strconv.Atoi(v); err == nil && count >= 0 {
			config.Scenario.EnemyCount = count
		}
	}

	if v := os.Getenv("SWARM_GROUND_ATTACK_RATIO"); v != "" {
		if ratio, err := strconv.ParseFloat(v, 64); err == nil && ratio >= 0 && ratio <= 1 {
			config.Scenario.GroundAttackRatio = ratio
		}
	}

	// Override strategy
	if v := os.Getenv("SWARM_STRATEGY"); v != "" {
		if kind, err := ParseStrategy(v); err == nil {
			config.Scenario.Strategy = kind
		}
	}

	// Override clock and seed
	if v := os.Getenv("SWARM_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Simulation.Seed = seed
		}
	}

	if v := os.Getenv("SWARM_MAX_TIME"); v != "" {
		if maxTime, err := strconv.ParseFloat(v, 64); err == nil && maxTime > 0 {
			config.Simulation.MaxTime = maxTime
		}
	}

	if v := os.Getenv("SWARM_DT"); v != "" {
		if dt, err := strconv.ParseFloat(v, 64); err == nil && dt > 0 {
			config.Simulation.DT = dt
		}
	}

	if v := os.Getenv("SWARM_RECORD_STRIDE"); v != "" {
		if stride, err := strconv.Atoi(v); err == nil && stride > 0 {
			config.Simulation.RecordStride = stride
		}
	}

	// Override performance settings
	if v := os.Getenv("SWARM_WORKER_COUNT"); v != "" {
		if size, err := strconv.Atoi(v); err == nil && size >= 0 {
			config.Performance.WorkerCount = size
		}
	}

	// Override logging level
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		for _, valid := range validLevels {
			if strings.ToLower(logLevel) == valid {
				config.Logging.ConsoleLevel = valid
				break
			}
		}
	}

	// Override AAR settings
	if enableAAR := os.Getenv("ENABLE_AAR"); enableAAR != "" {
		if enable, err := strconv.ParseBool(enableAAR); err == nil {
			config.Logging.EnableAAR = enable
		}
	}

	if aarPath := os.Getenv("AAR_OUTPUT_PATH"); aarPath != "" {
		config.Logging.AAROutputPath = aarPath
	}

	// Override archive location
	if archivePath := os.Getenv("SWARM_ARCHIVE_PATH"); archivePath != "" {
		config.Archive.Path = archivePath
		config.Archive.Enabled = true
	}
}

// ParseStrategy normalizes a strategy name or alias to its canonical form
func ParseStrategy(name string) (string, error) {
	kind, err := core.ParseStrategyKind(name)
	if err != nil {
		return "", err
	}
	return string(kind), nil
}
