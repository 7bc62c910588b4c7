package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/picogrid/swarm-defense/pkg/logger"
	"github.com/picogrid/swarm-defense/pkg/simulation"
	"gopkg.in/yaml.v3"
)

// DescriptorFile is the name of a simulation's parameter catalogue
const DescriptorFile = "simulation.yaml"

// SimulationInfo contains information about a discovered simulation
type SimulationInfo struct {
	Path       string
	Descriptor simulation.Descriptor
}

// DiscoverSimulations finds every simulation descriptor under cmd/
func DiscoverSimulations() ([]SimulationInfo, error) {
	rootDir, err := FindProjectRoot()
	if err != nil {
		return nil, err
	}
	return DiscoverIn(filepath.Join(rootDir, "cmd"))
}

// DiscoverIn walks dir looking for simulation descriptors
func DiscoverIn(dir string) ([]SimulationInfo, error) {
	var simulations []SimulationInfo

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.Name() == DescriptorFile {
			simInfo, err := LoadDescriptor(path)
			if err != nil {
				// Log error but continue scanning
				logger.Warnf("Failed to load %s: %v", path, err)
				return nil
			}
			simulations = append(simulations, *simInfo)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to scan for simulations: %w", err)
	}

	return simulations, nil
}

// LoadDescriptor loads a simulation descriptor from a file
func LoadDescriptor(path string) (*SimulationInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read simulation descriptor: %w", err)
	}

	var desc simulation.Descriptor
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("failed to parse simulation descriptor: %w", err)
	}

	return &SimulationInfo{
		Path:       filepath.Dir(path),
		Descriptor: desc,
	}, nil
}

// FindProjectRoot finds the project root by looking for go.mod
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	// Walk up until we find go.mod
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root (no go.mod found)")
		}
		dir = parent
	}
}
