package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/picogrid/swarm-defense/pkg/simulation"
)

const descriptorYAML = `name: Swarm Defense
description: test descriptor
version: 1.0.0
parameters:
  - name: friendly_count
    type: integer
    default: 18
    min: 1
  - name: strategy
    type: string
    default: greedy
    options: [greedy, quantum]
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverIn(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "swarm", DescriptorFile), descriptorYAML)
	writeFile(t, filepath.Join(root, "broken", DescriptorFile), "name: [")
	writeFile(t, filepath.Join(root, "other", "README.md"), "not a descriptor")

	sims, err := DiscoverIn(root)
	if err != nil {
		t.Fatalf("DiscoverIn: %v", err)
	}
	if len(sims) != 1 {
		t.Fatalf("expected one valid descriptor, got %d", len(sims))
	}
	if sims[0].Descriptor.Name != "Swarm Defense" || sims[0].Path != filepath.Join(root, "swarm") {
		t.Errorf("unexpected discovery result: %+v", sims[0])
	}
	if n := len(sims[0].Descriptor.Parameters); n != 2 {
		t.Errorf("expected 2 parameters, got %d", n)
	}
}

func TestLoadDescriptorMissing(t *testing.T) {
	if _, err := LoadDescriptor(filepath.Join(t.TempDir(), DescriptorFile)); err == nil {
		t.Error("expected an error for a missing descriptor")
	}
}

func TestEnvKey(t *testing.T) {
	if got := EnvKey("friendly_count"); got != "SWARM_FRIENDLY_COUNT" {
		t.Errorf("EnvKey = %q", got)
	}
}

func TestPromptForParametersWithoutTerminal(t *testing.T) {
	t.Setenv(SkipPromptsEnv, "true")
	t.Setenv("SWARM_FRIENDLY_COUNT", "25")

	params := []simulation.Parameter{
		{Name: "friendly_count", Type: "integer", Default: 18},
		{Name: "strategy", Type: "string", Default: "greedy", Options: []string{"greedy", "quantum"}},
		{Name: "label", Type: "string"},
	}

	values, err := PromptForParameters(params)
	if err != nil {
		t.Fatalf("PromptForParameters: %v", err)
	}
	if values["friendly_count"] != 25 {
		t.Errorf("environment override ignored: %v", values["friendly_count"])
	}
	if values["strategy"] != "greedy" {
		t.Errorf("default not used: %v", values["strategy"])
	}
	if _, ok := values["label"]; ok {
		t.Error("parameters without a value should be omitted")
	}
}

func TestPromptForParametersErrors(t *testing.T) {
	t.Setenv(SkipPromptsEnv, "true")

	tests := []struct {
		name  string
		env   string
		param simulation.Parameter
	}{
		{"invalid env value", "many", simulation.Parameter{Name: "enemy_count", Type: "integer"}},
		{"required without default", "", simulation.Parameter{Name: "enemy_count", Type: "integer", Required: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SWARM_ENEMY_COUNT", tt.env)
			if _, err := PromptForParameters([]simulation.Parameter{tt.param}); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
