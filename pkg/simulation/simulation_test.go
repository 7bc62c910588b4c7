package simulation

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

type fakeRun struct {
	id      string
	stopped bool
}

func (f *fakeRun) ID() string { return f.id }
func (f *fakeRun) State() string { return "running" }
func (f *fakeRun) Progress() float64 { return 0 }
func (f *fakeRun) Stop() { f.stopped = true }

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	for _, id := range []string{"b", "a", "c"} {
		if err := r.Register(&fakeRun{id: id}); err != nil {
			t.Fatalf("Register(%s): %v", id, err)
		}
	}
	if err := r.Register(&fakeRun{id: "a"}); err == nil {
		t.Error("expected an error registering a duplicate id")
	}

	if got := r.List(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("List() = %v", got)
	}

	run, err := r.Get("b")
	if err != nil || run.ID() != "b" {
		t.Errorf("Get(b) = %v, %v", run, err)
	}
	if _, err := r.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if !r.Remove("b") {
		t.Error("Remove(b) should report the run existed")
	}
	if r.Remove("b") {
		t.Error("second Remove(b) should report nothing was removed")
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestParameterParse(t *testing.T) {
	tests := []struct {
		name    string
		param   Parameter
		raw     string
		want    interface{}
		wantErr bool
	}{
		{"integer", Parameter{Name: "n", Type: "integer"}, " 12 ", 12, false},
		{"integer not a number", Parameter{Name: "n", Type: "integer"}, "twelve", nil, true},
		{"integer below min", Parameter{Name: "n", Type: "integer", Min: 1}, "0", nil, true},
		{"integer above max", Parameter{Name: "n", Type: "integer", Max: 1000}, "1001", nil, true},
		{"float within bounds", Parameter{Name: "r", Type: "float", Min: 0, Max: 1.0}, "0.4", 0.4, false},
		{"float above max", Parameter{Name: "r", Type: "float", Max: 1.0}, "1.5", nil, true},
		{"boolean", Parameter{Name: "b", Type: "boolean"}, "true", true, false},
		{"boolean invalid", Parameter{Name: "b", Type: "boolean"}, "maybe", nil, true},
		{"duration", Parameter{Name: "d", Type: "duration"}, "1m30s", 90 * time.Second, false},
		{"option", Parameter{Name: "s", Type: "string", Options: []string{"greedy", "quantum"}}, "quantum", "quantum", false},
		{"unknown option", Parameter{Name: "s", Type: "string", Options: []string{"greedy"}}, "random", nil, true},
		{"free string", Parameter{Name: "s", Type: "string"}, "anything", "anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.param.Parse(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Parse(%q) = %v (%T), want %v (%T)", tt.raw, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestDescriptorLookup(t *testing.T) {
	d := Descriptor{
		Name: "swarm",
		Parameters: []Parameter{
			{Name: "friendly_count", Type: "integer", Default: 18},
			{Name: "strategy", Type: "string"},
		},
	}

	if p, ok := d.Parameter("friendly_count"); !ok || p.Type != "integer" {
		t.Errorf("Parameter(friendly_count) = %+v, %v", p, ok)
	}
	if _, ok := d.Parameter("missing"); ok {
		t.Error("unknown parameter should not be found")
	}

	defaults := d.Defaults()
	if len(defaults) != 1 || defaults["friendly_count"] != 18 {
		t.Errorf("Defaults() = %v", defaults)
	}
}
