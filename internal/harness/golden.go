package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the deterministic part of a Result, as stored in golden
// files.
type Snapshot struct {
	Scenario    string   `json:"scenario"`
	Error       string   `json:"error,omitempty"`
	Calls       []string `json:"calls"`
	ArrayTypes  []string `json:"array_types,omitempty"`
	EntryPoints []string `json:"entry_points,omitempty"`
}

// NewSnapshot extracts the snapshot of res.
func NewSnapshot(name string, res *Result) Snapshot {
	snap := Snapshot{
		Scenario: name,
		Error:    res.Kind(),
		Calls:    res.Trace,
	}
	if snap.Calls == nil {
		snap.Calls = []string{}
	}
	if res.Model != nil {
		for _, a := range res.Model.ArrayTypes {
			snap.ArrayTypes = append(snap.ArrayTypes, a.Name)
		}
		for _, e := range res.Model.EntryPoints {
			snap.EntryPoints = append(snap.EntryPoints, e.Name)
		}
	}
	return snap
}

// AssertGolden compares the snapshot of res against
// testdata/golden/<name>.golden.
func AssertGolden(t *testing.T, name string, res *Result) {
	t.Helper()

	data, err := json.MarshalIndent(NewSnapshot(name, res), "", "  ")
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
