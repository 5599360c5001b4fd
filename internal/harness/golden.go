package harness

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/ucarion/jcs"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Session      string       `json:"session"`
	Trace        []TraceEvent `json:"trace"`
}

// Canonical renders the snapshot as JSON Lines: a header object followed
// by one object per trace event, each in RFC 8785 canonical form. Param
// events always carry their value, even when it is zero.
func (s *TraceSnapshot) Canonical() ([]byte, error) {
	var b strings.Builder

	header, err := canonical(map[string]any{
		"scenario_name": s.ScenarioName,
		"session":       s.Session,
	})
	if err != nil {
		return nil, err
	}
	b.WriteString(header)
	b.WriteByte('\n')

	for i, e := range s.Trace {
		m := map[string]any{
			"at_ms": e.AtMS,
			"kind":  e.Kind,
		}
		if e.Severity != "" {
			m["severity"] = e.Severity
		}
		if e.Text != "" {
			m["text"] = e.Text
		}
		if e.Param != "" {
			m["param"] = e.Param
			m["value"] = e.Value
		}
		line, err := canonical(m)
		if err != nil {
			return nil, fmt.Errorf("trace[%d]: %w", i, err)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}

// canonical normalizes v through encoding/json and formats it per RFC 8785.
func canonical(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return "", err
	}
	return jcs.Format(normalized)
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Session:      result.Session,
		Trace:        result.Trace,
	}
	data, err := snapshot.Canonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
