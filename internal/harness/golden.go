package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cylcview/internal/canon"
	"github.com/roach88/cylcview/internal/render"
)

// Snapshot returns the canonical golden document of a run: the step trace,
// the report messages with their codes and the final table view.
func Snapshot(name string, result *Result) ([]byte, error) {
	steps := make([]any, len(result.Steps))
	for i, s := range result.Steps {
		step := map[string]any{
			"index":        s.Index,
			"subscription": s.SubscriptionID,
			"batch":        s.BatchID,
			"applied":      s.Applied,
			"failed":       s.Failed,
			"snapshot":     s.Snapshot,
			"shutdown":     s.Shutdown,
		}
		if s.Error != "" {
			step["error"] = s.Error
		}
		steps[i] = step
	}

	reports := make([]any, len(result.Reports))
	for i, r := range result.Reports {
		reports[i] = map[string]any{
			"message": r.Message,
			"code":    string(r.Code()),
		}
	}

	return canon.Marshal(map[string]any{
		"scenario": name,
		"steps":    steps,
		"reports":  reports,
		"view":     render.View(result.Table),
	})
}

// RunWithGolden runs a scenario and compares its snapshot with
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
