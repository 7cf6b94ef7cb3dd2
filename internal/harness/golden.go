package harness

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario, applies its expectations, and compares
// the full result trace against a golden file.
//
// The golden file lives at testdata/golden/{scenario.Name}.golden. To
// regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden comparison catches drift the per-case expectations do not list:
// result ordering, extra result fields, extra rules firing.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	run, err := Run(scenario)
	if err != nil {
		return err
	}

	if errs := Check(scenario, run); len(errs) > 0 {
		for _, e := range errs {
			t.Error(e)
		}
		return fmt.Errorf("%d expectation(s) failed", len(errs))
	}

	// encoding/json sorts map keys, so the snapshot is deterministic.
	snapshot, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run result: %w", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, append(snapshot, '\n'))

	return nil
}
