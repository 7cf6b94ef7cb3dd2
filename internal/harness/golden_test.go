package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderPricingFlowGolden(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "order-pricing-flow.yaml"))
	require.NoError(t, err)

	require.NoError(t, RunWithGolden(t, s))
}
