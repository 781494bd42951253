// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.PacketsCaptured.Add(3)
	m.BuilderBugs.Inc()

	require.Equal(t, float64(3), testutil.ToFloat64(m.PacketsCaptured))
	require.Equal(t, float64(1), testutil.ToFloat64(m.BuilderBugs))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(families), 9)
}
