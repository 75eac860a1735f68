package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotTracksAverageAndLast(t *testing.T) {
	s := NewSnapshot()
	s.ObserveMS("/v1/credentials/issue", 10)
	s.ObserveMS("/v1/credentials/issue", 20)
	s.ObserveMS("/v1/credentials/issue", 30)

	view := s.View()
	route := view.Routes["/v1/credentials/issue"]
	require.Equal(t, 3, route.Count)
	require.Equal(t, 3, route.Samples)
	require.InDelta(t, 20, route.AvgMS, 0.0001)
	require.Equal(t, float64(30), route.LastMS)
}

func TestSnapshotRingCapsRetainedSamplesButKeepsTotalCount(t *testing.T) {
	s := NewSnapshot()
	for i := 0; i < ringSize+10; i++ {
		s.ObserveMS("/v1/status/{id}", float64(i))
	}

	view := s.View()
	route := view.Routes["/v1/status/{id}"]
	require.Equal(t, ringSize+10, route.Count)
	require.Equal(t, ringSize, route.Samples)
}

func TestSnapshotTracksRoutesIndependently(t *testing.T) {
	s := NewSnapshot()
	s.ObserveMS("/a", 5)
	s.ObserveMS("/b", 50)

	view := s.View()
	require.Len(t, view.Routes, 2)
	require.Equal(t, float64(5), view.Routes["/a"].LastMS)
	require.Equal(t, float64(50), view.Routes["/b"].LastMS)
}
