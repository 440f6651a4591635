package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type strategy string

const (
	offline strategy = "offline"
	online  strategy = "online"
)

func newStrategies() *Normalizer[strategy] {
	return New("strategy", map[string]strategy{
		"offline": offline,
		"online":  online,
		"network": online,
	}, online)
}

func TestNormalize(t *testing.T) {
	n := newStrategies()
	tests := []struct {
		in   string
		want strategy
	}{
		{"offline", offline},
		{"  OFFLINE ", offline},
		{"network", online},
		{"", online},
		{"bogus", online},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, n.Normalize(tt.in), tt.in)
	}
}

func TestParse(t *testing.T) {
	n := newStrategies()

	v, err := n.Parse("Offline")
	require.NoError(t, err)
	assert.Equal(t, offline, v)

	v, err = n.Parse("")
	require.NoError(t, err)
	assert.Equal(t, online, v)

	_, err = n.Parse("sideways")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid strategy")
	assert.Contains(t, err.Error(), "network, offline, online")
}

func TestKeysIsCopy(t *testing.T) {
	n := newStrategies()
	keys := n.Keys()
	keys[0] = "changed"
	assert.Equal(t, []string{"network", "offline", "online"}, n.Keys())
}
