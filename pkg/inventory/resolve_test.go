package inventory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePattern_Group(t *testing.T) {
	inv, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	hosts, err := inv.ResolvePattern("web")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"web01", "web02", "web03"}, hosts)
}

func TestResolvePattern_All(t *testing.T) {
	inv, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	hosts, err := inv.ResolvePattern("all")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"web01", "web02", "web03", "db-a"}, hosts)
}

func TestResolvePattern_SingleHost(t *testing.T) {
	inv, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	hosts, err := inv.ResolvePattern("web01")
	require.NoError(t, err)
	assert.Equal(t, []string{"web01"}, hosts)
}

func TestResolvePattern_Negation(t *testing.T) {
	inv, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	hosts, err := inv.ResolvePattern("web:!web02")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"web01", "web03"}, hosts)
}

func TestResolveLimit_NarrowsToSubset(t *testing.T) {
	inv, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	all, err := inv.ResolvePattern("all")
	require.NoError(t, err)

	limited, err := inv.ResolveLimit(all, "web01")
	require.NoError(t, err)
	assert.Equal(t, []string{"web01"}, limited)
}

func TestResolveLimit_Empty(t *testing.T) {
	inv, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	all, err := inv.ResolvePattern("web")
	require.NoError(t, err)
	limited, err := inv.ResolveLimit(all, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, all, limited)
}
