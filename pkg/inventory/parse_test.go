package inventory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
[web]
web01 ansible_user=deploy
web[02:03]

[web:vars]
http_port=8080

[db]
db-a ansible_host=10.0.0.5

[prod:children]
web
db

[prod:vars]
env=production
`

func TestParse_GroupsAndHosts(t *testing.T) {
	inv, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"web01", "web02", "web03"}, inv.Groups["web"].Hosts)
	assert.Equal(t, "8080", inv.Groups["web"].Vars["http_port"])
	assert.Equal(t, []string{"web", "db"}, inv.Groups["prod"].Children)

	hosts, err := inv.ExpandGroup("prod")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"web01", "web02", "web03", "db-a"}, hosts)
}

func TestParse_HostVarsPrecedence(t *testing.T) {
	inv, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	vars := inv.HostVars("web01")
	assert.Equal(t, "8080", vars["http_port"])
	assert.Equal(t, "production", vars["env"])
	assert.Equal(t, "deploy", vars["ansible_user"])
	assert.Equal(t, "web01", vars["inventory_hostname"])
}

func TestExpandRange_Numeric(t *testing.T) {
	names, err := expandRange("web[01:03]")
	require.NoError(t, err)
	assert.Equal(t, []string{"web01", "web02", "web03"}, names)
}

func TestExpandRange_Alpha(t *testing.T) {
	names, err := expandRange("db[a:c]")
	require.NoError(t, err)
	assert.Equal(t, []string{"dba", "dbb", "dbc"}, names)
}

func TestExpandRange_NoRange(t *testing.T) {
	names, err := expandRange("standalone")
	require.NoError(t, err)
	assert.Equal(t, []string{"standalone"}, names)
}

func TestParse_UngroupedHosts(t *testing.T) {
	inv, err := Parse(strings.NewReader("loose-host\n\n[web]\nweb01\n"))
	require.NoError(t, err)
	assert.Contains(t, inv.Groups["ungrouped"].Hosts, "loose-host")
}

func TestCyclicGroups_NoInfiniteLoop(t *testing.T) {
	src := `
[a:children]
b

[b:children]
a

[a]
host-a
`
	inv, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	hosts, err := inv.ExpandGroup("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"host-a"}, hosts)
}
