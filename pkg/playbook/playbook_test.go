package playbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePlaybook = `
- name: web setup
  hosts: web
  vars:
    http_port: "8080"
  tasks:
    - name: install nginx
      apt:
        name: nginx
        state: present
      register: apt_result

    - name: start nginx
      service:
        name: nginx
        state: started
      when: apt_result is defined
      notify:
        - restart nginx

    - name: run ad-hoc check
      command: uptime
      tags: [diagnostics]

  handlers:
    - name: restart nginx
      service:
        name: nginx
        state: restarted
`

func TestParse_BasicPlaybook(t *testing.T) {
	pb, err := Parse([]byte(samplePlaybook))
	require.NoError(t, err)
	require.Len(t, pb.Plays, 1)

	play := pb.Plays[0]
	assert.Equal(t, "web setup", play.Name)
	assert.Equal(t, "web", play.Hosts)
	assert.Equal(t, "8080", play.Vars["http_port"])
	require.Len(t, play.Tasks, 3)

	installTask := play.Tasks[0]
	assert.Equal(t, "apt", installTask.Module)
	assert.Equal(t, "nginx", installTask.Args.Params["name"])
	assert.Equal(t, "apt_result", installTask.Register)

	startTask := play.Tasks[1]
	assert.Equal(t, "apt_result is defined", startTask.When)
	assert.Equal(t, []string{"restart nginx"}, startTask.Notify)

	cmdTask := play.Tasks[2]
	assert.Equal(t, "command", cmdTask.Module)
	assert.Equal(t, "uptime", cmdTask.Args.Raw)
	assert.Equal(t, []string{"diagnostics"}, cmdTask.Tags)

	require.Len(t, play.Handlers, 1)
	assert.Equal(t, "restart nginx", play.Handlers[0].Name)
}

func TestParse_RejectsMultipleModuleKeys(t *testing.T) {
	bad := `
- name: bad play
  hosts: all
  tasks:
    - name: ambiguous
      apt:
        name: nginx
      service:
        name: nginx
`
	_, err := Parse([]byte(bad))
	assert.Error(t, err)
}

func TestParse_RequiresHosts(t *testing.T) {
	bad := `
- name: no hosts
  tasks: []
`
	_, err := Parse([]byte(bad))
	assert.Error(t, err)
}
