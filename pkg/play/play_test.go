package play

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexisbouchez/forge/pkg/executor"
	"github.com/alexisbouchez/forge/pkg/inventory"
	"github.com/alexisbouchez/forge/pkg/modules"
	"github.com/alexisbouchez/forge/pkg/playbook"
)

// fakeConn is a no-op Connection: play's own orchestration logic (host
// fan-out, when/tags, register, handlers) is under test here, not any
// real transport, so the fake modules registered below never need to
// touch it.
type fakeConn struct{ host string }

func (f *fakeConn) Host() string { return f.host }
func (f *fakeConn) Exec(context.Context, string) (string, string, int, error) {
	return "", "", 0, nil
}
func (f *fakeConn) ReadFile(context.Context, string) ([]byte, error) { return nil, nil }
func (f *fakeConn) WriteFile(context.Context, string, []byte, os.FileMode) error {
	return nil
}
func (f *fakeConn) Close() error { return nil }

func connectFake(_ context.Context, hostName string, _ map[string]string) (executor.Connection, error) {
	return &fakeConn{host: hostName}, nil
}

func parseInv(t *testing.T, ini string) *inventory.Inventory {
	t.Helper()
	inv, err := inventory.Parse(strings.NewReader(ini))
	require.NoError(t, err)
	return inv
}

func TestRunPlay_BasicTaskExecution(t *testing.T) {
	reg := modules.NewRegistry()
	reg.Register("fake_ok", func(_ context.Context, _ executor.Connection, _ modules.Args, _ map[string]string) (modules.Result, error) {
		return modules.Result{Changed: true, Stdout: "done"}, nil
	})

	inv := parseInv(t, "[web]\nweb1\nweb2\n")

	p := playbook.Play{
		Name:  "demo",
		Hosts: "web",
		Tasks: []playbook.Task{
			{Name: "run fake", Module: "fake_ok", Register: "out"},
		},
	}

	results, err := RunPlay(context.Background(), p, inv, reg, connectFake, Options{Forks: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, hr := range results {
		require.Len(t, hr.Tasks, 1)
		assert.Equal(t, StatusChanged, hr.Tasks[0].Status)
		assert.False(t, hr.Aborted)
	}

	s := Summarize(results)
	assert.Equal(t, 2, s.Changed)
	assert.Equal(t, 0, s.Failed)
}

func TestRunPlay_WhenFalseSkips(t *testing.T) {
	reg := modules.NewRegistry()
	reg.Register("fake_ok", func(_ context.Context, _ executor.Connection, _ modules.Args, _ map[string]string) (modules.Result, error) {
		return modules.Result{Changed: true}, nil
	})

	inv := parseInv(t, "[web]\nweb1\n")

	p := playbook.Play{
		Name:  "demo",
		Hosts: "web",
		Vars:  map[string]string{"enabled": "false"},
		Tasks: []playbook.Task{
			{Name: "conditional", Module: "fake_ok", When: `enabled == "true"`},
		},
	}

	results, err := RunPlay(context.Background(), p, inv, reg, connectFake, Options{Forks: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusSkipped, results[0].Tasks[0].Status)
}

func TestRunPlay_FailureDoesNotHaltHostTaskLoop(t *testing.T) {
	reg := modules.NewRegistry()
	reg.Register("fake_fail", func(_ context.Context, _ executor.Connection, _ modules.Args, _ map[string]string) (modules.Result, error) {
		return modules.Result{Failed: true, Msg: "boom"}, nil
	})
	reg.Register("fake_ok", func(_ context.Context, _ executor.Connection, _ modules.Args, _ map[string]string) (modules.Result, error) {
		return modules.Result{Changed: true}, nil
	})

	inv := parseInv(t, "[web]\nweb1\n")

	p := playbook.Play{
		Name:  "demo",
		Hosts: "web",
		Tasks: []playbook.Task{
			{Name: "fails", Module: "fake_fail"},
			{Name: "still runs", Module: "fake_ok"},
		},
	}

	results, err := RunPlay(context.Background(), p, inv, reg, connectFake, Options{Forks: 1})
	require.NoError(t, err)
	require.Len(t, results[0].Tasks, 2)
	assert.False(t, results[0].Aborted)
	assert.Equal(t, StatusFailed, results[0].Tasks[0].Status)
	assert.Equal(t, StatusChanged, results[0].Tasks[1].Status)

	s := Summarize(results)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Changed)
}

func TestRunPlay_CheckModeNeverDispatchesModule(t *testing.T) {
	reg := modules.NewRegistry()
	called := false
	reg.Register("fake_mutate", func(_ context.Context, _ executor.Connection, _ modules.Args, _ map[string]string) (modules.Result, error) {
		called = true
		return modules.Result{Changed: true}, nil
	})

	inv := parseInv(t, "[web]\nweb1\n")

	p := playbook.Play{
		Name:  "demo",
		Hosts: "web",
		Tasks: []playbook.Task{
			{Name: "would mutate", Module: "fake_mutate"},
		},
	}

	results, err := RunPlay(context.Background(), p, inv, reg, connectFake, Options{Forks: 1, Check: true})
	require.NoError(t, err)
	require.Len(t, results[0].Tasks, 1)
	assert.False(t, called)
	assert.Equal(t, StatusOK, results[0].Tasks[0].Status)
	assert.Equal(t, "check mode", results[0].Tasks[0].Msg)
}

func TestRunPlay_NotifyFiresHandlerOnChange(t *testing.T) {
	reg := modules.NewRegistry()
	reg.Register("fake_change", func(_ context.Context, _ executor.Connection, _ modules.Args, _ map[string]string) (modules.Result, error) {
		return modules.Result{Changed: true}, nil
	})

	inv := parseInv(t, "[web]\nweb1\n")

	p := playbook.Play{
		Name:  "demo",
		Hosts: "web",
		Tasks: []playbook.Task{
			{Name: "change it", Module: "fake_change", Notify: []string{"restart thing"}},
		},
		Handlers: []playbook.Task{
			{Name: "restart thing", Module: "fake_change"},
		},
	}

	results, err := RunPlay(context.Background(), p, inv, reg, connectFake, Options{Forks: 1})
	require.NoError(t, err)
	require.Len(t, results[0].Tasks, 2)
	assert.Equal(t, "restart thing", results[0].Tasks[1].Task)
}

func TestRunPlay_TagFiltering(t *testing.T) {
	reg := modules.NewRegistry()
	reg.Register("fake_ok", func(_ context.Context, _ executor.Connection, _ modules.Args, _ map[string]string) (modules.Result, error) {
		return modules.Result{Changed: true}, nil
	})

	inv := parseInv(t, "[web]\nweb1\n")

	p := playbook.Play{
		Name:  "demo",
		Hosts: "web",
		Tasks: []playbook.Task{
			{Name: "tagged", Module: "fake_ok", Tags: []string{"slow"}},
		},
	}

	results, err := RunPlay(context.Background(), p, inv, reg, connectFake, Options{Forks: 1, SkipTags: []string{"slow"}})
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, results[0].Tasks[0].Status)
}

func TestRunPlay_RegisterExposesResultToLaterTask(t *testing.T) {
	reg := modules.NewRegistry()
	reg.Register("fake_out", func(_ context.Context, _ executor.Connection, _ modules.Args, _ map[string]string) (modules.Result, error) {
		return modules.Result{Changed: true, Stdout: "hello"}, nil
	})

	var sawRegistered string
	reg.Register("fake_reader", func(_ context.Context, _ executor.Connection, _ modules.Args, vars map[string]string) (modules.Result, error) {
		sawRegistered = vars["out.stdout"]
		return modules.Result{Changed: false}, nil
	})

	inv := parseInv(t, "[web]\nweb1\n")

	p := playbook.Play{
		Name:  "demo",
		Hosts: "web",
		Tasks: []playbook.Task{
			{Name: "produce", Module: "fake_out", Register: "out"},
			{Name: "consume", Module: "fake_reader"},
		},
	}

	_, err := RunPlay(context.Background(), p, inv, reg, connectFake, Options{Forks: 1})
	require.NoError(t, err)
	assert.Equal(t, "hello", sawRegistered)
}
