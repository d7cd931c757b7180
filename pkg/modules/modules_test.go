package modules

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory Connection double for module tests - no real
// host is touched, matching the teacher's own testify-based table tests
// that stub out executor.Interface rather than dialing real SSH.
type fakeConn struct {
	host       string
	files      map[string][]byte
	responses  map[string]fakeResponse
	defaultRC  int
	execCalled []string
}

type fakeResponse struct {
	stdout string
	stderr string
	rc     int
}

func newFakeConn() *fakeConn {
	return &fakeConn{host: "test-host", files: map[string][]byte{}, responses: map[string]fakeResponse{}}
}

func (f *fakeConn) Host() string { return f.host }

func (f *fakeConn) Exec(_ context.Context, cmd string) (string, string, int, error) {
	f.execCalled = append(f.execCalled, cmd)
	if resp, ok := f.responses[cmd]; ok {
		return resp.stdout, resp.stderr, resp.rc, nil
	}
	for pattern, resp := range f.responses {
		if strings.Contains(cmd, pattern) {
			return resp.stdout, resp.stderr, resp.rc, nil
		}
	}
	return "", "", f.defaultRC, nil
}

func (f *fakeConn) ReadFile(_ context.Context, path string) ([]byte, error) {
	data, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("not found: %s", path)
	}
	return data, nil
}

func (f *fakeConn) WriteFile(_ context.Context, path string, data []byte, _ os.FileMode) error {
	f.files[path] = data
	return nil
}

func (f *fakeConn) Close() error { return nil }

func TestCommand_Success(t *testing.T) {
	conn := newFakeConn()
	res, err := Command(context.Background(), conn, Args{Raw: "echo hi"}, nil)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.False(t, res.Failed)
}

func TestCommand_NonZeroExit(t *testing.T) {
	conn := newFakeConn()
	conn.responses["false"] = fakeResponse{rc: 1}
	res, err := Command(context.Background(), conn, Args{Raw: "false"}, nil)
	require.NoError(t, err)
	assert.True(t, res.Failed)
}

func TestCopy_SkipsWhenContentMatches(t *testing.T) {
	tmp := t.TempDir() + "/src.txt"
	require.NoError(t, os.WriteFile(tmp, []byte("hello"), 0o644))

	conn := newFakeConn()
	conn.files["/etc/dest.txt"] = []byte("hello")

	res, err := Copy(context.Background(), conn, Args{Params: map[string]string{
		"src": tmp, "dest": "/etc/dest.txt",
	}}, nil)
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestCopy_WritesWhenDifferent(t *testing.T) {
	tmp := t.TempDir() + "/src.txt"
	require.NoError(t, os.WriteFile(tmp, []byte("hello"), 0o644))

	conn := newFakeConn()
	conn.files["/etc/dest.txt"] = []byte("old content")

	res, err := Copy(context.Background(), conn, Args{Params: map[string]string{
		"src": tmp, "dest": "/etc/dest.txt",
	}}, nil)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "hello", string(conn.files["/etc/dest.txt"]))
}

func TestFile_AbsentAlreadyGone(t *testing.T) {
	conn := newFakeConn()
	conn.responses["test -e"] = fakeResponse{rc: 1}
	res, err := File(context.Background(), conn, Args{Params: map[string]string{
		"path": "/tmp/gone", "state": "absent",
	}}, nil)
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestApt_AlreadyInstalled(t *testing.T) {
	conn := newFakeConn()
	conn.responses["dpkg -s"] = fakeResponse{rc: 0}
	res, err := Apt(context.Background(), conn, Args{Params: map[string]string{"name": "curl"}}, nil)
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestApt_NotInstalled(t *testing.T) {
	conn := newFakeConn()
	conn.responses["dpkg -s"] = fakeResponse{rc: 1}
	conn.responses["apt-get install"] = fakeResponse{rc: 0}
	res, err := Apt(context.Background(), conn, Args{Params: map[string]string{"name": "curl"}}, nil)
	require.NoError(t, err)
	assert.True(t, res.Changed)
}

func TestService_AlreadyStarted(t *testing.T) {
	conn := newFakeConn()
	conn.responses["is-active"] = fakeResponse{rc: 0}
	res, err := Service(context.Background(), conn, Args{Params: map[string]string{
		"name": "nginx", "state": "started",
	}}, nil)
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestService_NeedsStart(t *testing.T) {
	conn := newFakeConn()
	conn.responses["is-active"] = fakeResponse{rc: 3}
	conn.responses["systemctl start"] = fakeResponse{rc: 0}
	res, err := Service(context.Background(), conn, Args{Params: map[string]string{
		"name": "nginx", "state": "started",
	}}, nil)
	require.NoError(t, err)
	assert.True(t, res.Changed)
}

func TestLineinfile_AppendsWhenMissing(t *testing.T) {
	conn := newFakeConn()
	conn.files["/etc/hosts"] = []byte("127.0.0.1 localhost\n")
	res, err := Lineinfile(context.Background(), conn, Args{Params: map[string]string{
		"path": "/etc/hosts", "line": "10.0.0.1 myhost",
	}}, nil)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Contains(t, string(conn.files["/etc/hosts"]), "10.0.0.1 myhost")
}

func TestLineinfile_NoopWhenPresent(t *testing.T) {
	conn := newFakeConn()
	conn.files["/etc/hosts"] = []byte("127.0.0.1 localhost\n10.0.0.1 myhost\n")
	res, err := Lineinfile(context.Background(), conn, Args{Params: map[string]string{
		"path": "/etc/hosts", "line": "10.0.0.1 myhost",
	}}, nil)
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestLineinfile_RemovesByRegexp(t *testing.T) {
	conn := newFakeConn()
	conn.files["/etc/hosts"] = []byte("127.0.0.1 localhost\n10.0.0.1 myhost\n")
	res, err := Lineinfile(context.Background(), conn, Args{Params: map[string]string{
		"path": "/etc/hosts", "state": "absent", "regexp": "^10\\.0\\.0\\.1",
	}}, nil)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.NotContains(t, string(conn.files["/etc/hosts"]), "myhost")
}

func TestTemplate_RendersAndWrites(t *testing.T) {
	tmp := t.TempDir() + "/tmpl.conf"
	require.NoError(t, os.WriteFile(tmp, []byte("server {{ name }}"), 0o644))

	conn := newFakeConn()
	res, err := Template(context.Background(), conn, Args{Params: map[string]string{
		"src": tmp, "dest": "/etc/app.conf",
	}}, map[string]string{"name": "web01"})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "server web01", string(conn.files["/etc/app.conf"]))
}

func TestRegistry_LookupKnownAndUnknown(t *testing.T) {
	reg := NewRegistry()
	m, err := reg.Lookup("apt")
	require.NoError(t, err)
	assert.NotNil(t, m)

	_, err = reg.Lookup("does-not-exist")
	assert.Error(t, err)
}
