package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// SSHConnection is a Connection backed by a single golang.org/x/crypto/ssh
// client, with file I/O carried over an sftp.Client opened lazily on first
// use. Grounded on the teacher's pkg/executor/connector.go and remote.go
// (dial/auth/host-key handling, sftp-based file transfer), narrowed to the
// Exec/ReadFile/WriteFile capability shape.
type SSHConnection struct {
	host    string
	client  *ssh.Client
	sftpCli *sftp.Client
	logs    Logs
}

// DialSSH connects to hostAddr as user, authenticating via an ssh-agent if
// enableAgent is true, falling back to the private key at privateKeyPath.
// hostName is the inventory name recorded for logging/Host().
func DialSSH(ctx context.Context, hostAddr, hostName, user, privateKeyPath string, enableAgent bool, timeout time.Duration, logs Logs) (*SSHConnection, error) {
	return DialSSHWithProxy(ctx, hostAddr, hostName, user, privateKeyPath, enableAgent, timeout, nil, logs)
}

// DialSSHWithProxy is DialSSH with an optional ProxyCommand (e.g.
// ansible_ssh_proxy_command): proxyCommand, if non-empty, is run as a
// subprocess and the SSH transport is tunneled over its stdin/stdout
// instead of a direct TCP dial. Grounded on the teacher's
// Connector.dialWithProxy/substituteProxyCommand.
func DialSSHWithProxy(ctx context.Context, hostAddr, hostName, user, privateKeyPath string, enableAgent bool, timeout time.Duration, proxyCommand []string, logs Logs) (*SSHConnection, error) {
	cfg, err := sshClientConfig(user, privateKeyPath, enableAgent, timeout)
	if err != nil {
		return nil, fmt.Errorf("ssh config for %s: %w", hostAddr, err)
	}

	addr := hostAddr
	if _, _, splitErr := net.SplitHostPort(addr); splitErr != nil {
		addr = net.JoinHostPort(addr, "22")
	}

	if len(proxyCommand) == 0 {
		dialer := net.Dialer{Timeout: timeout}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		cConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
		if err != nil {
			return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
		}
		return &SSHConnection{host: hostName, client: ssh.NewClient(cConn, chans, reqs), logs: logs}, nil
	}

	cmdArgs, err := substituteProxyCommand(user, addr, proxyCommand)
	if err != nil {
		return nil, fmt.Errorf("substitute proxy command for %s: %w", addr, err)
	}
	client, err := dialWithProxy(ctx, addr, cmdArgs, cfg)
	if err != nil {
		return nil, fmt.Errorf("dial %s via proxy command %v: %w", addr, cmdArgs, err)
	}
	return &SSHConnection{host: hostName, client: client, logs: logs}, nil
}

// substituteProxyCommand expands the %h/%p/%r placeholders (host, port,
// remote user) an ansible_ssh_proxy_command value may contain.
func substituteProxyCommand(user, addr string, proxyCommand []string) ([]string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("split host/port of %q: %w", addr, err)
	}
	out := make([]string, len(proxyCommand))
	for i, arg := range proxyCommand {
		arg = strings.ReplaceAll(arg, "%h", host)
		arg = strings.ReplaceAll(arg, "%p", port)
		arg = strings.ReplaceAll(arg, "%r", user)
		out[i] = arg
	}
	return out, nil
}

// dialWithProxy runs cmdArgs as a subprocess and pipes the SSH transport
// through its stdin/stdout via an in-process net.Pipe, since the ssh
// package only speaks to a net.Conn.
func dialWithProxy(ctx context.Context, addr string, cmdArgs []string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	pipeClient, pipeServer := net.Pipe()

	cmd := exec.CommandContext(ctx, cmdArgs[0], cmdArgs[1:]...) //nolint:gosec // operator-provided proxy command
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("proxy command stdout pipe: %w", err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("proxy command stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start proxy command: %w", err)
	}

	go func() { defer stdin.Close(); _, _ = io.Copy(stdin, pipeServer) }()
	go func() { _, _ = io.Copy(pipeServer, stdout) }()
	go func() {
		_ = cmd.Wait()
		pipeClient.Close()
		pipeServer.Close()
	}()

	cConn, chans, reqs, err := ssh.NewClientConn(pipeClient, addr, cfg)
	if err != nil {
		pipeClient.Close()
		pipeServer.Close()
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return nil, fmt.Errorf("ssh handshake over proxy command: %w", err)
	}
	return ssh.NewClient(cConn, chans, reqs), nil
}

func sshClientConfig(user, privateKeyPath string, enableAgent bool, timeout time.Duration) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	if enableAgent {
		sock := os.Getenv("SSH_AUTH_SOCK")
		if sock == "" {
			return nil, fmt.Errorf("ssh agent requested but SSH_AUTH_SOCK is unset")
		}
		conn, err := net.Dial("unix", sock)
		if err != nil {
			return nil, fmt.Errorf("connect to ssh agent: %w", err)
		}
		authMethods = append(authMethods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
	}

	if privateKeyPath != "" {
		keyData, err := os.ReadFile(privateKeyPath) //nolint:gosec // operator-provided key path
		if err != nil {
			return nil, fmt.Errorf("read private key %s: %w", privateKeyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, fmt.Errorf("parse private key %s: %w", privateKeyPath, err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("no ssh auth method available (need agent or private key)")
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // matches teacher: no known_hosts management in scope
		Timeout:         timeout,
	}, nil
}

// Host implements Connection.
func (c *SSHConnection) Host() string { return c.host }

// Exec implements Connection by opening one ssh session per call, matching
// the teacher's sshRun shape (a fresh session per command, no session
// reuse).
func (c *SSHConnection) Exec(ctx context.Context, cmd string) (stdout, stderr string, rc int, err error) {
	session, err := c.client.NewSession()
	if err != nil {
		return "", "", -1, fmt.Errorf("open ssh session: %w", err)
	}
	defer session.Close() //nolint

	var outBuf, errBuf bytes.Buffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGINT)
		return outBuf.String(), errBuf.String(), -1, ctx.Err()
	case runErr := <-done:
		if runErr == nil {
			return outBuf.String(), errBuf.String(), 0, nil
		}
		if exitErr, ok := runErr.(*ssh.ExitError); ok {
			return outBuf.String(), errBuf.String(), exitErr.ExitStatus(), nil
		}
		return outBuf.String(), errBuf.String(), -1, runErr
	}
}

func (c *SSHConnection) sftp() (*sftp.Client, error) {
	if c.sftpCli != nil {
		return c.sftpCli, nil
	}
	cli, err := sftp.NewClient(c.client)
	if err != nil {
		return nil, fmt.Errorf("open sftp client: %w", err)
	}
	c.sftpCli = cli
	return cli, nil
}

// ReadFile implements Connection via sftp.
func (c *SSHConnection) ReadFile(_ context.Context, path string) ([]byte, error) {
	cli, err := c.sftp()
	if err != nil {
		return nil, err
	}
	f, err := cli.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open remote %s: %w", path, err)
	}
	defer f.Close() //nolint

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("read remote %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

// WriteFile implements Connection via sftp.
func (c *SSHConnection) WriteFile(_ context.Context, path string, data []byte, mode os.FileMode) error {
	cli, err := c.sftp()
	if err != nil {
		return err
	}
	f, err := cli.Create(path)
	if err != nil {
		return fmt.Errorf("create remote %s: %w", path, err)
	}
	defer f.Close() //nolint

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write remote %s: %w", path, err)
	}
	if err := cli.Chmod(path, mode); err != nil {
		return fmt.Errorf("chmod remote %s: %w", path, err)
	}
	return nil
}

// Close implements Connection.
func (c *SSHConnection) Close() error {
	if c.sftpCli != nil {
		_ = c.sftpCli.Close()
	}
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
