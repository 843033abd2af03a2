package source

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/foldsync/foldsync/internal/ctxlog"
)

const defaultSSHPort = 22

// sftpDialFunc opens an SFTP session; injected so tests can script remote
// reads without a live host.
type sftpDialFunc func(ctx context.Context, s RemoteHost) (*sftp.Client, func() error, error)

func (r *Resolver) fetchRemote(ctx context.Context, s RemoteHost) ([]byte, error) {
	client, closeConn, err := r.sftpDial(ctx, s)
	if err != nil {
		return nil, unavailable(s, err)
	}
	defer closeConn()

	file, err := client.Open(s.Path)
	if err != nil {
		return nil, unavailable(s, err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, unavailable(s, err)
	}
	ctxlog.FromContext(ctx).Debug("Fetched remote file.", "host", s.Host, "path", s.Path, "bytes", len(data))
	return data, nil
}

// dialSFTP authenticates via the invoker's ssh-agent and verifies the host
// against ~/.ssh/known_hosts.
func dialSFTP(ctx context.Context, s RemoteHost) (*sftp.Client, func() error, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, nil, err
	}
	hostKeys, err := knownhosts.New(filepath.Join(home, ".ssh", "known_hosts"))
	if err != nil {
		return nil, nil, fmt.Errorf("known_hosts: %w", err)
	}

	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, nil, fmt.Errorf("no ssh-agent available (SSH_AUTH_SOCK unset)")
	}
	agentConn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, nil, err
	}

	port := s.Port
	if port == 0 {
		port = defaultSSHPort
	}
	config := &ssh.ClientConfig{
		User:            s.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeysCallback(agent.NewClient(agentConn).Signers)},
		HostKeyCallback: hostKeys,
		Timeout:         30 * time.Second,
	}

	dialer := net.Dialer{Timeout: config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", s.Host, port))
	if err != nil {
		agentConn.Close()
		return nil, nil, err
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, conn.RemoteAddr().String(), config)
	if err != nil {
		conn.Close()
		agentConn.Close()
		return nil, nil, err
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)
	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		agentConn.Close()
		return nil, nil, err
	}
	closeAll := func() error {
		client.Close()
		sshClient.Close()
		return agentConn.Close()
	}
	return client, closeAll, nil
}
