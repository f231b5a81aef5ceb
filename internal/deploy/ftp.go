package deploy

import (
	"context"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPDeployer uploads the site to a remote FTP directory, creating it if
// missing.
type FTPDeployer struct {
	Host      string
	User      string
	Pass      string
	RemoteDir string
	Timeout   time.Duration
}

func (d *FTPDeployer) Target() string { return "ftp" }

func (d *FTPDeployer) Deploy(ctx context.Context, srcDir string) (string, error) {
	entries, err := siteFiles(srcDir)
	if err != nil {
		return "", err
	}

	host := d.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}
	timeout := d.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return "", eris.Wrapf(err, "deploy: ftp dial %s", host)
	}
	defer conn.Quit() //nolint:errcheck

	user, pass := d.User, d.Pass
	if user == "" {
		user, pass = "anonymous", "anonymous@"
	}
	if err := conn.Login(user, pass); err != nil {
		return "", eris.Wrap(err, "deploy: ftp login")
	}

	if err := mkdirAll(conn, d.RemoteDir); err != nil {
		return "", err
	}

	for _, name := range entries {
		if err := ctx.Err(); err != nil {
			return "", eris.Wrap(err, "deploy: canceled")
		}
		if err := d.upload(conn, filepath.Join(srcDir, name), path.Join(d.RemoteDir, name)); err != nil {
			return "", err
		}
	}

	zap.L().Info("deployed site",
		zap.String("target", d.Target()),
		zap.String("host", d.Host),
		zap.String("dest", d.RemoteDir),
		zap.Int("files", len(entries)),
	)
	return d.Host + ":" + d.RemoteDir, nil
}

func (d *FTPDeployer) upload(conn *ftp.ServerConn, local, remote string) error {
	f, err := os.Open(local)
	if err != nil {
		return eris.Wrapf(err, "deploy: open %s", local)
	}
	defer f.Close() //nolint:errcheck

	if err := conn.Stor(remote, f); err != nil {
		return eris.Wrapf(err, "deploy: ftp store %s", remote)
	}
	return nil
}

// mkdirAll creates each segment of the remote path. MKD on an existing
// directory fails on most servers, so errors here are tolerated and left
// to surface on the following STOR.
func mkdirAll(conn *ftp.ServerConn, dir string) error {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return nil
	}
	cur := ""
	for _, seg := range strings.Split(dir, "/") {
		cur = cur + "/" + seg
		if err := conn.MakeDir(cur); err != nil {
			zap.L().Debug("deploy: mkdir skipped", zap.String("dir", cur), zap.Error(err))
		}
	}
	return nil
}
