// Package deploy publishes a rendered site directory to its destination:
// a local publish directory (a static-site checkout) or an FTP host.
package deploy

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/home-economics/pricemaps/internal/config"
)

// Deployer publishes the contents of a local directory.
type Deployer interface {
	// Deploy publishes srcDir and returns the destination it wrote to.
	Deploy(ctx context.Context, srcDir string) (string, error)
	// Target names the deployment mechanism for run history.
	Target() string
}

// New builds the deployer selected by the configured mode.
func New(cfg config.DeployConfig) (Deployer, error) {
	switch cfg.Mode {
	case "", "copy":
		if cfg.PublishDir == "" {
			return nil, eris.New("deploy: publish_dir not configured")
		}
		return &CopyDeployer{Dir: cfg.PublishDir}, nil
	case "ftp":
		if cfg.FTPHost == "" {
			return nil, eris.New("deploy: ftp_host not configured")
		}
		return &FTPDeployer{
			Host:      cfg.FTPHost,
			User:      cfg.FTPUser,
			Pass:      cfg.FTPPass,
			RemoteDir: cfg.RemoteDir,
		}, nil
	default:
		return nil, eris.Errorf("deploy: unknown mode %q", cfg.Mode)
	}
}

// CopyDeployer copies the site into a local publish directory, typically
// a GitHub Pages checkout committed separately.
type CopyDeployer struct {
	Dir string
}

func (d *CopyDeployer) Target() string { return "copy" }

func (d *CopyDeployer) Deploy(ctx context.Context, srcDir string) (string, error) {
	entries, err := siteFiles(srcDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return "", eris.Wrapf(err, "deploy: create publish dir %s", d.Dir)
	}

	for _, name := range entries {
		if err := ctx.Err(); err != nil {
			return "", eris.Wrap(err, "deploy: canceled")
		}
		if err := copyFile(filepath.Join(srcDir, name), filepath.Join(d.Dir, name)); err != nil {
			return "", err
		}
	}

	zap.L().Info("deployed site",
		zap.String("target", d.Target()),
		zap.String("dest", d.Dir),
		zap.Int("files", len(entries)),
	)
	return d.Dir, nil
}

// siteFiles lists the regular files of a rendered site directory.
// Rendering writes a flat directory, so no recursion is needed.
func siteFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "deploy: read site dir %s", dir)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, eris.Errorf("deploy: nothing to publish in %s", dir)
	}
	return names, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "deploy: open %s", src)
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return eris.Wrapf(err, "deploy: create %s", dst)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return eris.Wrapf(err, "deploy: copy to %s", dst)
	}
	return eris.Wrapf(out.Close(), "deploy: close %s", dst)
}
