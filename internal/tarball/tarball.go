// Package tarball unpacks gzip-compressed tar archives.
package tarball

import (
	"context"
	"os"
	"os/exec"

	"golang.org/x/xerrors"
)

// An Extractor unpacks archive into dir.
type Extractor interface {
	Extract(ctx context.Context, archive, dir string) error
}

// Tar extracts by invoking system tar: a root filesystem archive
// contains device nodes, hard links and files owned by arbitrary uids,
// which tar restores faithfully when run as root.
type Tar struct{}

// Tool is the external utility Tar depends on; the caller verifies its
// presence before starting any work.
const Tool = "tar"

func (Tar) Extract(ctx context.Context, archive, dir string) error {
	cmd := exec.CommandContext(ctx, Tool, "--numeric-owner", "-x", "-z", "-f", archive, "-C", dir)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return xerrors.Errorf("%v: %v", cmd.Args, err)
	}
	return nil
}
