package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"

	"github.com/corestrap/corestrap"
	"github.com/corestrap/corestrap/internal/fetch"
	"github.com/corestrap/corestrap/internal/mirror"
	"github.com/corestrap/corestrap/internal/rootfs"
	"github.com/corestrap/corestrap/internal/tarball"
	"github.com/corestrap/corestrap/internal/validate"
	"github.com/corestrap/corestrap/internal/workspace"
	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

// FetchError means neither the release nor the daily image could be
// retrieved. There is no further fallback.
type FetchError struct {
	Release string
	Daily   string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("no image could be retrieved (tried %s, then %s)", e.Release, e.Daily)
}

// ExtractionError means the retrieved archive could not be unpacked.
type ExtractionError struct {
	Archive string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.Archive, e.Err)
}

// strapctx holds the configuration and capabilities of one run.
type strapctx struct {
	dist string
	arch string
	dir  string
	euid int

	fetcher   fetch.Fetcher
	extractor tarball.Extractor

	stdin       *bufio.Reader
	stdout      io.Writer
	interactive bool

	getenv      func(string) string
	hostSources string
	hostResolv  string
}

// confirm asks question and turns everything but a clear yes into a
// UserDeclinedError. When no terminal is attached, destructive steps
// are declined rather than hanging on a prompt.
func (s *strapctx) confirm(question string) error {
	if !s.interactive {
		return &workspace.UserDeclinedError{Question: question}
	}
	ok, err := workspace.Confirm(s.stdin, s.stdout, question)
	if err != nil {
		return err
	}
	if !ok {
		return &workspace.UserDeclinedError{Question: question}
	}
	return nil
}

func (s *strapctx) run(ctx context.Context) error {
	if err := validate.Privileges(s.euid); err != nil {
		return err
	}
	if err := validate.Arguments(s.dist, s.arch); err != nil {
		return err
	}
	if err := workspace.Check(s.dir); err != nil {
		return err
	}
	if err := validate.Tools(tarball.Tool); err != nil {
		return err
	}

	// The initial confirmation is informational, so unattended runs
	// proceed without it. The wipe below is destructive and never
	// happens without an explicit yes.
	if s.interactive {
		if err := s.confirm(fmt.Sprintf("Building a %s root filesystem for %s in %s. Continue?", s.dist, s.arch, s.dir)); err != nil {
			return err
		}
	}
	if workspace.HasImage(s.dir) {
		if err := s.confirm(fmt.Sprintf("%s already contains an extracted root filesystem. Delete all of its contents?", s.dir)); err != nil {
			return err
		}
		log.Printf("wiping %s", s.dir)
		if err := workspace.Wipe(s.dir); err != nil {
			return err
		}
	}

	archive, err := s.retrieve(ctx)
	if err != nil {
		return err
	}

	log.Printf("extracting %s", archive)
	extractErr := s.extractor.Extract(ctx, archive, s.dir)
	// The archive is an intermediate artifact and is not kept around,
	// not even when extraction failed.
	if err := os.Remove(archive); err != nil {
		log.Printf("removing %s: %v", archive, err)
	}
	if extractErr != nil {
		return &ExtractionError{Archive: archive, Err: extractErr}
	}

	failed := rootfs.Customize(s.dir, s.readHostFile(s.hostResolv), rootfs.ProxiesFromEnv(s.getenv))
	failed += s.resolveMirror()

	if failed > 0 {
		return xerrors.Errorf("%d configuration step(s) failed; the filesystem in %s may need manual fixes", failed, s.dir)
	}
	return nil
}

// retrieve downloads the image into the workspace: the stable release
// image first, the rolling daily build as fallback. It returns the path
// of the downloaded archive.
func (s *strapctx) retrieve(ctx context.Context) (string, error) {
	release := corestrap.ReleaseImage(s.dist, s.arch)
	archive := filepath.Join(s.dir, release.Filename)
	log.Printf("downloading %s to %s", release.URL, archive)
	err := s.fetcher.Fetch(ctx, release.URL, archive)
	if err == nil {
		return archive, nil
	}
	log.Printf("release image not available (%v), falling back to the daily build", err)

	daily := corestrap.DailyImage(s.dist, s.arch)
	archive = filepath.Join(s.dir, daily.Filename)
	log.Printf("downloading %s to %s", daily.URL, archive)
	if err := s.fetcher.Fetch(ctx, daily.URL, archive); err != nil {
		log.Printf("daily image not available either: %v", err)
		return "", &FetchError{Release: release.URL, Daily: daily.URL}
	}
	return archive, nil
}

// readHostFile reads a host configuration file whose absence is not
// fatal.
func (s *strapctx) readHostFile(fn string) string {
	b, err := ioutil.ReadFile(fn)
	if err != nil {
		log.Printf("reading %s: %v", fn, err)
		return ""
	}
	return string(b)
}

// resolveMirror writes the target's sources.list, pointing at a local
// mirror when one can be inferred from the host's apt configuration.
// Like the customization steps, this write is best-effort; the return
// value is the number of failures (0 or 1).
func (s *strapctx) resolveMirror() int {
	host := mirror.Host(mirror.Detect(s.readHostFile(s.hostSources)))
	log.Printf("using package archive %s", host)
	fn := filepath.Join(s.dir, "etc", "apt", "sources.list")
	if err := renameio.WriteFile(fn, []byte(mirror.Sources(host, s.dist)), 0644); err != nil {
		log.Printf("writing %s: %v", fn, err)
		return 1
	}
	return 0
}
