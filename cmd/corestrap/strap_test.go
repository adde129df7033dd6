package main

import (
	"bufio"
	"context"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/corestrap/corestrap"
	"github.com/corestrap/corestrap/internal/fetch"
	"github.com/corestrap/corestrap/internal/validate"
	"github.com/corestrap/corestrap/internal/workspace"
)

// fakeFetcher records attempted URLs and fails the configured ones.
type fakeFetcher struct {
	fail    map[string]bool
	fetched []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url, dest string) error {
	f.fetched = append(f.fetched, url)
	if f.fail[url] {
		return &fetch.NotFoundError{URL: url}
	}
	return ioutil.WriteFile(dest, []byte("archive"), 0644)
}

// fakeExtractor lays down the minimal tree the customization steps
// expect.
type fakeExtractor struct {
	calls int
	fail  bool
}

func (e *fakeExtractor) Extract(ctx context.Context, archive, dir string) error {
	e.calls++
	if e.fail {
		return errors.New("gzip: invalid header")
	}
	for _, sub := range []string{"etc/init", "etc/network", "etc/apt", "bin"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return err
		}
	}
	return ioutil.WriteFile(filepath.Join(dir, "etc", "shadow"), []byte("root:*:15101:0:99999:7:::\n"), 0640)
}

func testStrap(t *testing.T, dist, arch string) (*strapctx, *fakeFetcher, *fakeExtractor) {
	t.Helper()
	hostDir := t.TempDir()
	hostSources := filepath.Join(hostDir, "sources.list")
	if err := ioutil.WriteFile(hostSources, []byte("deb http://mirror.example.com/ubuntu precise main universe\n"), 0644); err != nil {
		t.Fatal(err)
	}
	hostResolv := filepath.Join(hostDir, "resolv.conf")
	if err := ioutil.WriteFile(hostResolv, []byte("# comment\nnameserver 10.0.0.1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	fetcher := &fakeFetcher{fail: map[string]bool{}}
	extractor := &fakeExtractor{}
	return &strapctx{
		dist:        dist,
		arch:        arch,
		dir:         t.TempDir(),
		euid:        0,
		fetcher:     fetcher,
		extractor:   extractor,
		stdin:       bufio.NewReader(strings.NewReader("")),
		stdout:      ioutil.Discard,
		interactive: false,
		getenv:      func(string) string { return "" },
		hostSources: hostSources,
		hostResolv:  hostResolv,
	}, fetcher, extractor
}

func TestRunReleasePreferred(t *testing.T) {
	s, fetcher, extractor := testStrap(t, "precise", "armhf")
	if err := s.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	release := corestrap.ReleaseImage("precise", "armhf")
	if got, want := len(fetcher.fetched), 1; got != want {
		t.Fatalf("%d fetches, want %d (daily must not be attempted): %v", got, want, fetcher.fetched)
	}
	if got, want := fetcher.fetched[0], release.URL; got != want {
		t.Errorf("fetched %q, want %q", got, want)
	}
	if got, want := extractor.calls, 1; got != want {
		t.Errorf("%d extractions, want %d", got, want)
	}

	// The archive must not survive a successful run, the tree must.
	if _, err := os.Stat(filepath.Join(s.dir, release.Filename)); !os.IsNotExist(err) {
		t.Errorf("archive still present: stat err %v", err)
	}
	if !workspace.HasImage(s.dir) {
		t.Error("no extracted tree after successful run")
	}

	shadow, err := ioutil.ReadFile(filepath.Join(s.dir, "etc", "shadow"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(shadow), "root::15101:0:99999:7:::\n"; got != want {
		t.Errorf("etc/shadow = %q, want %q", got, want)
	}

	sources, err := ioutil.ReadFile(filepath.Join(s.dir, "etc", "apt", "sources.list"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(sources), "\n"), "\n")
	if got, want := len(lines), 6; got != want {
		t.Errorf("sources.list has %d lines, want %d:\n%s", got, want, sources)
	}
	if !strings.Contains(string(sources), "http://mirror.example.com/ubuntu-ports/ precise-updates") {
		t.Errorf("sources.list does not use the detected local mirror:\n%s", sources)
	}
}

func TestRunFallsBackToDaily(t *testing.T) {
	s, fetcher, _ := testStrap(t, "precise", "armhf")
	release := corestrap.ReleaseImage("precise", "armhf")
	daily := corestrap.DailyImage("precise", "armhf")
	fetcher.fail[release.URL] = true

	if err := s.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got, want := strings.Join(fetcher.fetched, " "), release.URL+" "+daily.URL; got != want {
		t.Errorf("fetch order %q, want %q", got, want)
	}
	if _, err := os.Stat(filepath.Join(s.dir, daily.Filename)); !os.IsNotExist(err) {
		t.Errorf("archive still present: stat err %v", err)
	}
}

func TestRunBothFail(t *testing.T) {
	s, fetcher, extractor := testStrap(t, "precise", "armhf")
	fetcher.fail[corestrap.ReleaseImage("precise", "armhf").URL] = true
	fetcher.fail[corestrap.DailyImage("precise", "armhf").URL] = true

	err := s.run(context.Background())
	if err == nil {
		t.Fatal("expected error when both candidates fail, got nil")
	}
	if _, ok := err.(*FetchError); !ok {
		t.Errorf("got %T, want *FetchError", err)
	}
	if extractor.calls != 0 {
		t.Errorf("extractor ran %d times despite failed retrieval", extractor.calls)
	}
	if workspace.HasImage(s.dir) {
		t.Error("customization ran despite failed retrieval")
	}
}

func TestRunOneiricReleaseVersion(t *testing.T) {
	s, fetcher, _ := testStrap(t, "oneiric", "armel")
	if err := s.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got, want := fetcher.fetched[0], "http://cdimage.ubuntu.com/ubuntu-core/releases/11.10/release/ubuntu-core-11.10-core-armel.tar.gz"; got != want {
		t.Errorf("fetched %q, want %q", got, want)
	}
}

func TestRunRejectsUnknownArguments(t *testing.T) {
	s, fetcher, _ := testStrap(t, "quantal", "armhf")
	err := s.run(context.Background())
	if err == nil {
		t.Fatal("expected error for unknown distribution, got nil")
	}
	if _, ok := err.(*validate.ArgumentError); !ok {
		t.Errorf("got %T, want *validate.ArgumentError", err)
	}
	if len(fetcher.fetched) != 0 {
		t.Errorf("network activity before argument validation: %v", fetcher.fetched)
	}
}

func TestRunRequiresRoot(t *testing.T) {
	// Privileges are checked even before the arguments.
	s, fetcher, _ := testStrap(t, "quantal", "bogus")
	s.euid = 1000
	err := s.run(context.Background())
	if err == nil {
		t.Fatal("expected error for non-root run, got nil")
	}
	if _, ok := err.(*validate.PrivilegeError); !ok {
		t.Errorf("got %T, want *validate.PrivilegeError", err)
	}
	if len(fetcher.fetched) != 0 {
		t.Errorf("network activity despite missing privileges: %v", fetcher.fetched)
	}
}

func TestRunDeclinesWipeWithoutTerminal(t *testing.T) {
	s, fetcher, _ := testStrap(t, "precise", "armhf")
	for _, sub := range []string{"etc", "bin"} {
		if err := os.Mkdir(filepath.Join(s.dir, sub), 0755); err != nil {
			t.Fatal(err)
		}
	}
	err := s.run(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if _, ok := err.(*workspace.UserDeclinedError); !ok {
		t.Errorf("got %T, want *workspace.UserDeclinedError", err)
	}
	if len(fetcher.fetched) != 0 {
		t.Errorf("network activity despite declined wipe: %v", fetcher.fetched)
	}
}

func TestRunWipesAfterConfirmation(t *testing.T) {
	s, _, _ := testStrap(t, "precise", "armhf")
	s.interactive = true
	// One yes for the working directory, one for the wipe.
	s.stdin = bufio.NewReader(strings.NewReader("y\ny\n"))
	for _, sub := range []string{"etc", "bin"} {
		if err := os.Mkdir(filepath.Join(s.dir, sub), 0755); err != nil {
			t.Fatal(err)
		}
	}
	stale := filepath.Join(s.dir, "etc", "stale")
	if err := ioutil.WriteFile(stale, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale file survived the wipe: stat err %v", err)
	}
	if !workspace.HasImage(s.dir) {
		t.Error("no extracted tree after wipe and re-extraction")
	}
}

func TestRunAbortedAtInitialPrompt(t *testing.T) {
	s, fetcher, _ := testStrap(t, "precise", "armhf")
	s.interactive = true
	s.stdin = bufio.NewReader(strings.NewReader("n\n"))
	err := s.run(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if _, ok := err.(*workspace.UserDeclinedError); !ok {
		t.Errorf("got %T, want *workspace.UserDeclinedError", err)
	}
	if len(fetcher.fetched) != 0 {
		t.Errorf("network activity despite declination: %v", fetcher.fetched)
	}
}

func TestRunExtractionFailure(t *testing.T) {
	s, _, extractor := testStrap(t, "precise", "armhf")
	extractor.fail = true
	err := s.run(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if _, ok := err.(*ExtractionError); !ok {
		t.Errorf("got %T, want *ExtractionError", err)
	}
	// The archive is cleaned up even when extraction fails.
	release := corestrap.ReleaseImage("precise", "armhf")
	if _, err := os.Stat(filepath.Join(s.dir, release.Filename)); !os.IsNotExist(err) {
		t.Errorf("archive still present: stat err %v", err)
	}
}
