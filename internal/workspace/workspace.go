// Package workspace guards the directory that the root filesystem is
// extracted into.
package workspace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// UnsafeWorkspaceError is returned when the workspace directory is the
// filesystem root.
type UnsafeWorkspaceError struct {
	Dir string
}

func (e *UnsafeWorkspaceError) Error() string {
	return fmt.Sprintf("refusing to operate on the filesystem root (%s)", e.Dir)
}

// UserDeclinedError is returned when a confirmation prompt was answered
// no, or could not be asked at all.
type UserDeclinedError struct {
	Question string
}

func (e *UserDeclinedError) Error() string {
	return fmt.Sprintf("aborted: %s", e.Question)
}

// Check returns an error if dir is the filesystem root. The comparison
// is by device and inode so that e.g. bind mounts of / are caught, too.
func Check(dir string) error {
	var st, root unix.Stat_t
	if err := unix.Stat(dir, &st); err != nil {
		return xerrors.Errorf("stat %s: %v", dir, err)
	}
	if err := unix.Stat("/", &root); err != nil {
		return xerrors.Errorf("stat /: %v", err)
	}
	if st.Dev == root.Dev && st.Ino == root.Ino {
		return &UnsafeWorkspaceError{Dir: dir}
	}
	return nil
}

// HasImage reports whether dir already contains an extracted root
// filesystem, detected by the presence of both marker directories.
func HasImage(dir string) bool {
	for _, marker := range []string{"etc", "bin"} {
		if fi, err := os.Stat(filepath.Join(dir, marker)); err != nil || !fi.IsDir() {
			return false
		}
	}
	return true
}

// Answer is the outcome of interpreting one line of confirmation input.
type Answer int

const (
	// Reprompt means the input was empty or unrecognized and the
	// question must be asked again.
	Reprompt Answer = iota
	Proceed
	Abort
)

// Decide interprets one line of input to a yes/no question. There is no
// default: empty input results in Reprompt.
func Decide(input string) Answer {
	switch input {
	case "y", "Y", "yes":
		return Proceed
	case "n", "N", "no":
		return Abort
	}
	return Reprompt
}

// Interactive reports whether stdin is a terminal a question can be
// asked on.
func Interactive() bool {
	return isatty.IsTerminal(os.Stdin.Fd())
}

// Confirm asks question on w and reads answers from r until one of them
// is a clear yes or no. Running out of input counts as no. Callers with
// more than one question share a single reader so that buffered input
// is not lost between prompts.
func Confirm(r *bufio.Reader, w io.Writer, question string) (bool, error) {
	for {
		fmt.Fprintf(w, "%s [y/n] ", question)
		line, err := r.ReadString('\n')
		switch Decide(strings.TrimSpace(line)) {
		case Proceed:
			return true, nil
		case Abort:
			return false, nil
		}
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
}

// Wipe removes all entries of dir, including hidden ones, but not dir
// itself.
func Wipe(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	names, err := f.Readdirnames(-1)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := os.RemoveAll(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}
