// Package validate implements the preflight checks that must all pass
// before corestrap touches the network or the workspace.
package validate

import (
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/corestrap/corestrap"
)

// PrivilegeError is returned when the invoking user is not root.
type PrivilegeError struct {
	UID int
}

func (e *PrivilegeError) Error() string {
	return fmt.Sprintf("must be run as root (effective uid %d)", e.UID)
}

// ArgumentError is returned for a missing or unknown positional
// argument. Value is empty when the argument was not supplied at all.
type ArgumentError struct {
	Name  string
	Value string
	Known []string
}

func (e *ArgumentError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("missing %s argument (one of %s)", e.Name, strings.Join(e.Known, ", "))
	}
	return fmt.Sprintf("unknown %s %q (one of %s)", e.Name, e.Value, strings.Join(e.Known, ", "))
}

// DependencyMissingError is returned when a required external utility
// is not in $PATH.
type DependencyMissingError struct {
	Tool string
}

func (e *DependencyMissingError) Error() string {
	return fmt.Sprintf("required utility %q not found in $PATH", e.Tool)
}

// Privileges verifies that euid identifies the root user.
func Privileges(euid int) error {
	if euid != 0 {
		return &PrivilegeError{UID: euid}
	}
	return nil
}

func keys(m map[string]bool) []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

// Arguments verifies that dist and arch are members of the supported
// enumerations.
func Arguments(dist, arch string) error {
	if !corestrap.Distributions[dist] {
		return &ArgumentError{Name: "distribution", Value: dist, Known: keys(corestrap.Distributions)}
	}
	if !corestrap.Architectures[arch] {
		return &ArgumentError{Name: "architecture", Value: arch, Known: keys(corestrap.Architectures)}
	}
	return nil
}

// Tools verifies that each named utility can be found in $PATH.
func Tools(names ...string) error {
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			return &DependencyMissingError{Tool: name}
		}
	}
	return nil
}
