// Package mirror guesses a local Ubuntu package mirror from the host's
// apt configuration and renders the sources.list for the target root
// filesystem.
package mirror

import "strings"

// DefaultHost serves the official ports archive. The ARM architectures
// live on the ports archive, not on the main one, which is why the
// default is not archive.ubuntu.com.
const DefaultHost = "ports.ubuntu.com"

// Detect scans the contents of the host's sources.list for the first
// active binary repository line of a main-section Ubuntu archive and
// returns the host name of its URL. It returns "" when no such line
// exists.
func Detect(sourcesList string) string {
	for _, line := range strings.Split(sourcesList, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		if fields[0] != "deb" {
			continue // inactive or deb-src
		}
		if !strings.HasPrefix(fields[1], "http://") {
			continue
		}
		if !strings.Contains(line, "ubuntu") || !strings.Contains(line, "main") {
			continue
		}
		host := strings.TrimPrefix(fields[1], "http://")
		if idx := strings.IndexByte(host, '/'); idx != -1 {
			host = host[:idx]
		}
		return host
	}
	return ""
}

// Host decides which archive host the target's sources.list points at:
// a detected local mirror is preferred, but the official ubuntu.com
// hosts are not usable (they do not carry the ports architectures), so
// those fall back to the public ports archive just like an empty
// detection result.
func Host(detected string) string {
	if detected == "" || strings.Contains(detected, "ubuntu.com") {
		return DefaultHost
	}
	return detected
}

// Sources renders the six sources.list lines for dist: a deb/deb-src
// pair each for the base, -security and -updates components.
func Sources(host, dist string) string {
	var b strings.Builder
	for _, component := range []string{dist, dist + "-security", dist + "-updates"} {
		for _, kind := range []string{"deb", "deb-src"} {
			b.WriteString(kind + " http://" + host + "/ubuntu-ports/ " + component + " main universe multiverse restricted\n")
		}
	}
	return b.String()
}
