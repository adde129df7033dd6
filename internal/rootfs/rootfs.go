// Package rootfs patches configuration files inside the extracted root
// filesystem so that it boots to a serial console and reaches the
// network on first use.
//
// Each patch is a pure function from old file contents to new file
// contents; Customize applies them and is the only part that touches
// the filesystem.
package rootfs

import (
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
)

// serialJob starts the console picker from runlevels 2 and 3.
const serialJob = `# ttyS0 - getty
#
# This service starts a getty on the serial console chosen on the
# kernel command line.

start on runlevel [23]
stop on runlevel [!23]

respawn
exec /bin/auto-serial-console
`

// serialScript derives the getty invocation from the console= kernel
// parameter. Ports that already have a dedicated upstart job are
// skipped so this generic job never competes with a specific one.
const serialScript = `#!/bin/sh
# Start a getty on the serial port(s) named on the kernel command line.

for arg in $(cat /proc/cmdline); do
	case $arg in
	console=*)
		tty=${arg#console=}
		tty=${tty#/dev/}
		case $tty in
		tty[a-zA-Z]*)
			port=${tty%%,*}
			# a dedicated job outranks this generic one
			[ -f /etc/init/$port.conf ] && continue
			rest=${tty#"$port"}
			rest=${rest#,}
			speed=${rest%%n*}
			bits=${rest#"$speed"}
			bits=${bits#n}
			[ -z "$bits" ] && bits=8
			[ -z "$speed" ] && speed='115200,57600,38400,9600'
			getty_args=''
			[ "$bits" = 8 ] && getty_args='-8 '
			exec /sbin/getty $getty_args$speed $port
			;;
		esac
		;;
	esac
done
`

// interfaces enables loopback and DHCP on the primary ethernet port.
const interfaces = `auto lo
iface lo inet loopback

auto eth0
iface eth0 inet dhcp
`

// ClearRootPassword empties the password hash field of the root
// account, i.e. turns a line starting in root:* into root:. All other
// lines and fields are passed through unmodified.
func ClearRootPassword(shadow string) string {
	lines := strings.Split(shadow, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "root:*") {
			lines[i] = "root:" + strings.TrimPrefix(line, "root:*")
		}
	}
	return strings.Join(lines, "\n")
}

// StripComments removes comment lines from resolv.conf contents.
func StripComments(resolv string) string {
	var kept []string
	for _, line := range strings.Split(resolv, "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// Proxies holds the proxy configuration of the invoking shell. Unset
// variables stay empty strings and are still written out, so the
// target ends up with exactly one line per variable.
type Proxies struct {
	HTTP  string
	HTTPS string
	FTP   string
	None  string
}

// ProxiesFromEnv captures the proxy variables via getenv
// (typically os.Getenv).
func ProxiesFromEnv(getenv func(string) string) Proxies {
	return Proxies{
		HTTP:  getenv("http_proxy"),
		HTTPS: getenv("https_proxy"),
		FTP:   getenv("ftp_proxy"),
		None:  getenv("no_proxy"),
	}
}

// AppendProxies appends the four proxy variable lines to the contents
// of the target's environment file.
func AppendProxies(environment string, p Proxies) string {
	if environment != "" && !strings.HasSuffix(environment, "\n") {
		environment += "\n"
	}
	return environment +
		"http_proxy=" + p.HTTP + "\n" +
		"https_proxy=" + p.HTTPS + "\n" +
		"ftp_proxy=" + p.FTP + "\n" +
		"no_proxy=" + p.None + "\n"
}

// Customize applies all five customization steps to the extracted tree
// rooted at dir. hostResolv is the contents of the host's resolv.conf.
// The steps are best-effort and independent: a failed step is logged
// and counted, and the remaining steps still run. The returned count is
// zero on full success.
func Customize(dir string, hostResolv string, p Proxies) (failed int) {
	path := func(elem ...string) string {
		return filepath.Join(append([]string{dir}, elem...)...)
	}
	rewrite := func(fn string, patch func(string) string, perm os.FileMode) error {
		b, err := ioutil.ReadFile(fn)
		if err != nil {
			return err
		}
		return renameio.WriteFile(fn, []byte(patch(string(b))), perm)
	}
	steps := []struct {
		name string
		fn   func() error
	}{
		{"serial console job", func() error {
			return renameio.WriteFile(path("etc", "init", "ttyS0.conf"), []byte(serialJob), 0644)
		}},

		{"serial console script", func() error {
			return renameio.WriteFile(path("bin", "auto-serial-console"), []byte(serialScript), 0755)
		}},

		{"root password", func() error {
			if err := rewrite(path("etc", "shadow"), ClearRootPassword, 0640); err != nil {
				return err
			}
			log.Printf("root password cleared; set one after the first boot")
			return nil
		}},

		{"network interfaces", func() error {
			return renameio.WriteFile(path("etc", "network", "interfaces"), []byte(interfaces), 0644)
		}},

		{"name resolution and proxies", func() error {
			if err := renameio.WriteFile(path("etc", "resolv.conf"), []byte(StripComments(hostResolv)), 0644); err != nil {
				return err
			}
			env, err := ioutil.ReadFile(path("etc", "environment"))
			if err != nil && !os.IsNotExist(err) {
				return err
			}
			return renameio.WriteFile(path("etc", "environment"), []byte(AppendProxies(string(env), p)), 0644)
		}},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			log.Printf("customization step %q failed: %v", step.name, err)
			failed++
		}
	}
	return failed
}
