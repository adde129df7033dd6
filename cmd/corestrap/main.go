// corestrap provisions a minimal embedded Ubuntu root filesystem for an
// ARM target into the current working directory.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/corestrap/corestrap/internal/fetch"
	"github.com/corestrap/corestrap/internal/tarball"
	"github.com/corestrap/corestrap/internal/workspace"
)

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		fmt.Fprintf(os.Stderr, "syntax: corestrap <distribution> <architecture>\n")
		os.Exit(2)
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	s := &strapctx{
		dist:        args[0],
		arch:        args[1],
		dir:         wd,
		euid:        os.Geteuid(),
		fetcher:     &fetch.HTTP{},
		extractor:   tarball.Tar{},
		stdin:       bufio.NewReader(os.Stdin),
		stdout:      os.Stdout,
		interactive: workspace.Interactive(),
		getenv:      os.Getenv,
		hostSources: "/etc/apt/sources.list",
		hostResolv:  "/etc/resolv.conf",
	}
	if err := s.run(context.Background()); err != nil {
		fmt.Printf("corestrap: %+v\n", err)
		os.Exit(1)
	}
	log.Printf("%s root filesystem for %s ready in %s", s.dist, s.arch, s.dir)
}
