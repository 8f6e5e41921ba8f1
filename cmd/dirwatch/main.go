package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/pflag"
	"golang.org/x/xerrors"

	"dirwatch/watch"
)

var (
	version string
	usage   = `Usage: dirwatch [OPTION]... PATH
Poll the directory at PATH and print its filesystem events.

Options:`
	file     = pflag.BoolP("file", "f", false, "watch the single file at PATH instead of a directory")
	interval = pflag.DurationP("interval", "i", time.Second, "`duration` to sleep between poll sweeps")
	patterns = pflag.StringArrayP("pattern", "p", nil, "print only entry names matching the `glob` pattern")
	backend  = pflag.StringP("backend", "b", "", "event `backend` (inotify|fsnotify) (default platform native)")
	verbose  = pflag.BoolP("verbose", "v", false, "verbose output")
	help     = pflag.BoolP("help", "h", false, "display this message")
	showver  = pflag.BoolP("version", "V", false, "display version")
)

// poller is the surface shared by watch.Dir and watch.File.
type poller interface {
	PollEvent() (watch.Event, bool)
	Close()
}

func main() {
	pflag.Parse()
	if *help {
		fmt.Println("dirwatch version", versionstr())
		fmt.Println(usage)
		pflag.PrintDefaults()
		return
	}
	if *showver {
		fmt.Println("dirwatch version", versionstr())
		return
	}
	if pflag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "%s: PATH required.\n", os.Args[0])
		os.Exit(1)
	}
	path := pflag.Arg(0)

	logVerbose("path:     %q", path)
	logVerbose("file:     %v", *file)
	logVerbose("interval: %v", *interval)
	logVerbose("patterns: %q", *patterns)
	logVerbose("backend:  %q", *backend)

	pool, err := newPool(*backend)
	if err != nil {
		log.Fatalf("[DIRWATCH] %v", err)
	}
	defer pool.Close()

	var w poller
	if *file {
		w = watch.NewFile(path, pool)
	} else {
		w = watch.NewDir(path, pool)
	}
	defer w.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	t := time.NewTicker(*interval)
	defer t.Stop()
	for {
		for {
			ev, ok := w.PollEvent()
			if !ok {
				break
			}
			match, err := matchPatterns(ev.Name, *patterns)
			if err != nil {
				log.Fatalf("[DIRWATCH] %v", err)
			}
			if !match {
				logVerbose("skip: %v %q", ev.Type, ev.Name)
				continue
			}
			log.Printf("[DIRWATCH] %v %q", ev.Type, ev.Name)
		}

		select {
		case s := <-sig:
			log.Printf("[DIRWATCH] signal: %v", s)
			return
		case <-t.C:
		}
	}
}

func logVerbose(fmt string, args ...interface{}) {
	if *verbose {
		log.Printf("[DIRWATCH] "+fmt, args...)
	}
}

func versionstr() string {
	if version != "" {
		return "v" + version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "(devel)"
	}
	return info.Main.Version
}

func matchPatterns(t string, pats []string) (bool, error) {
	if len(pats) == 0 {
		return true, nil
	}
	for _, p := range pats {
		m, err := doublestar.Match(p, t)
		if err != nil {
			return false, xerrors.Errorf("match(%v, %v): %w", p, t, err)
		}
		if m {
			return true, nil
		}
	}
	return false, nil
}
