package main

import (
	"golang.org/x/xerrors"

	"dirwatch/watch"
)

func newPool(name string) (watch.Pool, error) {
	switch name {
	case "":
		return watch.NewPool()
	case "inotify":
		return watch.NewInotifyPool()
	case "fsnotify":
		return watch.NewNotifyPool()
	}
	return nil, xerrors.Errorf("unknown backend: %q", name)
}
