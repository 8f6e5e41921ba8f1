//go:build !linux

package main

import (
	"golang.org/x/xerrors"

	"dirwatch/watch"
)

func newPool(name string) (watch.Pool, error) {
	switch name {
	case "":
		return watch.NewPool()
	case "fsnotify":
		return watch.NewNotifyPool()
	case "inotify":
		return nil, xerrors.New("inotify backend requires linux")
	}
	return nil, xerrors.Errorf("unknown backend: %q", name)
}
