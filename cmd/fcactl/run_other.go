//go:build !linux

package main

import (
	"context"
	"errors"
)

func runLoop(ctx context.Context, a *app) error {
	return errors.New("run needs Linux SocketCAN; use replay on this platform")
}
