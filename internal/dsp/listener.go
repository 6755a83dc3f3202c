package dsp

import (
	"context"
	"errors"
	"net"
	"os"

	"github.com/networkupstools/nutd/internal/logging"
)

// socketMode matches dstate.c's chmod(sockfn, 0660): group (but not world)
// gets access, so a server running as a different user but the same group
// can connect.
const socketMode = 0660

// Listen binds the driver's Unix-domain socket at path, removing any stale
// socket left behind by an unclean previous exit (sock_open's unlink
// before bind), and accepts connections until ctx is done. Every accepted
// connection gets its own goroutine pair; Listen itself returns only on
// bind failure or when ctx is canceled.
func (d *Driver) Listen(ctx context.Context, path string) error {
	if err := removeStaleSocket(path); err != nil {
		return diagnoseBindError(path, err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return diagnoseBindError(path, err)
	}
	if err := os.Chmod(path, socketMode); err != nil {
		ln.Close()
		return err
	}

	logging.Success("%s: listening on %s", d.name, path)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.Warning("%s: accept failed: %v", d.name, err)
			continue
		}
		c := newConn(nc, d)
		go c.serve()
	}
}

// removeStaleSocket unlinks an existing socket file at path so a restart
// after an unclean shutdown doesn't fail to bind with EADDRINUSE. It is
// not an error for the path not to exist.
func removeStaleSocket(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
