package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/networkupstools/nutd/internal/adminhttp"
	"github.com/networkupstools/nutd/internal/audit"
	"github.com/networkupstools/nutd/internal/logging"
	"github.com/networkupstools/nutd/internal/npe"
	"github.com/networkupstools/nutd/internal/sss"
	"github.com/networkupstools/nutd/internal/users"
)

// run wires the users store, shadow supervisor, network protocol engine,
// audit hub, and admin HTTP server together and blocks until a shutdown
// signal arrives, mirroring the teacher's Orchestrator.Run lifecycle:
// start everything, wait on a signal-derived context, then shut down in
// reverse dependency order.
func run(drivers []driverConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	userStore := users.NewStore()
	if err := userStore.Load(cli.UsersDB); err != nil {
		logging.Warning("nutd: initial users-db load failed, starting with no users: %v", err)
	}
	watcher, err := users.NewWatcher(userStore, cli.UsersDB)
	if err != nil {
		return fmt.Errorf("users watcher: %w", err)
	}

	auditHub := audit.NewHub()
	defer auditHub.Shutdown()

	maxAge := time.Duration(cli.MaxAgeSecs) * time.Second
	shadows := make([]*sss.Shadow, 0, len(drivers))
	entries := make([]npe.UPSEntry, 0, len(drivers))
	for _, d := range drivers {
		shadow := sss.NewShadow(d.Name, d.SocketPath)
		shadows = append(shadows, shadow)
		entries = append(entries, npe.UPSEntry{Name: d.Name, Description: d.Description, Shadow: shadow})
	}
	supervisor := sss.NewSupervisor(shadows, maxAge)

	idleTimeout := time.Duration(cli.IdleTimeout) * time.Second
	server := npe.NewServer(entries, userStore, auditHub, idleTimeout)
	admin := adminhttp.NewServer(cli.AdminAddr)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		watcher.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		supervisor.Run(ctx)
	}()

	npeErrCh := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		npeErrCh <- server.ListenAndServe(ctx, fmt.Sprintf("%s:%d", cli.ListenAddr, cli.Port))
	}()

	adminErrCh := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		adminErrCh <- admin.ListenAndServe()
	}()
	logging.Success("nutd: admin HTTP listening on %s", cli.AdminAddr)

	select {
	case <-ctx.Done():
		logging.Warning("nutd: received shutdown signal, shutting down...")
	case err := <-npeErrCh:
		if err != nil {
			logging.Error("nutd: network protocol engine exited: %v", err)
		}
	case err := <-adminErrCh:
		if err != nil {
			logging.Error("nutd: admin HTTP server exited: %v", err)
		}
	}

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := admin.Shutdown(shutdownCtx); err != nil {
		logging.Warning("nutd: admin HTTP shutdown: %v", err)
	}

	wg.Wait()
	logging.Info("nutd: shutdown complete")
	return nil
}
