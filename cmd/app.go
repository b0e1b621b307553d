package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"restaurant_live/internal/auth"
	"restaurant_live/internal/config"
	"restaurant_live/internal/db"
	"restaurant_live/internal/gateway"
	"restaurant_live/internal/gateway/graphql"
	"restaurant_live/internal/gateway/local"
	"restaurant_live/internal/logging"
	"restaurant_live/internal/store"
	"restaurant_live/service"
)

const appName = "restaurantctl"

// command annotations read by the root pre-run hook
const (
	annotationNoAuth   = "no-auth"
	annotationFullView = "full-view"
)

// app: the per-invocation state shared by the subcommands.
type app struct {
	cfg     config.Config
	logger  zerolog.Logger
	logFile string
	closers []io.Closer
}

// setup: loads configuration and logging, then passes the identity gate unless the command opts
// out of it. The identity travels in the command context.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	out, err := a.logOutput(cmd)
	if err != nil {
		return err
	}
	a.logger = logging.New(out, appName, logging.ProfileRuntime, cfg.Log.Level)

	if cmd.Annotations[annotationNoAuth] == "true" {
		return nil
	}
	identity, err := auth.NewGate(cfg.Auth.Token, cfg.Auth.Secret).Authenticate()
	if err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	a.logger.Debug().Str("subject", identity.Subject).Str("username", identity.Username).Msg("authenticated")
	cmd.SetContext(auth.WithIdentity(cmd.Context(), identity))
	return nil
}

// logOutput: keeps log lines off the terminal while the full-screen view owns it.
func (a *app) logOutput(cmd *cobra.Command) (io.Writer, error) {
	if a.logFile != "" {
		f, err := os.OpenFile(a.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		a.closers = append(a.closers, f)
		return f, nil
	}
	if cmd.Annotations[annotationFullView] == "true" {
		return io.Discard, nil
	}
	return cmd.ErrOrStderr(), nil
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// gateway: builds the configured backend for the identity stored in ctx.
func (a *app) gateway(ctx context.Context) (gateway.Gateway, error) {
	identity, ok := auth.FromContext(ctx)
	if !ok {
		return nil, auth.ErrUnauthenticated
	}

	switch a.cfg.Backend.Mode {
	case config.ModeGraphQL:
		return graphql.New(graphql.Options{
			Endpoint:    a.cfg.GraphQL.Endpoint,
			RealtimeURL: a.cfg.GraphQL.RealtimeURL(),
			Token:       identity.Token,
			Timeout:     a.cfg.GraphQL.Timeout,
		}, a.logger), nil
	case config.ModeLocal:
		conn, err := db.Open(a.cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn)
		return local.New(conn, a.cfg.Sync.PollInterval, a.logger), nil
	default:
		return nil, fmt.Errorf("unknown backend mode %q", a.cfg.Backend.Mode)
	}
}

func (a *app) syncOptions() service.SyncOptions {
	return service.SyncOptions{
		DedupEvents:    a.cfg.Sync.DedupEvents,
		RemoveOnDelete: a.cfg.Sync.RemoveOnDelete,
	}
}

// services: wires a fresh store to the controller and the form.
func (a *app) services(gw gateway.Gateway) (*store.Store, *service.SyncController, *service.FormManager) {
	st := store.New()
	return st,
		service.NewSyncController(gw, st, a.logger, a.syncOptions()),
		service.NewFormManager(gw, st, a.logger)
}

// run: releases what the command opened, whichever way it exits.
func (a *app) run(fn func(a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer func() {
			if err := a.close(); err != nil {
				a.logger.Warn().Err(err).Msg("failed to release resources")
			}
		}()
		return fn(a, cmd, args)
	}
}
