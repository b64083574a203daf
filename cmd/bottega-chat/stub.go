package main

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"bottegachat/internal/backend"
	"bottegachat/internal/config"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const stubShutdownTimeout = 5 * time.Second

func newServeStubCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-stub",
		Short: "Serve a local stand-in for the chat backend",
		Long: `serve-stub answers POST /chat with an echo of the message, wrapped in one of
the payload shapes the real backend produces. Point the client at it to try the
interface without the assistant running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serveStub(cmd.Context())
		},
	}
	cmd.Flags().String("addr", config.DefaultStubAddr, "listen address")
	cmd.Flags().String("style", backend.StyleBanner, "reply payload shape: "+strings.Join(backend.StubStyles, ", "))
	return cmd
}

func (a *app) serveStub(ctx context.Context) error {
	reply, err := backend.StyledReply(a.cfg.StubStyle)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", a.cfg.StubAddr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", a.cfg.StubAddr)
	}
	handler := backend.NewStubHandler(
		backend.WithStubReply(reply),
		backend.WithStubPath(a.cfg.ChatPath),
		backend.WithStubLogger(log.Logger.With().
			Str("component", "stub-backend").
			Str("addr", ln.Addr().String()).
			Logger()),
	)
	log.Info().
		Str("addr", ln.Addr().String()).
		Str("path", a.cfg.ChatPath).
		Str("style", nullCoalesce(a.cfg.StubStyle, backend.StyleBanner)).
		Msg("starting stub backend")
	return runStubServer(ctx, ln, handler)
}

// runStubServer serves on ln until ctx is done, then shuts down gracefully.
func runStubServer(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("stub backend serve error")
			return errors.Wrap(err, "stub backend failed")
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		log.Info().Msg("shutting down stub backend")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), stubShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "stub backend shutdown")
		}
		log.Info().Msg("stub backend shutdown complete")
		return nil
	})
	return eg.Wait()
}
