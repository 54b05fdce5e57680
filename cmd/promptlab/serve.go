package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dschwags/Prompt-Lab-sub000/internal/api"
	"github.com/dschwags/Prompt-Lab-sub000/internal/logging"
	"github.com/dschwags/Prompt-Lab-sub000/internal/repl"
)

var flagAddr string

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workshop over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withEnv(cmd, func(ctx context.Context, e *env) error {
				addr := flagAddr
				if addr == "" {
					addr = e.cfg.Server.Addr
				}

				srv := &http.Server{
					Addr: addr,
					Handler: api.NewRouter(api.Options{
						Engine:         e.engine,
						Synthesizer:    e.synth,
						Registry:       e.registry,
						SynthesisModel: e.cfg.Workshop.SynthesisModel,
					}),
					ReadTimeout:  e.cfg.Server.ReadTimeout,
					WriteTimeout: e.cfg.Server.WriteTimeout,
				}

				errCh := make(chan error, 1)
				go func() {
					fmt.Fprintf(app.Out, "Listening on http://%s\n", addr)
					errCh <- srv.ListenAndServe()
				}()

				select {
				case err := <-errCh:
					if errors.Is(err, http.ErrServerClosed) {
						return nil
					}
					return err
				case <-ctx.Done():
				}

				logging.Log("api", "shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		},
	}

	cmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (defaults to server.addr)")
	return cmd
}

func newReplCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "repl",
		Aliases: []string{"interactive", "i"},
		Short:   "Run the interactive workshop shell",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withEnv(cmd, func(ctx context.Context, e *env) error {
				r := repl.New(&repl.Config{
					In:             cmd.InOrStdin(),
					Out:            app.Out,
					Err:            app.Err,
					Engine:         e.engine,
					Synthesizer:    e.synth,
					Registry:       e.registry,
					SessionMgr:     e.mgr,
					Displayer:      e.display,
					SynthesisModel: e.cfg.Workshop.SynthesisModel,
				})
				return r.Run(ctx)
			})
		},
	}
}
