package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/DataExMachina-dev/fiberstack-go/fiberstack"
	"github.com/DataExMachina-dev/fiberstack-go/internal/persist"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var listen, httpAddr, compression string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored snapshots over gRPC and HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []fiberstack.Option{fiberstack.WithErrorLogger(errorLogger("server"))}
			if flags.dir != "" {
				opts = append(opts, fiberstack.WithSnapshotDir(flags.dir))
			}
			if listen != "" {
				opts = append(opts, fiberstack.WithListenAddr(listen))
			}
			if compression != "" {
				c, err := persist.ParseCompression(compression)
				if err != nil {
					return err
				}
				opts = append(opts, fiberstack.WithCompression(c))
			}
			return serve(cmd.Context(), fiberstack.NewServer(opts...), httpAddr)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "gRPC listen address (default $FIBERSTACK_LISTEN_ADDR or 127.0.0.1:7390)")
	cmd.Flags().StringVar(&httpAddr, "http", "127.0.0.1:7391", "HTTP listen address for the snapshot index, empty to disable")
	cmd.Flags().StringVar(&compression, "compression", "", "compression reported for the store (none or zstd)")
	return cmd
}

func serve(ctx context.Context, srv *fiberstack.Server, httpAddr string) error {
	if err := srv.Start(); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"addr":        srv.Addr().String(),
		"fingerprint": srv.Fingerprint().String(),
	}).Info("serving snapshots over gRPC")

	g, ctx := errgroup.WithContext(ctx)
	var httpSrv *http.Server
	if httpAddr != "" {
		httpSrv = &http.Server{
			Addr:              httpAddr,
			Handler:           srv.HTTPHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			log.WithField("addr", httpAddr).Info("serving snapshot index over HTTP")
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to serve HTTP: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		srv.Stop()
		if httpSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		}
		return nil
	})
	return g.Wait()
}
