package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Domenick1991/tourbooking/config"
	"github.com/sirupsen/logrus"
)

// Run serves handler on cfg.HTTP.Address and blocks until ctx is cancelled or
// the server fails. On cancellation in-flight requests get
// cfg.HTTP.ShutdownTimeout to finish.
func Run(ctx context.Context, cfg *config.Config, handler http.Handler, log logrus.FieldLogger) error {
	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("address", cfg.HTTP.Address).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
		log.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}
