package httputils

import (
	"context"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type logFunc func(v ...interface{})

func (l logFunc) Println(v ...interface{}) {
	l(v...)
}

func RunDebugMux() http.Handler {
	l := zap.L().Named("debugMux")
	sugar := l.Sugar()

	s := http.NewServeMux()

	s.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorLog:      logFunc(sugar.Warn),
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
	s.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return s
}

// Serve serves the handler on address until ctx is done.
func Serve(ctx context.Context, address string, h http.Handler) error {
	l := zap.L().Named("debugMux")

	l.Info("Starting server...", zap.String("address", address))
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	l.Info("Listening...", zap.String("address", lis.Addr().String()))

	s := &http.Server{Handler: h}
	go func() {
		<-ctx.Done()
		if err := s.Close(); err != nil {
			l.Error("Close error.", zap.Error(err))
		} else {
			l.Info("Server stopped.")
		}
	}()
	if err := s.Serve(lis); err != nil && err != http.ErrServerClosed {
		l.Error("Serve error.", zap.Error(err))
		return err
	}
	return nil
}
