// Package httpx serves an http.Handler on one of two engines: the standard
// net/http server or fasthttp behind its net/http adaptor. Handlers are
// written once against net/http; the engine is a deployment choice.
package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"ideaflow/pkg/logger"
)

// Engine names accepted by Serve.
const (
	EngineNetHTTP  = "nethttp"
	EngineFastHTTP = "fasthttp"
)

// Options tunes the serving loop.
type Options struct {
	Addr     string
	Engine   string
	CertFile string
	KeyFile  string

	// ShutdownGrace bounds how long in-flight requests get after the
	// context is cancelled.
	ShutdownGrace time.Duration
}

// Serve runs h on opts.Addr until ctx is cancelled, then drains. It blocks
// and returns nil on a clean shutdown.
func Serve(ctx context.Context, h http.Handler, opts Options) error {
	grace := opts.ShutdownGrace
	if grace <= 0 {
		grace = 10 * time.Second
	}
	switch opts.Engine {
	case "", EngineNetHTTP:
		return serveNetHTTP(ctx, h, opts, grace)
	case EngineFastHTTP:
		return serveFastHTTP(ctx, h, opts, grace)
	default:
		return errors.New("unknown http engine: " + opts.Engine)
	}
}

func serveNetHTTP(ctx context.Context, h http.Handler, opts Options, grace time.Duration) error {
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("http_listen", "addr", opts.Addr, "engine", EngineNetHTTP)
		if opts.CertFile != "" && opts.KeyFile != "" {
			errc <- srv.ListenAndServeTLS(opts.CertFile, opts.KeyFile)
		} else {
			errc <- srv.ListenAndServe()
		}
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}

func serveFastHTTP(ctx context.Context, h http.Handler, opts Options, grace time.Duration) error {
	srv := &fasthttp.Server{
		Handler:     fasthttpadaptor.NewFastHTTPHandler(h),
		ReadTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("http_listen", "addr", opts.Addr, "engine", EngineFastHTTP)
		if opts.CertFile != "" && opts.KeyFile != "" {
			errc <- srv.ListenAndServeTLS(opts.Addr, opts.CertFile, opts.KeyFile)
		} else {
			errc <- srv.ListenAndServe(opts.Addr)
		}
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		// fasthttp's Shutdown drains in-flight requests; bound it ourselves
		done := make(chan error, 1)
		go func() { done <- srv.Shutdown() }()
		select {
		case err := <-done:
			return err
		case <-time.After(grace):
			return errors.New("fasthttp shutdown timed out")
		}
	}
}
