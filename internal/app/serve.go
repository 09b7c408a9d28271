package app

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/actionroute/internal/telemetry"
)

// maxRequestSize bounds a single request line.
const maxRequestSize = 1 << 20

// Serve answers JSON-lines requests from in on out until in is exhausted or
// ctx is done. With routes.watch set it reloads routes on source changes, and
// with telemetry.metrics_addr set it serves Prometheus metrics.
func (app *Application) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return app.serveLines(gctx, in, out)
	})

	if app.config.Routes.Watch {
		g.Go(func() error {
			return app.Watch(gctx)
		})
	}

	if addr := app.config.Telemetry.MetricsAddr; addr != "" {
		g.Go(func() error {
			return telemetry.Serve(gctx, addr, app.metrics, app.log.WithName("telemetry"))
		})
	}

	return g.Wait()
}

type line struct {
	data []byte
	err  error
}

// readLines scans in on its own goroutine; a blocked read cannot observe
// ctx, so serveLines stops selecting on the channel instead.
func readLines(ctx context.Context, in io.Reader) <-chan line {
	ch := make(chan line)
	send := func(l line) bool {
		select {
		case ch <- l:
			return true
		case <-ctx.Done():
			return false
		}
	}
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), maxRequestSize)
		for sc.Scan() {
			if !send(line{data: bytes.Clone(sc.Bytes())}) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			send(line{err: err})
		}
	}()
	return ch
}

func (app *Application) serveLines(ctx context.Context, in io.Reader, out io.Writer) error {
	w := bufio.NewWriter(out)
	lines := readLines(ctx, in)

	for {
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			if l.err != nil {
				return l.err
			}
			if len(bytes.TrimSpace(l.data)) == 0 {
				continue
			}
			if _, err := w.Write(app.Handle(l.data)); err != nil {
				return err
			}
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}
	}
}

// Handle decodes one request line, dispatches it and returns the response
// line without a trailing newline.
func (app *Application) Handle(data []byte) []byte {
	req, err := DecodeRequest(data)
	if err != nil {
		app.log.V(1).Info("bad request", "error", err.Error())
		return EncodeResponse(req, nil, err)
	}
	result, err := app.Dispatch(req.Context, req.Action, req.Params)
	return EncodeResponse(req, result, err)
}
