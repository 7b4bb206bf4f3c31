package cmd

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chrisuehlinger/vibebridge/dom"
	"github.com/chrisuehlinger/vibebridge/headless"
	"github.com/chrisuehlinger/vibebridge/html"
	"github.com/chrisuehlinger/vibebridge/internal/config"
	"github.com/chrisuehlinger/vibebridge/js"
	"github.com/chrisuehlinger/vibebridge/network"
	"github.com/chrisuehlinger/vibebridge/uicommand"
)

// session wires one page: a headless host, a document whose queue feeds
// it, and a runtime with the bindings installed.
type session struct {
	cfg    *config.Config
	logger *zap.Logger

	host     *headless.Host
	renderer hostRenderer
	queue    *uicommand.Queue
	doc      *dom.Document
	runtime  *js.Runtime
	binder   *js.Binder
	page     *html.Page
}

// tapFunc wraps the host's command sink.
type tapFunc func(next uicommand.Sink) uicommand.Sink

// newSession builds the stack. tap, when set, wraps the host so it sees
// every batch first.
func newSession(cfg *config.Config, logger *zap.Logger, tap tapFunc) (*session, error) {
	host := headless.New(headless.Options{
		ViewportWidth:   float64(cfg.Host.ViewportWidth),
		ViewportHeight:  float64(cfg.Host.ViewportHeight),
		MaxExportPixels: cfg.Host.MaxExportPixels,
		Logger:          logger,
	})
	renderer := hostRenderer{Host: host}
	if tap != nil {
		renderer.sink = tap(host)
	}

	queue := uicommand.NewQueue(cfg.Runtime.ContextID)
	doc := dom.NewDocument(dom.WithQueue(queue), dom.WithRenderer(renderer))
	rt := js.NewRuntime(logger)
	binder, err := js.Bind(rt, doc)
	if err != nil {
		return nil, fmt.Errorf("bind document: %w", err)
	}
	return &session{
		cfg:      cfg,
		logger:   logger,
		host:     host,
		renderer: renderer,
		queue:    queue,
		doc:      doc,
		runtime:  rt,
		binder:   binder,
	}, nil
}

// hostRenderer lets a tap sit in front of the host's ApplyCommands while
// queries still go straight to the host.
type hostRenderer struct {
	*headless.Host
	sink uicommand.Sink
}

func (r hostRenderer) ApplyCommands(contextID int32, batch []uicommand.Command) error {
	if r.sink != nil {
		return r.sink.ApplyCommands(contextID, batch)
	}
	return r.Host.ApplyCommands(contextID, batch)
}

// load fetches and parses the page at location, a local path or an
// http(s) URL. External scripts resolve against the page.
func (s *session) load(ctx context.Context, location string) error {
	client, err := network.NewClient(
		network.WithUserAgent(s.cfg.Network.UserAgent),
		network.WithTimeout(s.cfg.Network.Timeout),
		network.WithMaxRedirects(s.cfg.Network.MaxRedirects),
		network.WithLogger(s.logger.Named("network")),
	)
	if err != nil {
		return err
	}
	src, err := client.Open(ctx, location)
	if err != nil {
		return err
	}

	var loadErr error
	err = s.runtime.Do(func(_ *goja.Runtime) error {
		s.page, loadErr = html.Load(s.doc, bytes.NewReader(src.Body), html.Options{
			FS:     src.FS,
			Logger: s.logger,
		})
		return nil
	})
	if err != nil {
		return err
	}
	if loadErr != nil {
		return fmt.Errorf("load page: %w", loadErr)
	}
	s.logger.Info("Page loaded",
		zap.String("location", src.Location),
		zap.String("title", s.page.Title),
		zap.Int("scripts", len(s.page.Scripts)))
	return nil
}

// run executes the page's scripts, then pumps the event loop while the
// host drains the queue every frame. It returns once the runtime is idle.
func (s *session) run(ctx context.Context) error {
	for _, script := range s.page.Scripts {
		if err := s.runtime.ExecuteScript(script.Code, script.Name); err != nil {
			s.logger.Warn("Script failed", zap.String("script", script.Name), zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Runtime.Timeout)
	defer cancel()
	frames, stopFrames := context.WithCancel(ctx)
	defer stopFrames()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stopFrames()
		return s.runtime.RunUntilIdle(gctx)
	})
	g.Go(func() error {
		return headless.RunFrames(frames, s.queue, s.renderer, s.cfg.Host.FrameInterval)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("run page: %w", err)
	}

	// Exports started by the last scripts may still be painting.
	s.host.Wait()
	s.logger.Info("Page idle",
		zap.Int("commands", s.host.Applied()),
		zap.Int("scriptErrors", len(s.runtime.Errors())))
	return nil
}

// close disposes every node of the document and flushes the dispose
// records to the host.
func (s *session) close() error {
	err := s.runtime.Do(func(*goja.Runtime) error {
		s.doc.Dispose()
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.queue.Flush(s.renderer); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	s.logger.Debug("Session closed",
		zap.Int("commands", s.host.Applied()),
		zap.Int64("liveHandles", s.doc.Arena().Live()))
	return nil
}
