package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"
	"github.com/zenazn/goji/web"

	"github.com/janelia-flyem/trainlabels/config"
	"github.com/janelia-flyem/trainlabels/dvid"
	"github.com/janelia-flyem/trainlabels/sample"
	"github.com/janelia-flyem/trainlabels/storage"
	"github.com/janelia-flyem/trainlabels/transform"
)

const (
	// ReadTimeout limits how long a request body may take to arrive.
	ReadTimeout = 10 * time.Minute

	// ShutdownDelay is how long Serve waits for requests in flight on shutdown.
	ShutdownDelay = 5 * time.Second
)

// Server serves a transform pipeline and an optional sample store over HTTP.
type Server struct {
	mux   *web.Mux
	store storage.SampleStore
	codec sample.Codec

	mu       sync.RWMutex
	pipeline *transform.Pipeline
}

// New returns a server for the configured pipeline.  The store may be nil, in
// which case the store routes answer with an error.
func New(c *config.Config, store storage.SampleStore) (*Server, error) {
	p, err := c.Pipeline()
	if err != nil {
		return nil, err
	}
	codec, err := c.Store.Codec()
	if err != nil {
		return nil, err
	}
	s := &Server{
		mux:      web.New(),
		store:    store,
		codec:    codec,
		pipeline: p,
	}
	s.initRoutes(c)
	return s, nil
}

func (s *Server) initRoutes(c *config.Config) {
	if len(c.Server.CORSDomains) != 0 {
		s.mux.Use(cors.New(cors.Options{
			AllowedOrigins:   c.Server.CORSDomains,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodHead},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}).Handler)
	}
	s.mux.Use(requestsGate)
	if c.Auth.SecretKey != "" {
		s.mux.Use(isAuthorized(c.Auth.SecretKey))
	} else {
		dvid.Infof("No [auth] secret key.  Proceeding without authorization.\n")
	}

	s.mux.Get("/api/help", helpHandler)
	s.mux.Get("/api/server/info", s.serverInfoHandler)
	s.mux.Post("/api/pipeline", s.pipelineHandler)
	s.mux.Post("/api/apply", s.applyHandler)
	s.mux.Get("/api/samples", s.samplesHandler)
	s.mux.Get("/api/sample/:id", s.getSampleHandler)
	s.mux.Delete("/api/sample/:id", s.deleteSampleHandler)
	s.mux.NotFound(notFoundHandler)
}

// ServeHTTP makes the server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Pipeline returns the currently served pipeline.
func (s *Server) Pipeline() *transform.Pipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pipeline
}

// SetPipeline replaces the served pipeline.
func (s *Server) SetPipeline(p *transform.Pipeline) {
	s.mu.Lock()
	s.pipeline = p
	s.mu.Unlock()
	dvid.Infof("Serving pipeline %s\n", p)
}

// Serve listens on addr until the context is done, then refuses new requests
// and shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s,
		ReadTimeout: ReadTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		dvid.Infof("Web server listening at %s ...\n", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	dvid.DenyRequests()
	dvid.Infof("Shutting down web server at %s ...\n", addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownDelay)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != http.ErrServerClosed {
		return err
	}
	return nil
}
