// Package httpapi exposes the storage core over HTTP/JSON. It translates
// transport concerns (bearer tokens, request decoding, status codes) and
// delegates everything else to the services layer.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/stormdrive/stormdrive/internal/logging"
	"github.com/stormdrive/stormdrive/internal/server/auth"
	"github.com/stormdrive/stormdrive/internal/server/services"
)

type ctxKey int

const ownerKey ctxKey = iota

// ownerID returns the authenticated owner stored by the auth middleware.
func ownerID(r *http.Request) string {
	v, _ := r.Context().Value(ownerKey).(string)
	return v
}

type Server struct {
	mux    *http.ServeMux
	svc    *services.StorageService
	log    logging.Logger
	secret []byte
}

func New(svc *services.StorageService, secretKey []byte, log logging.Logger) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		svc:    svc,
		log:    log.With("component", "httpapi"),
		secret: secretKey,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /uploads", s.handleOpen)
	s.mux.HandleFunc("PUT /uploads/{id}/chunks/{idx}", s.handlePutChunk)
	s.mux.HandleFunc("GET /uploads/{id}", s.handleStatus)
	s.mux.HandleFunc("POST /uploads/{id}/finalize", s.handleFinalize)
	s.mux.HandleFunc("DELETE /uploads/{id}", s.handleAbort)
	s.mux.HandleFunc("GET /files/{id}/content", s.handleContent)
}

// ServeHTTP authenticates the bearer token and stores the owner id in the
// request context before dispatching.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	userID, err := auth.GetUserIDFromToken(token, s.secret)
	if err != nil {
		s.log.Warn(r.Context(), "authentication failed", "error", err)
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	ctx := context.WithValue(r.Context(), ownerKey, userID)
	s.mux.ServeHTTP(w, r.WithContext(ctx))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
