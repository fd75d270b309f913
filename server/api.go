package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/codesprintlab/planforge/pipeline"
)

// ProjectGenerator is the pipeline contract the server depends on.
type ProjectGenerator interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Plan, error)
}

// APIServer exposes the project generation endpoint plus health probes.
type APIServer struct {
	Generator ProjectGenerator
	Logger    *log.Logger

	// RequestTimeout bounds a single generation request end to end.
	RequestTimeout time.Duration
}

// GenerateResponse wraps the plan the way the frontend expects it.
type GenerateResponse struct {
	Result pipeline.Plan `json:"resultado"`
}

// ErrorResponse is the validation-failure payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Serve starts listening on the provided address.
func (s *APIServer) Serve(addr string) error {
	return s.ServeContext(context.Background(), addr)
}

// ServeContext allows the caller to control shutdown via context cancellation.
func (s *APIServer) ServeContext(ctx context.Context, addr string) error {
	server := s.newHTTPServer(addr)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	if s.Logger != nil {
		s.Logger.Printf("API listening on %s", addr)
	}
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *APIServer) newHTTPServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/gerar-projeto", s.handleGenerate)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)
	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}

func (s *APIServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	timeout := s.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	plan, err := s.Generator.Run(ctx, req)
	if err != nil {
		// The pipeline only errors on invalid input; everything else
		// degrades into plan content.
		status := http.StatusInternalServerError
		message := err.Error()
		if errors.Is(err, pipeline.ErrInvalidDescription) {
			status = http.StatusBadRequest
			message = "Descrição inválida ou muito curta"
		}
		writeJSONStatus(w, status, ErrorResponse{Error: message})
		return
	}
	writeJSON(w, GenerateResponse{Result: plan})
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *APIServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]string{"message": "Bem vindo ao gerador de projetos do CodeSprint"})
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
