package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
	router     *mux.Router
}

func NewServer(address string, readTimeout, writeTimeout time.Duration) *Server {
	srv := &http.Server{
		Addr:         address,
		WriteTimeout: writeTimeout,
		ReadTimeout:  readTimeout,
	}
	apiServer := &Server{
		httpServer: srv,
	}
	apiServer.router = mux.NewRouter()
	apiServer.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		RespondMessage(w, http.StatusNotFound, "404 page not found")
	})
	apiServer.httpServer.Handler = apiServer.router
	return apiServer
}

// ListenAndServe blocks until the server is shut down.
func (w *Server) ListenAndServe() error {
	log.Infof("[api] Server started at %s", w.httpServer.Addr)
	err := w.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (w *Server) Shutdown(ctx context.Context) error {
	log.Infof("[api] Shutting down server at %s", w.httpServer.Addr)
	return w.httpServer.Shutdown(ctx)
}

func (w *Server) Handler() http.Handler {
	return w.router
}

func (w *Server) AppendRoute(path string, handler func(http.ResponseWriter, *http.Request), methods ...string) {
	r := w.router.HandleFunc(path, LoggingMiddleware("API", handler))
	if len(methods) > 0 {
		r.Methods(methods...)
	}
}

func WriteResponse(writer http.ResponseWriter, status int, response interface{}) error {
	jsonResponse, err := json.Marshal(response)
	if err != nil {
		return err
	}
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_, err = writer.Write(jsonResponse)
	return err
}
