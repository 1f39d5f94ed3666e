package app

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vbrief/pushgate/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewAPI(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, store *SubscriptionStore, dispatcher *Dispatcher) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: router(cfg, log, store, dispatcher)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go srv.ListenAndServe()
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(cfg *config.Config, log *zap.Logger, store *SubscriptionStore, dispatcher *Dispatcher) http.Handler {
	ctrl := &controller{log, store, dispatcher}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(crossOrigin(cfg.AllowedOrigin))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Post("/subscribe", ctrl.subscribe)
	r.Post("/unsubscribe", ctrl.unsubscribe)

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(cfg.BroadcastKey))
		r.Post("/send-notification", ctrl.broadcast)
	})

	return r
}

// crossOrigin stamps the CORS headers on every response, error responses
// included, so browser clients can read 4xx/5xx bodies too. Preflights are
// answered here for any path, before routing.
func crossOrigin(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerAuth rejects the request before any handler state is touched
// unless the Authorization header carries the configured key.
func bearerAuth(key string) func(http.Handler) http.Handler {
	expect := "Bearer " + key
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("Authorization")
			if subtle.ConstantTimeCompare([]byte(got), []byte(expect)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type controller struct {
	log        *zap.Logger
	store      *SubscriptionStore
	dispatcher *Dispatcher
}

func (ctrl *controller) reject(w http.ResponseWriter, status int, err error) {
	if err != nil {
		http.Error(w, err.Error(), status)
	} else {
		w.WriteHeader(status)
	}
}

func (ctrl *controller) resolve(w http.ResponseWriter, status int, body any) {
	if b, err := json.Marshal(body); err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		ctrl.log.Sugar().Error("Request failed", "error", err)
		return
	} else {
		w.WriteHeader(status)
		if b != nil {
			w.Write(b)
		}
	}
}

type subscribeRequest struct {
	Endpoint string          `json:"endpoint"`
	Keys     json.RawMessage `json:"keys,omitempty"`
}

func (ctrl *controller) subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}

	var req subscribeRequest
	if err := json.Unmarshal(body, &req); err != nil || strings.TrimSpace(req.Endpoint) == "" {
		ctrl.reject(w, http.StatusBadRequest, errors.New("Invalid subscription"))
		return
	}

	sub, err := ctrl.store.Put(ctx, req.Endpoint, string(body))
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}

	ctrl.log.Sugar().Infow("Stored subscription", "key", sub.Key)
	ctrl.resolve(w, http.StatusCreated, map[string]any{"success": true})
}

func (ctrl *controller) unsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Endpoint) == "" {
		ctrl.reject(w, http.StatusBadRequest, errors.New("Invalid subscription"))
		return
	}

	if err := ctrl.store.Delete(ctx, StorageKey(req.Endpoint)); err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"success": true})
}

// broadcast pushes the request body to every subscriber. The reported
// "sent" count is subscriptions attempted, not confirmed deliveries;
// per-subscriber failures only show up in the logs.
func (ctrl *controller) broadcast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	if !json.Valid(payload) {
		ctrl.reject(w, http.StatusBadRequest, errors.New("Invalid payload"))
		return
	}

	sent, err := ctrl.dispatcher.DispatchAll(ctx, payload)
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}

	ctrl.resolve(w, http.StatusOK, map[string]any{"success": true, "sent": sent})
}
