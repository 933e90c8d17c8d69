package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/auth"
	"github.com/oggyb/heartline/internal/db"
	svcErr "github.com/oggyb/heartline/internal/errors"
	"github.com/oggyb/heartline/internal/realtime"
	"github.com/oggyb/heartline/internal/repository"
	"github.com/oggyb/heartline/internal/session"
	"github.com/oggyb/heartline/internal/storage"
)

const (
	uploadTimeout = 30 * time.Second

	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// HTTPHandler serves what does not fit gRPC: photo upload and download,
// the websocket change feed, health and metrics.
type HTTPHandler struct {
	appCtx    *app.AppContext
	authn     *auth.Authenticator
	matchRepo *repository.MatchRepository
	upgrader  websocket.Upgrader
}

// NewHTTPHandler builds the router. gatherer backs /metrics.
func NewHTTPHandler(appCtx *app.AppContext, authn *auth.Authenticator, gatherer prometheus.Gatherer) http.Handler {
	h := &HTTPHandler{
		appCtx:    appCtx,
		authn:     authn,
		matchRepo: repository.NewMatchRepository(appCtx.DB),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.originAllowed,
	}

	cfg := appCtx.Config
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(appCtx.Metrics.HTTP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/photos/*", h.servePhoto)

	r.Route("/v1", func(r chi.Router) {
		r.Use(authn.Middleware)

		r.With(
			httprate.LimitByIP(cfg.HTTP.UploadPerMin, time.Minute),
			middleware.Timeout(uploadTimeout),
		).Post("/photos", h.uploadPhoto)
		r.Get("/realtime", h.watch)
	})
	return r
}

type uploadResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// uploadPhoto stores the multipart field "photo" under the caller's prefix
// and returns the key to put in the profile.
func (h *HTTPHandler) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	me, err := session.Require(r.Context())
	if err != nil {
		writeError(w, svcErr.Map(err))
		return
	}
	if h.appCtx.Bucket == nil {
		http.Error(w, "photo storage is not configured", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.appCtx.Config.Storage.MaxUploadBytes)
	file, _, err := r.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "photo is too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, `multipart field "photo" is required`, http.StatusBadRequest)
		return
	}
	defer file.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(file, head)
	if !isImage(http.DetectContentType(head[:n])) {
		http.Error(w, "photo must be a jpeg, png or webp image", http.StatusBadRequest)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		http.Error(w, "failed to read photo", http.StatusInternalServerError)
		return
	}

	existing, err := h.appCtx.Bucket.List(r.Context(), me.UserID+"/")
	if err != nil {
		h.appCtx.Logger.Error("list photos failed", "user_id", me.UserID, "err", err)
		http.Error(w, "failed to store photo", http.StatusInternalServerError)
		return
	}
	key := db.PhotoKey(me.UserID, len(existing)+1, time.Now())

	if _, err := h.appCtx.Bucket.Put(r.Context(), key, file); err != nil {
		h.appCtx.Logger.Error("store photo failed", "user_id", me.UserID, "key", key, "err", err)
		http.Error(w, "failed to store photo", http.StatusInternalServerError)
		return
	}

	h.appCtx.Logger.Info("photo uploaded", "user_id", me.UserID, "key", key)
	writeJSON(w, http.StatusCreated, uploadResponse{Key: key, URL: h.appCtx.Bucket.URL(key)})
}

func (h *HTTPHandler) servePhoto(w http.ResponseWriter, r *http.Request) {
	if h.appCtx.Bucket == nil {
		http.NotFound(w, r)
		return
	}
	key := chi.URLParam(r, "*")
	rc, err := h.appCtx.Bucket.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			http.NotFound(w, r)
			return
		}
		h.appCtx.Logger.Error("open photo failed", "key", key, "err", err)
		http.Error(w, "failed to read photo", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	// keys always end in .jpg; net/http sniffs the real type from the bytes
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = io.Copy(w, rc)
}

// watch streams the changes selected by the "filter" query parameter as
// JSON text frames. It mirrors the gRPC RealtimeService.Watch stream.
func (h *HTTPHandler) watch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	me, err := session.Require(ctx)
	if err != nil {
		writeError(w, svcErr.Map(err))
		return
	}

	f, err := realtime.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := realtime.Authorize(ctx, h.matchRepo, me.UserID, f); err != nil {
		if errors.Is(err, realtime.ErrInvalidFilter) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeError(w, svcErr.Map(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied
		return
	}
	defer conn.Close()

	sub := h.appCtx.Hub.Subscribe(f)
	defer sub.Close()

	// the client sends nothing; reading only drives pongs and close frames
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case c, ok := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				code, text := websocket.CloseGoingAway, "server shutting down"
				if errors.Is(sub.Err(), realtime.ErrSlowConsumer) {
					code, text = websocket.CloseTryAgainLater, sub.Err().Error()
				}
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
				return
			}
			if err := conn.WriteJSON(c); err != nil {
				h.appCtx.Logger.Debug("websocket write failed", "user_id", me.UserID, "err", err)
				return
			}
		}
	}
}

func (h *HTTPHandler) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.appCtx.Config.HTTP.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func isImage(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/webp":
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the HTTP equivalent of a status error.
func writeError(w http.ResponseWriter, err error) {
	st := status.Convert(err)
	code := http.StatusInternalServerError
	switch st.Code() {
	case codes.InvalidArgument:
		code = http.StatusBadRequest
	case codes.Unauthenticated:
		code = http.StatusUnauthorized
	case codes.PermissionDenied:
		code = http.StatusForbidden
	case codes.NotFound:
		code = http.StatusNotFound
	}
	http.Error(w, st.Message(), code)
}
