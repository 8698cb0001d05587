package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kroslabs/quickyshoppy/internal/activity"
	"github.com/kroslabs/quickyshoppy/internal/backup"
	"github.com/kroslabs/quickyshoppy/internal/handler"
	"github.com/kroslabs/quickyshoppy/internal/metrics"
	"github.com/kroslabs/quickyshoppy/internal/middleware"
	"github.com/kroslabs/quickyshoppy/internal/shopping"
	"github.com/kroslabs/quickyshoppy/internal/store"
	ws "github.com/kroslabs/quickyshoppy/internal/websocket"
)

// Config holds HTTP-level settings.
type Config struct {
	AnalyzeRateLimit  int
	AnalyzeRateWindow time.Duration
}

type Server struct {
	db          *sql.DB
	cfg         Config
	hub         *ws.Hub
	svc         *shopping.Service
	itemStore   *store.ItemStore
	activity    *activity.Log
	backupMgr   *backup.Manager
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger

	itemH     *handler.ItemHandler
	stateH    *handler.StateHandler
	recipeH   *handler.RecipeHandler
	importH   *handler.ImportHandler
	settingsH *handler.SettingsHandler
	activityH *handler.ActivityHandler
	backupH   *handler.BackupHandler

	cancel context.CancelFunc
}

func New(db *sql.DB, classifier shopping.Classifier, settingsStore *store.SettingsStore, log *activity.Log, backupCfg backup.Config, cfg Config, logger *slog.Logger) *Server {
	if cfg.AnalyzeRateLimit <= 0 {
		cfg.AnalyzeRateLimit = 10
	}
	if cfg.AnalyzeRateWindow <= 0 {
		cfg.AnalyzeRateWindow = time.Minute
	}

	hub := ws.NewHub(logger.With("component", "websocket"))
	itemStore := store.NewItemStore(db)

	svc := shopping.NewService(itemStore, classifier, settingsStore, log, logger.With("component", "shopping"))
	svc.OnStateChange(func(st shopping.UIState) {
		hub.Broadcast(ws.NewMessage(ws.TypeUIState, st))
	})

	backupMgr := backup.NewManager(backupCfg, db, store.NewBackupStore(db), logger.With("component", "backup"), func(s backup.Status) {
		hub.Broadcast(ws.NewMessage(ws.TypeBackup, s))
	})

	return &Server{
		db:          db,
		cfg:         cfg,
		hub:         hub,
		svc:         svc,
		itemStore:   itemStore,
		activity:    log,
		backupMgr:   backupMgr,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
		itemH:       handler.NewItemHandler(svc, itemStore, logger.With("component", "items")),
		stateH:      handler.NewStateHandler(svc, logger.With("component", "state")),
		recipeH:     handler.NewRecipeHandler(svc, logger.With("component", "recipes")),
		importH:     handler.NewImportHandler(svc, log, logger.With("component", "imports")),
		settingsH:   handler.NewSettingsHandler(svc, settingsStore, logger.With("component", "settings")),
		activityH:   handler.NewActivityHandler(log),
		backupH:     handler.NewBackupHandler(backupMgr, logger.With("component", "backup")),
	}
}

// Service returns the shopping orchestrator.
func (s *Server) Service() *shopping.Service {
	return s.svc
}

// Start wires the live item query and the activity log into the websocket
// hub and starts background jobs. Stop with Close.
func (s *Server) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	items, err := s.itemStore.Watch(ctx)
	if err != nil {
		s.cancel()
		return err
	}
	go func() {
		for snapshot := range items {
			s.hub.Broadcast(ws.NewMessage(ws.TypeItems, snapshot))
		}
	}()

	entries := s.activity.Subscribe(ctx)
	go func() {
		for snapshot := range entries {
			s.hub.Broadcast(ws.NewMessage(ws.TypeActivity, snapshot))
		}
	}()

	s.hub.Broadcast(ws.NewMessage(ws.TypeUIState, s.svc.State()))
	s.rateLimiter.StartCleanup(ctx, 5*time.Minute)
	s.backupMgr.Start(ctx)
	return nil
}

// Close stops background jobs and waits for in-flight categorizations.
func (s *Server) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.backupMgr.Stop()
	s.svc.Close()
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	// Items
	mux.HandleFunc("GET /api/items", s.itemH.List)
	mux.HandleFunc("POST /api/items", s.itemH.Create)
	mux.HandleFunc("GET /api/items/export", s.itemH.Export)
	mux.HandleFunc("PUT /api/items/{id}/category", s.itemH.UpdateCategory)
	mux.HandleFunc("PUT /api/items/{id}/link", s.itemH.UpdateLink)
	mux.HandleFunc("POST /api/items/{id}/toggle", s.itemH.Toggle)
	mux.HandleFunc("DELETE /api/items/{id}", s.itemH.Delete)

	// UI state and delete dialog
	mux.HandleFunc("GET /api/state", s.stateH.Get)
	mux.HandleFunc("DELETE /api/state/error", s.stateH.ClearError)
	mux.HandleFunc("POST /api/delete-dialog", s.stateH.ShowDeleteDialog)
	mux.HandleFunc("DELETE /api/delete-dialog", s.stateH.HideDeleteDialog)
	mux.HandleFunc("POST /api/delete-dialog/confirm", s.stateH.ConfirmDelete)

	// Recipe analysis and ingredient review
	mux.HandleFunc("POST /api/recipes/analyze", s.rateLimited(s.recipeH.Analyze))
	mux.HandleFunc("POST /api/ingredients/{index}/toggle", s.recipeH.ToggleIngredient)
	mux.HandleFunc("POST /api/ingredients/select", s.recipeH.SelectIngredients)
	mux.HandleFunc("POST /api/ingredients/commit", s.recipeH.CommitIngredients)
	mux.HandleFunc("DELETE /api/ingredients", s.recipeH.CancelIngredients)

	// Import review
	mux.HandleFunc("POST /api/imports/detect", s.importH.Detect)
	mux.HandleFunc("POST /api/imports/{index}/toggle", s.importH.Toggle)
	mux.HandleFunc("POST /api/imports/select", s.importH.SelectAll)
	mux.HandleFunc("POST /api/imports/commit", s.importH.Commit)
	mux.HandleFunc("DELETE /api/imports", s.importH.Cancel)

	// Settings
	mux.HandleFunc("GET /api/settings/api-key", s.settingsH.GetAPIKey)
	mux.HandleFunc("PUT /api/settings/api-key", s.settingsH.PutAPIKey)
	mux.HandleFunc("DELETE /api/settings/api-key", s.settingsH.DeleteAPIKey)

	// Activity log
	mux.HandleFunc("GET /api/activity", s.activityH.List)
	mux.HandleFunc("GET /api/activity/text", s.activityH.Text)
	mux.HandleFunc("DELETE /api/activity", s.activityH.Clear)

	// Backups
	mux.HandleFunc("POST /api/backup", s.backupH.Run)
	mux.HandleFunc("GET /api/backup/status", s.backupH.Status)

	var h http.Handler = mux
	h = metrics.Middleware(h)
	h = middleware.RequestLogger(s.logger.With("component", "http"))(h)
	h = middleware.RequestID(h)
	return h
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, s.cfg.AnalyzeRateLimit, s.cfg.AnalyzeRateWindow)
	return rl(h).ServeHTTP
}
