package blocksync

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/bluesky-social/indigo/xrpc"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Engine is the blocked-users synchronization engine: it keeps a local sqlite
// cache of moderation-list membership in step with the PDS, serves the
// extension's control API, and fans out cache-change events.
type Engine struct {
	h     *http.Client
	x     *xrpc.Client
	xmu   sync.RWMutex
	db    *gorm.DB
	store *Store
	rl    *RateLimiter
	bus   *eventBus
	clock *syntax.TIDClock

	echo        *echo.Echo
	httpd       *http.Server
	logger      *slog.Logger
	metricsAddr string
	apiKey      string

	syncMu     sync.Mutex
	activeSync *syncHandle

	activeMu    sync.RWMutex
	activeLists []string
}

type Args struct {
	DbPath      string
	PdsHost     string
	Identifier  string
	Password    string
	Addr        string
	MetricsAddr string
	ApiKey      string
	Logger      *slog.Logger
}

func New(ctx context.Context, args *Args) (*Engine, error) {
	if args.Logger == nil {
		args.Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	if args.DbPath == "" {
		args.DbPath = "modext.db"
	}

	db, err := gorm.Open(sqlite.Open(args.DbPath), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	rl := NewRateLimiter()
	h := &http.Client{
		Timeout:   120 * time.Second,
		Transport: rl.Transport(nil),
	}

	x := &xrpc.Client{
		Host:   args.PdsHost,
		Client: h,
	}

	args.Logger.Info("authenticating with pds...")

	resp, err := atproto.ServerCreateSession(ctx, x, &atproto.ServerCreateSession_Input{
		Identifier: args.Identifier,
		Password:   args.Password,
	})
	if err != nil {
		return nil, err
	}

	args.Logger.Info("authenticated with pds!", "did", resp.Did)

	x.Auth = &xrpc.AuthInfo{
		AccessJwt:  resp.AccessJwt,
		RefreshJwt: resp.RefreshJwt,
		Handle:     resp.Handle,
		Did:        resp.Did,
	}

	clock := syntax.NewTIDClock(0)

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())

	e.Use(middleware.Recover())
	e.Use(echoprometheus.NewMiddleware(""))

	slogEchoCfg := slogecho.Config{
		DefaultLevel:     slog.LevelInfo,
		ServerErrorLevel: slog.LevelError,
		Filters: []slogecho.Filter{
			func(ctx echo.Context) bool {
				return ctx.Request().URL.Path != "/_health"
			},
		},
	}

	e.Use(slogecho.NewWithConfig(args.Logger, slogEchoCfg))

	httpd := &http.Server{
		Handler: e,
		Addr:    args.Addr,
	}

	g := &Engine{
		h:           h,
		x:           x,
		db:          db,
		store:       NewStore(db),
		rl:          rl,
		bus:         newEventBus(),
		clock:       &clock,
		echo:        e,
		httpd:       httpd,
		logger:      args.Logger,
		metricsAddr: args.MetricsAddr,
		apiKey:      args.ApiKey,
	}

	g.addRoutes()

	return g, nil
}

func (g *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metricsServer := http.NewServeMux()
	metricsServer.Handle("/metrics", promhttp.Handler())

	go func() {
		g.logger.Info("starting metrics server", "addr", g.metricsAddr)
		if err := http.ListenAndServe(g.metricsAddr, metricsServer); err != nil {
			g.logger.Error("metrics server failed", "error", err)
		}
	}()

	go func() {
		g.logger.Info("starting httpd", "addr", g.httpd.Addr)
		if err := g.httpd.ListenAndServe(); err != nil {
			g.logger.Error("httpd server failed", "error", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			func() {
				g.xmu.Lock()
				defer g.xmu.Unlock()
				g.x.Auth.AccessJwt = g.x.Auth.RefreshJwt
				resp, err := atproto.ServerRefreshSession(ctx, g.x)
				if err != nil {
					g.logger.Error("error refreshing session", "error", err)
					return
				}
				g.x.Auth.AccessJwt = resp.AccessJwt
				g.x.Auth.RefreshJwt = resp.RefreshJwt
			}()
		}
	}()

	<-ctx.Done()

	g.CancelSync()

	return nil
}

func (g *Engine) GetClient() *xrpc.Client {
	g.xmu.RLock()
	defer g.xmu.RUnlock()
	return g.x
}

// RepoDid is the authenticated account's did, the repo all membership records
// are written to.
func (g *Engine) RepoDid() string {
	g.xmu.RLock()
	defer g.xmu.RUnlock()
	if g.x.Auth == nil {
		return ""
	}
	return g.x.Auth.Did
}

// Subscribe registers a callback for engine events. Callbacks run
// synchronously on the emitting goroutine; the returned function removes the
// subscription.
func (g *Engine) Subscribe(fn func(Event)) (unsubscribe func()) {
	return g.bus.subscribe(fn)
}

// Logout cancels any active sync, wipes the local cache, and drops the
// session.
func (g *Engine) Logout() error {
	g.CancelSync()
	if err := g.store.ClearAll(); err != nil {
		g.emitStoreError("clearing cache on logout", err)
		return err
	}
	g.xmu.Lock()
	g.x.Auth = nil
	g.xmu.Unlock()
	g.logger.Info("logged out, cache cleared")
	g.bus.emit(NoticeEvent{Message: "logged out"})
	return nil
}

func (g *Engine) sessionExpired() {
	g.logger.Warn("session expired")
	g.CancelSync()
	g.bus.emit(SessionExpiredEvent{})
	g.bus.emit(ErrorEvent{Message: "session expired, please log in again"})
}

func (g *Engine) emitStoreError(op string, err error) {
	g.logger.Error("cache store failure", "op", op, "error", err)
	g.bus.emit(ErrorEvent{Message: "storage error: " + err.Error()})
}

// Store exposes the cache for read-side collaborators.
func (g *Engine) Store() *Store {
	return g.store
}
