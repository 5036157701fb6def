// Package bot wires the membership service and the conversation machine into
// the Telegram runtime.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/gatebot/core/logger"
	tg "github.com/m3rciful/gatebot/core/telegram"
	"github.com/m3rciful/gatebot/core/telegram/keyboard"
	"github.com/m3rciful/gatebot/core/telegram/middleware"
	"github.com/m3rciful/gatebot/core/telegram/router"
	tgsender "github.com/m3rciful/gatebot/core/telegram/sender"
	"github.com/m3rciful/gatebot/internal/config"
	"github.com/m3rciful/gatebot/internal/conversation"
	"github.com/m3rciful/gatebot/internal/membership"
	"github.com/m3rciful/gatebot/internal/records"

	tele "gopkg.in/telebot.v4"
)

// App is the assembled bot.
type App struct {
	cfg      *config.Config
	store    *records.Store
	service  *membership.Service
	dialogs  *dialogs
	caps     *capabilities
	registry *tg.Registry
	metrics  *prometheus.Registry

	mu         sync.Mutex
	metricsSrv *http.Server
	stopSweep  context.CancelFunc
}

// New builds the bot around store. The store is closed by Close.
func New(cfg *config.Config, store *records.Store) (*App, error) {
	if cfg == nil || store == nil {
		return nil, fmt.Errorf("bot: config and store are required")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	middleware.RegisterMetrics(reg)

	caps := &capabilities{}
	svc := membership.New(store, caps, membership.Options{
		AdminID:    cfg.Telegram.AdminID,
		GroupID:    cfg.Telegram.GroupID,
		Cooldown:   cfg.Policy.Cooldown(),
		InviteTTL:  cfg.Policy.InviteTTL(),
		Registerer: reg,
	})

	a := &App{
		cfg:      cfg,
		store:    store,
		service:  svc,
		dialogs:  newDialogs(conversation.NewMachine(svc)),
		caps:     caps,
		registry: tg.NewRegistry(),
		metrics:  reg,
	}
	if err := a.register(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) register() error {
	commands := map[string]tg.Command{
		"/start":  {Handler: privateOnly(a.handleStart), Description: "Open the menu"},
		"/menu":   {Handler: privateOnly(a.handleStart), Description: "Open the menu", Hidden: true},
		"/cancel": {Handler: privateOnly(a.handleCancel), Description: "Cancel the current step"},
	}
	for _, sc := range commandSelections {
		commands[sc.name] = tg.Command{
			Handler:     privateOnly(a.selectCommand(sc.selection)),
			Description: sc.description,
			AdminOnly:   true,
		}
	}
	for name, cmd := range commands {
		if err := a.registry.RegisterCommand(name, cmd); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	}

	cbs := map[string]tele.HandlerFunc{
		menuUnique:               a.handleMenu,
		keyboard.CancelUnique:    a.handleCancelButton,
		membership.ActionApprove: a.handleDecision(true),
		membership.ActionReject:  a.handleDecision(false),
	}
	for unique, h := range cbs {
		if err := a.registry.RegisterCallback(unique, h); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	}
	return nil
}

// Service exposes the membership service, for the CLI.
func (a *App) Service() *membership.Service {
	return a.service
}

// TelegramRunOptions assembles routes, middlewares and lifecycle hooks.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	cmdOpts := router.CommandRouteOptions{
		AdminID:       a.cfg.Telegram.AdminID,
		OnAdminReject: a.handleAdminReject,
	}

	routes := router.CommandRoutes(a.registry, cmdOpts)
	routes = append(routes, router.CallbackRoute(a.registry))
	routes = append(routes, router.MessageRoutes(a.dialogs, a.registry, router.MessageOptions{
		Commands:     cmdOpts,
		UnknownText:  privateOnly(a.handleUnknownText),
		UnknownMedia: privateOnly(a.handleUnknownText),
	})...)
	routes = append(routes, tg.Route{Endpoint: tele.OnUserJoined, Handler: a.handleUserJoined})

	return tg.RunOptions{
		Config:            &a.cfg.Config,
		Registry:          a.registry,
		DispatcherOptions: tgsender.Options{MaxRetries: 2, Registerer: a.metrics},
		Middlewares:       tg.DefaultMiddlewares(&a.cfg.Config, nil),
		Routes:            routes,
		OnStart:           a.onStart,
		OnStop:            a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt tg.Runtime) error {
	if rt.Bot != nil {
		a.caps.attach(rt.Bot)
	}

	sweepCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.mu.Lock()
	a.stopSweep = cancel
	a.mu.Unlock()
	go a.dialogs.Sweep(sweepCtx)

	return a.startMetrics(ctx)
}

func (a *App) onStop(ctx context.Context, _ tg.Runtime) error {
	a.mu.Lock()
	stop, srv := a.stopSweep, a.metricsSrv
	a.stopSweep, a.metricsSrv = nil, nil
	a.mu.Unlock()

	if stop != nil {
		stop()
	}
	a.caps.attach(nil)
	if srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// startMetrics serves the Prometheus registry when metrics.listen is set.
func (a *App) startMetrics(ctx context.Context) error {
	listen := a.cfg.Metrics.Listen
	if listen == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{Registry: a.metrics}))
	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	a.mu.Lock()
	a.metricsSrv = srv
	a.mu.Unlock()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "app", "metrics.serve", logger.Err(err))
		}
	}()
	logger.Info(ctx, "app", "metrics.listen",
		slog.String("listen", listen),
		slog.String("path", a.cfg.Metrics.Path),
	)
	return nil
}

// Close releases the records store.
func (a *App) Close() error {
	return a.store.Close()
}
