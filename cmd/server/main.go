package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"parqueo/internal/access"
	"parqueo/internal/auth"
	"parqueo/internal/checkpoint"
	"parqueo/internal/history"
	"parqueo/internal/notification"
	"parqueo/internal/platform/config"
	"parqueo/internal/platform/httpserver"
	"parqueo/internal/platform/logger"
	"parqueo/internal/platform/metrics"
	platformredis "parqueo/internal/platform/redis"
	"parqueo/internal/reservation"
	"parqueo/internal/rule"
	"parqueo/internal/sanction"
	"parqueo/internal/space"
	transport "parqueo/internal/transport/http"
	"parqueo/internal/user"
	id "parqueo/pkg/domain"
	"parqueo/pkg/platform/tx"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// stores bundles every persistence interface so run can wire either the
// postgres or the in-memory flavor in one place.
type stores struct {
	spaces       space.Store
	users        user.Store
	rules        rule.Store
	events       history.Store
	notes        notification.Store
	tokens       checkpoint.Store
	reservations reservation.Store
	sanctions    sanction.Store
	txRunner     tx.Runner
}

func run() error {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)
	m := metrics.New()

	st, cleanup, err := buildStores(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	// Notifications ride the broker when one is configured; otherwise they
	// land straight in the store.
	var notifier notification.Notifier
	var consumer *notification.Consumer
	if cfg.AMQPURL != "" {
		pub := notification.NewAMQPPublisher(cfg.AMQPURL, log)
		defer pub.Close()
		notifier = pub
		consumer = notification.NewConsumer(cfg.AMQPURL, st.notes, log)
	} else {
		notifier = notification.NewLogNotifier(st.notes, log)
	}

	// The engine and the checkpoint service depend on each other through
	// narrow interfaces; the token service is built first with a nil
	// engine slot filled below.
	var engineRef engineProxy
	tokenSvc := checkpoint.NewService(st.tokens, &engineRef,
		checkpoint.WithLogger(log), checkpoint.WithMetrics(m))

	engine := reservation.NewEngine(st.reservations, st.spaces, st.users, st.events, notifier, tokenSvc,
		reservation.WithLogger(log),
		reservation.WithMetrics(m),
		reservation.WithEntryWindow(cfg.EntryWindow))
	engineRef.Engine = engine

	sanctionOpts := []sanction.Option{
		sanction.WithLogger(log),
		sanction.WithMetrics(m),
		sanction.WithTxRunner(st.txRunner),
	}
	if cfg.OverstayRuleID != "" {
		ruleID, err := id.ParseRuleID(cfg.OverstayRuleID)
		if err != nil {
			return fmt.Errorf("parse PARQUEO_OVERSTAY_RULE_ID: %w", err)
		}
		sanctionOpts = append(sanctionOpts, sanction.WithOverstayRule(ruleID))
	}
	sanctionSvc := sanction.NewService(st.sanctions, st.rules, st.users, st.events, notifier, sanctionOpts...)

	gate := access.NewGate(st.sanctions, st.reservations, log)
	issuer := auth.NewTokenIssuer([]byte(cfg.JWTSigningKey), cfg.SessionTTL)
	authSvc := auth.NewService(st.users, gate, issuer,
		auth.WithLogger(log), auth.WithMetrics(m))

	sweeper := reservation.NewSweeper(engine, st.reservations, tokenSvc, sanctionSvc, notifier,
		reservation.SweeperWithLogger(log),
		reservation.SweeperWithMetrics(m),
		reservation.SweeperWithInterval(cfg.SweepInterval),
		reservation.SweeperWithReminderWindow(cfg.ReminderWindow),
		reservation.SweeperWithStoreTimeout(cfg.StoreTimeout))

	router := transport.New(transport.Config{
		Logger:    log,
		Metrics:   m,
		Validator: issuer,
		Timeout:   cfg.StoreTimeout * 3,
		Public:    []transport.Registrar{auth.NewHandler(authSvc)},
		Protected: []transport.Registrar{
			reservation.NewHandler(engine),
			checkpoint.NewHandler(tokenSvc),
			sanction.NewHandler(sanctionSvc),
		},
	})
	server := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		err := sweeper.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if consumer != nil {
		g.Go(func() error {
			err := consumer.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// engineProxy breaks the construction cycle between the checkpoint
// service and the reservation engine.
type engineProxy struct {
	*reservation.Engine
}

func buildStores(cfg config.Config, log *slog.Logger) (*stores, func(), error) {
	cleanup := func() {}

	if cfg.DatabaseURL == "" {
		log.Warn("no database configured, using in-memory stores")
		return &stores{
			spaces:       space.NewMemory(),
			users:        user.NewMemory(),
			rules:        rule.NewMemory(),
			events:       history.NewMemory(),
			notes:        notification.NewMemory(),
			tokens:       checkpoint.NewMemory(),
			reservations: reservation.NewMemory(),
			sanctions:    sanction.NewMemory(),
			txRunner:     tx.Direct{},
		}, cleanup, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, cleanup, fmt.Errorf("open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, cleanup, fmt.Errorf("ping database: %w", err)
	}

	var tokens checkpoint.Store = checkpoint.NewPostgres(db)
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, cleanup, err
	}
	if redisClient != nil {
		tokens = checkpoint.NewCached(tokens, redisClient, 5*time.Minute, log)
	}

	cleanup = func() {
		if redisClient != nil {
			redisClient.Close()
		}
		db.Close()
	}
	return &stores{
		spaces:       space.NewPostgres(db),
		users:        user.NewPostgres(db),
		rules:        rule.NewPostgres(db),
		events:       history.NewPostgres(db),
		notes:        notification.NewMemory(),
		tokens:       tokens,
		reservations: reservation.NewPostgres(db),
		sanctions:    sanction.NewPostgres(db),
		txRunner:     &tx.SQLRunner{DB: db},
	}, cleanup, nil
}
