// ABOUTME: Builds the shared object graph (store, limiter, generator, platform) for commands
// ABOUTME: Each command asks only for the collaborators it needs
package commands

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/harper/dmagent/internal/config"
	"github.com/harper/dmagent/internal/conversation"
	"github.com/harper/dmagent/internal/leads"
	"github.com/harper/dmagent/internal/llm"
	"github.com/harper/dmagent/internal/notify"
	"github.com/harper/dmagent/internal/platform"
	"github.com/harper/dmagent/internal/platform/bridge"
	"github.com/harper/dmagent/internal/ratelimit"
	"github.com/harper/dmagent/internal/storage"
	"github.com/harper/dmagent/internal/storage/backend"
)

type needs uint8

const (
	needGenerator needs = 1 << iota
	needPlatform
)

type app struct {
	cfg      *config.Config
	store    storage.Store
	notifier *notify.Multi
	limiter  *ratelimit.Limiter
	gen      *llm.Client
	convs    *conversation.Manager
	bridge   *bridge.Client
	platform platform.Client
}

// sessionStore keeps the bridge session in the bot state row
type sessionStore struct{ store storage.Store }

func (s sessionStore) LoadSession(ctx context.Context) (string, error) {
	st, err := s.store.BotState(ctx)
	if err != nil {
		return "", err
	}
	return st.PlatformSession, nil
}

func (s sessionStore) SaveSession(ctx context.Context, session string) error {
	return s.store.SavePlatformSession(ctx, session)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	store, err := backend.Open(ctx, backend.Options{DatabaseURL: cfg.DatabaseURL, DBPath: cfg.DBPath}, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

func newGenerator(ctx context.Context, cfg *config.Config) (*llm.Client, error) {
	var completer llm.Completer
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		c, err := llm.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, err
		}
		completer = c
	default:
		g, err := llm.NewGemini(ctx, cfg.GeminiKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		completer = g
	}
	logger.Debug("generator ready", zap.String("provider", completer.Name()))
	return llm.NewClient(completer, cfg.LLMOptions(), logger.Named("llm")), nil
}

func newNotifier(cfg *config.Config) *notify.Multi {
	var ns []notify.Notifier
	if cfg.AMQPURL != "" {
		pub, err := notify.DialPublisher(cfg.AMQPURL)
		if err != nil {
			logger.Warn("event publishing disabled", zap.Error(err))
		} else {
			ns = append(ns, pub)
		}
	}
	if cfg.SMTPHost != "" {
		ns = append(ns, notify.NewEmailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.AlertEmail))
	}
	return notify.NewMulti(logger.Named("notify"), ns...)
}

func openApp(ctx context.Context, n needs) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return buildApp(ctx, cfg, n)
}

func buildApp(ctx context.Context, cfg *config.Config, n needs) (*app, error) {
	if n&needGenerator != 0 {
		if err := cfg.RequireGenerator(); err != nil {
			return nil, err
		}
	}
	if n&needPlatform != 0 {
		if err := cfg.RequirePlatform(); err != nil {
			return nil, err
		}
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, store: store, notifier: newNotifier(cfg)}

	a.limiter = ratelimit.New(store, cfg.LimiterConfig(),
		ratelimit.WithNotifier(a.notifier),
		ratelimit.WithLogger(logger.Named("ratelimit")))

	var gen conversation.Generator
	if n&needGenerator != 0 {
		a.gen, err = newGenerator(ctx, cfg)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		gen = a.gen
	}
	a.convs = conversation.NewManager(store, gen, a.limiter,
		conversation.Config{Rules: cfg.ScoringRules(), ScoreThreshold: cfg.ScoreThreshold},
		conversation.WithNotifier(a.notifier),
		conversation.WithLogger(logger.Named("conversation")))

	if n&needPlatform != 0 {
		a.bridge = bridge.NewClient(bridge.Config{
			BaseURL:  cfg.BridgeURL,
			Username: cfg.PlatformUsername,
			Password: cfg.PlatformPassword,
			Timeout:  cfg.PlatformTimeout,
		}, sessionStore{store}, logger.Named("bridge"))
		a.platform = platform.NewTyping(a.bridge, platform.TypingOptions{
			PerChar:  cfg.TypingSpeed,
			PauseMin: cfg.TypingDelayMin,
			PauseMax: cfg.TypingDelayMax,
		}, logger.Named("typing"))
	}
	return a, nil
}

// login authenticates with the platform; callers must have asked for needPlatform
func (a *app) login(ctx context.Context) error {
	if err := a.platform.Login(ctx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	return nil
}

// intake builds lead intake; it needs both the generator and the platform
func (a *app) intake() *leads.Intake {
	return leads.New(a.platform, a.store, a.gen, leads.WithLogger(logger.Named("leads")))
}

func (a *app) Close() error {
	return errors.Join(a.notifier.Close(), a.store.Close())
}
