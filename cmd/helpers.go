package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lanceworks/autobid-cli/internal/browser"
	"github.com/lanceworks/autobid-cli/internal/extractor"
	"github.com/lanceworks/autobid-cli/internal/notify"
	"github.com/lanceworks/autobid-cli/internal/pipeline"
	"github.com/lanceworks/autobid-cli/internal/platform"
	"github.com/lanceworks/autobid-cli/internal/proposal"
	"github.com/lanceworks/autobid-cli/internal/resilience"
	"github.com/lanceworks/autobid-cli/internal/session"
	"github.com/lanceworks/autobid-cli/internal/store"
	"github.com/lanceworks/autobid-cli/internal/submit"
	anthropicpkg "github.com/lanceworks/autobid-cli/pkg/anthropic"
	"github.com/lanceworks/autobid-cli/pkg/textgen"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "autobid.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initBrowser() browser.Browser {
	return browser.NewChrome(browser.ChromeConfig{
		Headless:  cfg.Browser.Headless,
		UserAgent: cfg.Browser.UserAgent,
	})
}

// initRegistry returns the enabled strategies with selector overrides applied.
func initRegistry() (*platform.Registry, []platform.Strategy, error) {
	reg := platform.DefaultRegistry()
	if err := reg.ApplyOverrides(cfg.Platforms.SelectorFile); err != nil {
		return nil, nil, err
	}

	strategies := make([]platform.Strategy, 0, len(cfg.Platforms.Enabled))
	for _, name := range cfg.Platforms.Enabled {
		s, err := reg.Get(name)
		if err != nil {
			return nil, nil, err
		}
		strategies = append(strategies, s)
	}
	return reg, strategies, nil
}

func initGenerator() (proposal.Generator, error) {
	switch cfg.Proposal.Provider {
	case "anthropic":
		if cfg.Anthropic.Key == "" {
			return nil, eris.New("anthropic API key is required (AUTOBID_ANTHROPIC_KEY)")
		}
		return proposal.NewAnthropic(
			anthropicpkg.NewClient(cfg.Anthropic.Key),
			cfg.Anthropic.Model,
			int64(cfg.TextGen.MaxTokens),
		), nil
	case "textgen":
		if cfg.TextGen.Key == "" {
			return nil, eris.New("generation service API key is required (AUTOBID_TEXTGEN_KEY)")
		}
		client := textgen.NewClient(cfg.TextGen.Key,
			textgen.WithBaseURL(cfg.TextGen.BaseURL),
			textgen.WithModel(cfg.TextGen.Model),
		)
		return proposal.NewTextGen(client, cfg.TextGen.Model, cfg.TextGen.MaxTokens, cfg.TextGen.Temperature), nil
	default:
		return nil, eris.Errorf("unsupported proposal provider: %s", cfg.Proposal.Provider)
	}
}

func initSessionManager(st store.Store) *session.Manager {
	opts := []session.Option{
		session.WithTTL(time.Duration(cfg.Session.TTLHours) * time.Hour),
		session.WithRetry(resilience.RetryConfig{
			MaxAttempts:    cfg.Session.LoginMaxAttempts,
			InitialBackoff: time.Duration(cfg.Session.LoginBackoffSecs) * time.Second,
		}),
		session.WithSelectorTimeout(time.Duration(cfg.Browser.SelectorTimeoutSecs) * time.Second),
	}
	if cfg.Session.ScreenshotDir != "" {
		opts = append(opts, session.WithScreenshotDir(cfg.Session.ScreenshotDir))
	}
	return session.NewManager(st, opts...)
}

// initDiscovery assembles the discovery pipeline. The seen cache and the
// notifier are both optional; missing config just narrows the pipeline.
func initDiscovery(ctx context.Context, b browser.Browser, st store.Store, strategies []platform.Strategy, withNotify bool) *pipeline.Discovery {
	ex := extractor.New(
		extractor.WithSelectorTimeout(time.Duration(cfg.Browser.SelectorTimeoutSecs) * time.Second),
	)

	opts := []pipeline.DiscoveryOption{
		pipeline.WithMaxConcurrent(cfg.Platforms.MaxConcurrent),
	}

	if cfg.Redis.URL != "" {
		seen, err := store.NewSeenCache(ctx, cfg.Redis.URL, time.Duration(cfg.Redis.SeenTTLHours)*time.Hour)
		if err != nil {
			zap.L().Warn("seen cache unavailable, continuing without it", zap.Error(err))
		} else {
			opts = append(opts, pipeline.WithSeenFilter(seen))
		}
	}

	if withNotify && cfg.Notify.RelayURL != "" {
		dispatcher := notify.NewDispatcher(st, cfg.Notify.RatePerMinute,
			notify.NewRelayChannel(cfg.Notify.RelayURL, cfg.Notify.RelayKey),
		)
		opts = append(opts, pipeline.WithNotifier(dispatcher))
		if cfg.Notify.ReviewURL != "" {
			opts = append(opts, pipeline.WithReviewURL(cfg.Notify.ReviewURL))
		}
	}

	return pipeline.NewDiscovery(b, ex, st, strategies, opts...)
}

func initSubmission(b browser.Browser, st store.Store, reg *platform.Registry) (*pipeline.Submission, error) {
	gen, err := initGenerator()
	if err != nil {
		return nil, err
	}

	sub := submit.NewSubmitter(
		submit.WithSelectorTimeout(time.Duration(cfg.Browser.SelectorTimeoutSecs) * time.Second),
	)

	return pipeline.NewSubmission(b, st, initSessionManager(st), gen, sub, reg,
		pipeline.WithFallback(cfg.Proposal.FallbackEnabled),
		pipeline.WithDefaults(cfg.Proposal.DefaultProfile, cfg.Proposal.DefaultDirectives),
	), nil
}
