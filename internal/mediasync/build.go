package mediasync

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"meetingmedia/internal/assembler"
	"meetingmedia/internal/config"
	"meetingmedia/internal/logging"
	"meetingmedia/internal/mediacache"
	"meetingmedia/internal/mediator"
	"meetingmedia/internal/medialinks"
	"meetingmedia/internal/overrides"
	"meetingmedia/internal/progress"
	"meetingmedia/internal/publications"
	"meetingmedia/internal/schedule"
)

// Build wires a coordinator from configuration. cb receives progress; it
// may be nil.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, cb progress.Callback) (*Coordinator, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	resolver, err := NewResolver(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Media downloads can be large; only the API calls carry a timeout.
	fetcher := mediacache.NewSchemeFetcher(mediacache.NewHTTPFetcher(0, cfg.Remote.UserAgent))
	var store *overrides.Store
	if cfg.Congregation.Enabled {
		backend, err := overrides.NewBackend(cfg)
		if err != nil {
			return nil, err
		}
		if dav, ok := backend.(*overrides.DAVBackend); ok {
			fetcher.Handle(overrides.DAVScheme, dav)
		}
		store = overrides.NewStore(backend, cfg.Media.DateFormat, logger)
	}

	cache := mediacache.New(cfg.Paths.AppDir, fetcher, logger)
	library := publications.NewLibrary(cache, resolver, logger)
	calendar, err := schedule.NewCalendar(cfg)
	if err != nil {
		return nil, err
	}
	locator := schedule.NewLocator(library, cfg.Media.Language, cfg.Media.FallbackLanguage, logger)
	asm := assembler.New(library, resolver, assembler.DefaultPolicy(cfg.Media.ExcludeTh), assembler.Options{
		Lang:         cfg.Media.Language,
		FallbackLang: cfg.Media.FallbackLanguage,
		SignLanguage: SignLanguage(ctx, cfg, logger),
	}, logger)

	return New(Deps{
		Calendar:  calendar,
		Locator:   locator,
		Assembler: asm,
		Library:   library,
		Cache:     cache,
		Store:     store,
		Tracker:   progress.NewTracker(cb),
		Logger:    logger,
	}, Options{
		Lang:       cfg.Media.Language,
		OutputDir:  cfg.Paths.OutputDir,
		DateLayout: cfg.Media.DateFormat,
	}), nil
}

// SignLanguage reports whether the configured media language is a sign
// language: the explicit setting wins, then the mediator, then the
// built-in table.
func SignLanguage(ctx context.Context, cfg *config.Config, logger *slog.Logger) bool {
	if cfg.Media.SignLanguage != nil {
		return *cfg.Media.SignLanguage
	}
	client, err := NewMediator(cfg)
	if err != nil {
		logger.Debug("mediator client unavailable", logging.Error(err))
		return false
	}
	sign, err := client.IsSignLanguage(ctx, cfg.Media.Language)
	if err != nil {
		logger.Debug("sign language detection failed",
			logging.String("language", cfg.Media.Language),
			logging.Error(err))
	}
	return sign
}

// NewResolver builds the media-links resolver from the remote and media
// sections.
func NewResolver(cfg *config.Config, logger *slog.Logger) (*medialinks.Resolver, error) {
	links, err := medialinks.New(cfg.Remote.PubMediaURL,
		medialinks.WithTimeout(time.Duration(cfg.Remote.TimeoutSeconds)*time.Second),
		medialinks.WithUserAgent(cfg.Remote.UserAgent))
	if err != nil {
		return nil, fmt.Errorf("media links client: %w", err)
	}
	return medialinks.NewResolver(links, medialinks.OptionsFromConfig(cfg), logger), nil
}

// NewMediator builds the mediator client.
func NewMediator(cfg *config.Config) (*mediator.Client, error) {
	client, err := mediator.New(cfg.Remote.MediatorURL,
		mediator.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Remote.TimeoutSeconds) * time.Second}),
		mediator.WithUserAgent(cfg.Remote.UserAgent))
	if err != nil {
		return nil, fmt.Errorf("mediator client: %w", err)
	}
	return client, nil
}
