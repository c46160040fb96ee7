package cmd

import (
	"context"
	"fmt"

	"github.com/vaisest/fakefurbot/internal/catalog"
	"github.com/vaisest/fakefurbot/internal/command"
	"github.com/vaisest/fakefurbot/internal/config"
	"github.com/vaisest/fakefurbot/internal/platform"
	"github.com/vaisest/fakefurbot/internal/profile"
	"github.com/vaisest/fakefurbot/internal/reply"
	"github.com/vaisest/fakefurbot/internal/safety"
	"github.com/vaisest/fakefurbot/internal/search"
	"github.com/vaisest/fakefurbot/internal/secrets"
	"github.com/vaisest/fakefurbot/internal/tags"
)

// env is everything loaded from disk before a command talks to a
// remote service.
type env struct {
	cfg     *config.Config
	profile *profile.Profile
	tags    *tags.Catalog
	creds   *config.Credentials
}

// loadEnv reads operator config, the profile, the tag files and the
// credentials. accessor names the command in the vault access log.
func loadEnv(ctx context.Context, accessor string) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	cfg.WarnIfDefaultKey()

	prof, err := profile.Load(ctx, cfg.Profile)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	cat, err := tags.Load(cfg.TagPaths())
	if err != nil {
		return nil, fmt.Errorf("loading tag files: %w", err)
	}

	vault, err := secrets.Open(cfg.SecretsDBPath(), cfg.SecretsKey)
	if err != nil {
		return nil, fmt.Errorf("initializing secrets: %w", err)
	}
	defer vault.Close()

	creds, err := config.ResolveCredentials(ctx, vault, accessor)
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, profile: prof, tags: cat, creds: creds}, nil
}

func (r *env) catalogClient() *catalog.Client {
	return catalog.NewClient(r.cfg.CatalogBaseURL, r.profile.Bot.UserAgent, r.creds.Catalog)
}

func (r *env) platformClient(ctx context.Context) (*platform.Client, error) {
	return platform.NewClient(ctx, platform.Config{
		AuthURL:     r.cfg.PlatformAuthURL,
		BaseURL:     r.cfg.PlatformBaseURL,
		UserAgent:   r.profile.Bot.UserAgent,
		Credentials: r.creds.Platform,
	})
}

func (r *env) parser() *command.Parser {
	return command.NewParser(r.profile.Bot.Trigger)
}

func (r *env) safetyGate() *safety.Gate {
	return safety.NewGate(r.tags, safety.Options{
		QueryTermLimit: r.profile.Search.QueryTermLimit,
		SafeMarkers:    r.profile.Search.SafeMarkers,
	})
}

func (r *env) orchestrator(client search.Searcher) *search.Orchestrator {
	return search.New(client, r.tags, search.Options{
		ScoreFloor:       r.profile.Search.ScoreFloor,
		TagCutoff:        r.profile.Search.TagCutoff,
		FallbackCooldown: r.profile.Search.FallbackCooldown.Std(),
		SafeMarkers:      r.profile.Search.SafeMarkers,
		SelfToken:        r.profile.Bot.SelfToken,
	})
}

func (r *env) composer(scoreFloor int) *reply.Composer {
	return reply.NewComposer(reply.Footer{
		ScoreFloor: scoreFloor,
		Operator:   r.profile.Bot.Operator,
		SourceURL:  r.profile.Bot.SourceURL,
	})
}
