// Package profile loads furbot.yaml, the bot's behavior profile: which
// subreddit it serves, how it searches, and how its loops are paced.
// Operator settings such as paths and credentials live in internal/config.
package profile

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	furbototel "github.com/vaisest/fakefurbot/internal/otel"
)

var tracer = furbototel.Tracer("github.com/vaisest/fakefurbot/internal/profile")

// Profile is a parsed furbot.yaml.
type Profile struct {
	Version string       `yaml:"version"`
	Bot     BotConfig    `yaml:"bot"`
	Search  SearchConfig `yaml:"search"`
	Loop    LoopConfig   `yaml:"loop"`
	Sweep   SweepConfig  `yaml:"sweep"`
}

// BotConfig identifies the bot.
type BotConfig struct {
	Subreddit string `yaml:"subreddit"`
	UserAgent string `yaml:"user_agent"`
	Trigger   string `yaml:"trigger"`
	AckPhrase string `yaml:"ack_phrase"`
	SelfToken string `yaml:"self_token"`
	Operator  string `yaml:"operator"`
	SourceURL string `yaml:"source_url"`
}

// SearchConfig tunes the search pipeline.
type SearchConfig struct {
	ScoreFloor       int      `yaml:"score_floor"`
	TagCutoff        int      `yaml:"tag_cutoff"`
	QueryTermLimit   int      `yaml:"query_term_limit"`
	SafeMarkers      []string `yaml:"safe_markers"`
	FallbackCooldown Duration `yaml:"fallback_cooldown"`
}

// LoopConfig paces the comment loop.
type LoopConfig struct {
	ReplyCooldown Duration      `yaml:"reply_cooldown"`
	PollInterval  Duration      `yaml:"poll_interval"`
	Backoff       BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds the comment loop's error pauses.
type BackoffConfig struct {
	ServerError Duration `yaml:"server_error"`
	APIError    Duration `yaml:"api_error"`
	Unknown     Duration `yaml:"unknown"`
}

// SweepConfig schedules the negative-score sweep.
type SweepConfig struct {
	Enabled      *bool    `yaml:"enabled"`
	Schedule     string   `yaml:"schedule"`
	PageSize     int      `yaml:"page_size"`
	ErrorBackoff Duration `yaml:"error_backoff"`
}

// IsEnabled reports whether the sweep should run. Unset means enabled.
func (s SweepConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Duration is a time.Duration written as a Go duration string ("90s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load reads, validates and parses the profile at path.
func Load(ctx context.Context, path string) (*Profile, error) {
	_, span := tracer.Start(ctx, "profile.load")
	defer span.End()
	span.SetAttributes(attribute.String("profile.path", path))

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", path, err)
	}
	p, err := Parse(content)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	span.SetAttributes(attribute.String("profile.subreddit", p.Bot.Subreddit))
	return p, nil
}

// Parse validates content against the schema, decodes it and fills
// defaults.
func Parse(content []byte) (*Profile, error) {
	if err := ValidateSchema(content); err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(content, &p); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	applyDefaults(&p)
	return &p, nil
}

// Defaults.
const (
	DefaultSubreddit       = "furry_irl"
	DefaultTrigger         = "furbot search"
	DefaultAckPhrase       = "good bot"
	DefaultSelfToken       = "furbot"
	DefaultScoreFloor      = 20
	DefaultTagCutoff       = 25
	DefaultQueryTermLimit  = 40
	DefaultSweepSchedule   = "@every 30m"
	DefaultSweepPageSize   = 200
	defaultFallback        = time.Second
	defaultReplyCooldown   = 5 * time.Second
	defaultPollInterval    = 10 * time.Second
	defaultServerBackoff   = 300 * time.Second
	defaultAPIBackoff      = 60 * time.Second
	defaultUnknownBackoff  = 120 * time.Second
	defaultSweepErrBackoff = 10 * time.Minute
)

func applyDefaults(p *Profile) {
	if p.Bot.Subreddit == "" {
		p.Bot.Subreddit = DefaultSubreddit
	}
	if p.Bot.Trigger == "" {
		p.Bot.Trigger = DefaultTrigger
	}
	if p.Bot.AckPhrase == "" {
		p.Bot.AckPhrase = DefaultAckPhrase
	}
	if p.Bot.SelfToken == "" {
		p.Bot.SelfToken = DefaultSelfToken
	}

	if p.Search.ScoreFloor == 0 {
		p.Search.ScoreFloor = DefaultScoreFloor
	}
	if p.Search.TagCutoff == 0 {
		p.Search.TagCutoff = DefaultTagCutoff
	}
	if p.Search.QueryTermLimit == 0 {
		p.Search.QueryTermLimit = DefaultQueryTermLimit
	}
	if len(p.Search.SafeMarkers) == 0 {
		p.Search.SafeMarkers = []string{"rating:s", "rating:safe"}
	}
	setDuration(&p.Search.FallbackCooldown, defaultFallback)

	setDuration(&p.Loop.ReplyCooldown, defaultReplyCooldown)
	setDuration(&p.Loop.PollInterval, defaultPollInterval)
	setDuration(&p.Loop.Backoff.ServerError, defaultServerBackoff)
	setDuration(&p.Loop.Backoff.APIError, defaultAPIBackoff)
	setDuration(&p.Loop.Backoff.Unknown, defaultUnknownBackoff)

	if p.Sweep.Schedule == "" {
		p.Sweep.Schedule = DefaultSweepSchedule
	}
	if p.Sweep.PageSize == 0 {
		p.Sweep.PageSize = DefaultSweepPageSize
	}
	setDuration(&p.Sweep.ErrorBackoff, defaultSweepErrBackoff)
}

func setDuration(d *Duration, def time.Duration) {
	if *d == 0 {
		*d = Duration(def)
	}
}
