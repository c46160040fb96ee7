// Package doctor provides health checks for a furbot installation.
// Used by `furbot doctor` before the bot is started.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vaisest/fakefurbot/internal/catalog"
	"github.com/vaisest/fakefurbot/internal/config"
	"github.com/vaisest/fakefurbot/internal/platform"
	"github.com/vaisest/fakefurbot/internal/processed"
	"github.com/vaisest/fakefurbot/internal/profile"
	"github.com/vaisest/fakefurbot/internal/safety"
	"github.com/vaisest/fakefurbot/internal/secrets"
	"github.com/vaisest/fakefurbot/internal/tags"
)

// Check statuses.
const (
	StatusPass = "pass"
	StatusWarn = "warn"
	StatusFail = "fail"
)

const upstreamTimeout = 5 * time.Second

// CheckResult is a single doctor check outcome.
type CheckResult struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	Fix      string `json:"fix,omitempty"`
}

// Summary tallies pass/warn/fail counts.
type Summary struct {
	Pass int `json:"pass"`
	Warn int `json:"warn"`
	Fail int `json:"fail"`
}

// Report is the complete doctor output.
type Report struct {
	Status  string        `json:"status"` // worst of all checks
	Checks  []CheckResult `json:"checks"`
	Summary Summary       `json:"summary"`
}

// Options controls which check categories run.
type Options struct {
	SkipUpstream bool // skip catalog and platform connectivity (CI/offline)
	HTTPClient   *http.Client
}

// Run executes all doctor checks and returns a report.
func Run(ctx context.Context, opts Options) *Report {
	report := &Report{}

	cfg, err := config.Load()
	if err != nil {
		report.Checks = append(report.Checks, CheckResult{
			Name: "config_load", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("Cannot load config: %v", err),
			Fix:     "Check FURBOT_* env vars and furbot.config.yaml",
		})
	} else {
		report.Checks = append(report.Checks, checkConfig(ctx, cfg)...)
		if !opts.SkipUpstream {
			report.Checks = append(report.Checks, checkUpstreams(ctx, cfg, opts.HTTPClient)...)
		}
	}

	for _, c := range report.Checks {
		switch c.Status {
		case StatusPass:
			report.Summary.Pass++
		case StatusWarn:
			report.Summary.Warn++
		case StatusFail:
			report.Summary.Fail++
		}
	}

	report.Status = StatusPass
	if report.Summary.Warn > 0 {
		report.Status = StatusWarn
	}
	if report.Summary.Fail > 0 {
		report.Status = StatusFail
	}
	return report
}

func checkConfig(ctx context.Context, cfg *config.Config) []CheckResult {
	var results []CheckResult

	results = append(results, checkDataDir(cfg))
	results = append(results, checkSecretsKey(cfg))

	prof, profResult := checkProfile(ctx, cfg)
	results = append(results, profResult)
	results = append(results, checkTagFiles(cfg, prof))
	results = append(results, checkCredentials(ctx, cfg)...)
	results = append(results, checkProcessed(ctx, cfg))
	return results
}

func checkDataDir(cfg *config.Config) CheckResult {
	if err := cfg.EnsureDataDir(); err != nil {
		return CheckResult{
			Name: "data_dir_writable", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("%s: %v", cfg.DataDir, err),
			Fix:     "Ensure the directory exists and is writable",
		}
	}
	testFile := filepath.Join(cfg.DataDir, ".doctor-write-test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return CheckResult{
			Name: "data_dir_writable", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("%s not writable: %v", cfg.DataDir, err),
		}
	}
	_ = os.Remove(testFile)
	return CheckResult{
		Name: "data_dir_writable", Category: "config", Status: StatusPass,
		Message: fmt.Sprintf("%s (writable)", cfg.DataDir),
	}
}

func checkSecretsKey(cfg *config.Config) CheckResult {
	if cfg.UsingDefaultSecretsKey() {
		return CheckResult{
			Name: "secrets_key", Category: "config", Status: StatusWarn,
			Message: "Using generated default", Fix: "Set FURBOT_SECRETS_KEY for production",
		}
	}
	return CheckResult{Name: "secrets_key", Category: "config", Status: StatusPass, Message: "Configured"}
}

func checkProfile(ctx context.Context, cfg *config.Config) (*profile.Profile, CheckResult) {
	if _, err := os.Stat(cfg.Profile); err != nil {
		return nil, CheckResult{
			Name: "profile_valid", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("%s: file not found", cfg.Profile),
			Fix:     "Run 'furbot init' to create a profile",
		}
	}
	prof, err := profile.Load(ctx, cfg.Profile)
	if err != nil {
		return nil, CheckResult{
			Name: "profile_valid", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("%s: %v", cfg.Profile, err),
		}
	}
	if strings.Contains(prof.Bot.UserAgent, "CHANGEME") || strings.Contains(prof.Bot.Operator, "CHANGEME") {
		return prof, CheckResult{
			Name: "profile_valid", Category: "config", Status: StatusWarn,
			Message: fmt.Sprintf("%s still contains template placeholders", cfg.Profile),
			Fix:     "Set bot.user_agent and bot.operator to identify yourself",
		}
	}
	return prof, CheckResult{
		Name: "profile_valid", Category: "config", Status: StatusPass,
		Message: fmt.Sprintf("%s (r/%s)", cfg.Profile, prof.Bot.Subreddit),
	}
}

func checkTagFiles(cfg *config.Config, prof *profile.Profile) CheckResult {
	cat, err := tags.Load(cfg.TagPaths())
	if err != nil {
		return CheckResult{
			Name: "tag_files", Category: "config", Status: StatusFail,
			Message: err.Error(),
			Fix:     "Provide the blacklists and run 'furbot implications fetch'",
		}
	}
	msg := fmt.Sprintf("%d base, %d aliased, %d implicating tags",
		cat.Base.Len(), cat.Aliased.Len(), len(cat.Implications))

	if prof != nil && safety.UnratedBudget(prof.Search.QueryTermLimit, cat.Base.Len()) <= 0 {
		return CheckResult{
			Name: "tag_files", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("%s; base blacklist leaves no room under the %d term limit", msg, prof.Search.QueryTermLimit),
			Fix:     "Shorten the base blacklist; alias forms belong in the aliased list",
		}
	}
	if len(cat.Implications) == 0 {
		return CheckResult{
			Name: "tag_files", Category: "config", Status: StatusWarn,
			Message: msg + "; implication list is empty",
			Fix:     "Run 'furbot implications fetch'",
		}
	}
	return CheckResult{Name: "tag_files", Category: "config", Status: StatusPass, Message: msg}
}

func checkCredentials(ctx context.Context, cfg *config.Config) []CheckResult {
	var lookup config.SecretLookup
	store, err := secrets.Open(cfg.SecretsDBPath(), cfg.SecretsKey)
	if err == nil {
		defer store.Close()
		lookup = store
	}
	var results []CheckResult
	if err != nil {
		results = append(results, CheckResult{
			Name: "vault", Category: "credentials", Status: StatusWarn,
			Message: fmt.Sprintf("Cannot open vault: %v", err),
		})
	}

	creds, err := config.ResolveCredentials(ctx, lookup, "doctor")
	if err != nil {
		return append(results, CheckResult{
			Name: "credentials", Category: "credentials", Status: StatusFail,
			Message: err.Error(),
		})
	}
	for _, name := range secrets.KnownNames {
		src := creds.Sources[name]
		if src == config.SourceMissing {
			results = append(results, CheckResult{
				Name: "credential_" + name, Category: "credentials", Status: StatusFail,
				Message: "not set",
				Fix:     fmt.Sprintf("Run: furbot secrets set %s <value>", name),
			})
			continue
		}
		results = append(results, CheckResult{
			Name: "credential_" + name, Category: "credentials", Status: StatusPass,
			Message: "(" + src + ")",
		})
	}
	return results
}

func checkProcessed(ctx context.Context, cfg *config.Config) CheckResult {
	set, err := processed.Open(ctx, cfg.ProcessedOptions())
	if err != nil {
		return CheckResult{
			Name: "processed_store", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("%s: %v", cfg.ProcessedBackend, err),
		}
	}
	defer set.Close()
	if _, err := set.Contains(ctx, "doctor"); err != nil {
		return CheckResult{
			Name: "processed_store", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("%s: %v", cfg.ProcessedBackend, err),
		}
	}
	return CheckResult{
		Name: "processed_store", Category: "config", Status: StatusPass,
		Message: cfg.ProcessedBackend,
	}
}

func checkUpstreams(ctx context.Context, cfg *config.Config, client *http.Client) []CheckResult {
	if client == nil {
		client = &http.Client{Timeout: upstreamTimeout}
	}
	catalogURL := cfg.CatalogBaseURL
	if catalogURL == "" {
		catalogURL = catalog.DefaultBaseURL
	}
	platformURL := cfg.PlatformAuthURL
	if platformURL == "" {
		platformURL = platform.DefaultAuthURL
	}
	return []CheckResult{
		checkUpstream(ctx, client, "catalog", catalogURL),
		checkUpstream(ctx, client, "platform", platformURL),
	}
}

func checkUpstream(ctx context.Context, client *http.Client, name, baseURL string) CheckResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
	if err != nil {
		return CheckResult{
			Name: "upstream_" + name, Category: "upstream", Status: StatusFail,
			Message: fmt.Sprintf("Invalid URL: %v", err),
		}
	}
	start := time.Now()
	resp, err := client.Do(req) //nolint:gosec // URL from operator config
	latency := time.Since(start)
	if err != nil {
		return CheckResult{
			Name: "upstream_" + name, Category: "upstream", Status: StatusFail,
			Message: fmt.Sprintf("Connection failed: %v", err),
			Fix:     "Check network connectivity and the configured base URL",
		}
	}
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return CheckResult{
			Name: "upstream_" + name, Category: "upstream", Status: StatusWarn,
			Message: fmt.Sprintf("%s answered %d", baseURL, resp.StatusCode),
		}
	}
	if latency > 2*time.Second {
		return CheckResult{
			Name: "upstream_" + name, Category: "upstream", Status: StatusWarn,
			Message: fmt.Sprintf("%s: %.1fs (> 2s threshold)", baseURL, latency.Seconds()),
		}
	}
	return CheckResult{
		Name: "upstream_" + name, Category: "upstream", Status: StatusPass,
		Message: fmt.Sprintf("%s: %dms", baseURL, latency.Milliseconds()),
	}
}
