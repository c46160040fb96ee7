package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TestProfile is a complete profile with no template placeholders.
const TestProfile = `version: "1"
bot:
  subreddit: furry_irl
  user_agent: "/r/Furry_irl FakeFurBot test suite"
  operator: heittoaway
loop:
  reply_cooldown: 1ms
  poll_interval: 1ms
`

// Install is a furbot installation laid out in a temp dir.
type Install struct {
	Dir            string
	DataDir        string
	Profile        string
	Blacklist      string
	AliasBlacklist string
	Implications   string
}

// WriteInstall writes profileYAML and small tag files into a temp dir and
// points the FURBOT_* env vars at them for the rest of the test. An empty
// profileYAML writes TestProfile.
func WriteInstall(t *testing.T, profileYAML string) Install {
	t.Helper()
	if profileYAML == "" {
		profileYAML = TestProfile
	}
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		return p
	}

	in := Install{
		Dir:            dir,
		DataDir:        filepath.Join(dir, "data"),
		Profile:        write("furbot.yaml", profileYAML),
		Blacklist:      write("blacklist.txt", "gore\nscat\n"),
		AliasBlacklist: write("generated_blacklist.txt", "gore\nguro\nscat\n"),
		Implications:   write("implicated_tags.txt", "wolf%canine\nwolf%canis\n"),
	}

	t.Setenv("FURBOT_DATA_DIR", in.DataDir)
	t.Setenv("FURBOT_SECRETS_KEY", TestEncryptionKey)
	t.Setenv("FURBOT_PROFILE", in.Profile)
	t.Setenv("FURBOT_BLACKLIST_PATH", in.Blacklist)
	t.Setenv("FURBOT_ALIAS_BLACKLIST_PATH", in.AliasBlacklist)
	t.Setenv("FURBOT_IMPLICATIONS_PATH", in.Implications)
	t.Setenv("FURBOT_PROCESSED_BACKEND", "file")
	return in
}

// SetPlatformCredentials points the platform env credentials at the fake
// PlatformServer's account.
func SetPlatformCredentials(t *testing.T, srv *PlatformServer) {
	t.Helper()
	t.Setenv("FURBOT_PLATFORM_BASE_URL", srv.URL)
	t.Setenv("FURBOT_PLATFORM_AUTH_URL", srv.URL)
	t.Setenv("FURBOT_REDDIT_CLIENT_ID", PlatformClientID)
	t.Setenv("FURBOT_REDDIT_CLIENT_SECRET", PlatformClientSecret)
	t.Setenv("FURBOT_REDDIT_USERNAME", PlatformUsername)
	t.Setenv("FURBOT_REDDIT_PASSWORD", PlatformPassword)
}

// SetCatalogCredentials points the catalog env credentials at srv.
func SetCatalogCredentials(t *testing.T, srv *CatalogServer) {
	t.Helper()
	t.Setenv("FURBOT_CATALOG_BASE_URL", srv.URL)
	t.Setenv("FURBOT_E621_USERNAME", "fox")
	t.Setenv("FURBOT_E621_API_KEY", "api-key")
}
