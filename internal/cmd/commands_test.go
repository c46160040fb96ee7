package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaisest/fakefurbot/internal/processed"
	"github.com/vaisest/fakefurbot/internal/profile"
	"github.com/vaisest/fakefurbot/internal/testutil"
)

func wolfPost() testutil.CatalogPost {
	return testutil.CatalogPost{
		ID:     42,
		Rating: "s",
		Tags: map[string][]string{
			"general": {"wolf", "canine", "canis"},
			"species": {"mammal"},
		},
		File:  testutil.CatalogFile{Ext: "png", URL: "https://static.example/42.png"},
		Score: testutil.CatalogScore{Total: 99},
	}
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "furbot.yaml")

	out, err := execute(t, "init", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, profile.Template, string(data))

	_, err = execute(t, "init", "--file", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "init", "--file", path, "--force")
	require.NoError(t, err)
}

func TestValidateCommand(t *testing.T) {
	testutil.WriteInstall(t, "")

	out, err := execute(t, "validate", "--tags")
	require.NoError(t, err)
	assert.Contains(t, out, "Profile valid")
	assert.Contains(t, out, "r/furry_irl")
	assert.Contains(t, out, "2 base, 3 aliased, 1 implicating tags (37 tags per unrated request)")
}

func TestValidateCommand_Invalid(t *testing.T) {
	in := testutil.WriteInstall(t, "")
	bad := filepath.Join(in.Dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("version: \"1\"\nbot: {}\n"), 0o600))

	out, err := execute(t, "validate", "-f", bad)
	require.Error(t, err)
	assert.Contains(t, out, "Validation failed")
}

func TestSearchCommand_PrintsReply(t *testing.T) {
	testutil.WriteInstall(t, "")
	cat := testutil.NewCatalogServer(func([]string) []testutil.CatalogPost {
		return []testutil.CatalogPost{wolfPost()}
	})
	t.Cleanup(cat.Close)
	testutil.SetCatalogCredentials(t, cat)

	out, err := execute(t, "search", "--author", "fox", "furbot search wolf")
	require.NoError(t, err)

	assert.Contains(t, out, "Hello, fox.")
	assert.Contains(t, out, cat.URL+"/posts/42")
	assert.Contains(t, out, "Score: 99")

	searches := cat.Searches()
	require.Len(t, searches, 1)
	assert.True(t, searches[0].HasTerm("wolf"))
	assert.True(t, searches[0].HasTerm("-gore"))
	assert.True(t, searches[0].HasTerm("score:>=20"))
}

func TestSearchCommand_Rejected(t *testing.T) {
	testutil.WriteInstall(t, "")
	cat := testutil.NewCatalogServer(nil)
	t.Cleanup(cat.Close)
	testutil.SetCatalogCredentials(t, cat)

	out, err := execute(t, "search", "furbot search wolf guro")
	require.NoError(t, err)
	assert.Contains(t, out, "blacklisted")
	assert.Contains(t, out, "guro")
	assert.Empty(t, cat.Searches())
}

func TestSearchCommand_NoTrigger(t *testing.T) {
	testutil.WriteInstall(t, "")
	_, err := execute(t, "search", "just a comment")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trigger")
}

func TestSweepCommand(t *testing.T) {
	testutil.WriteInstall(t, "")
	plat := testutil.NewPlatformServer()
	t.Cleanup(plat.Close)
	testutil.SetPlatformCredentials(t, plat)
	plat.SetUserComments(
		testutil.PlatformComment{ID: "good", Author: testutil.PlatformUsername, Score: 3},
		testutil.PlatformComment{ID: "bad", Author: testutil.PlatformUsername, Score: -2},
	)

	out, err := execute(t, "sweep", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Scanned 2 comments. Would remove 1.")
	assert.Empty(t, plat.Deleted())

	out, err = execute(t, "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1.")
	assert.Equal(t, []string{"t1_bad"}, plat.Deleted())
}

func TestImplicationsFetchCommand(t *testing.T) {
	in := testutil.WriteInstall(t, "")
	cat := testutil.NewCatalogServer(nil)
	t.Cleanup(cat.Close)
	testutil.SetCatalogCredentials(t, cat)
	cat.SetImplications([]testutil.CatalogImplication{
		{ID: 1, AntecedentName: "fox", ConsequentName: "canine", Status: "active"},
		{ID: 2, AntecedentName: "wolf", ConsequentName: "canis", Status: "active"},
	})

	out, err := execute(t, "implications", "fetch")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 2 implications")

	data, err := os.ReadFile(in.Implications)
	require.NoError(t, err)
	assert.Equal(t, "fox%canine\nwolf%canis\n", string(data))
}

func TestImplicationsFetchCommand_FailureKeepsFile(t *testing.T) {
	in := testutil.WriteInstall(t, "")
	cat := testutil.NewCatalogServer(nil)
	t.Cleanup(cat.Close)
	testutil.SetCatalogCredentials(t, cat)
	cat.FailWith(503)

	_, err := execute(t, "implications", "fetch")
	require.Error(t, err)

	data, err := os.ReadFile(in.Implications)
	require.NoError(t, err)
	assert.Equal(t, "wolf%canine\nwolf%canis\n", string(data))
}

func TestProcessedImportCommand(t *testing.T) {
	in := testutil.WriteInstall(t, "")
	legacy := filepath.Join(in.Dir, "comment_ids.txt")
	require.NoError(t, os.WriteFile(legacy, []byte("abc\ndef\nabc\n"), 0o600))
	t.Setenv("FURBOT_PROCESSED_BACKEND", "sqlite")

	out, err := execute(t, "processed", "import", legacy)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 new ids into the sqlite backend")

	set, err := processed.OpenSQLite(filepath.Join(in.DataDir, processed.DefaultSQLiteName))
	require.NoError(t, err)
	defer set.Close()
	n, err := set.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestConfigShowCommand(t *testing.T) {
	in := testutil.WriteInstall(t, "")

	out, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Data directory:       "+in.DataDir)
	assert.Contains(t, out, "Secrets key:          ****9012")
	assert.Contains(t, out, "Processed backend:    file")
	assert.Contains(t, out, "Metrics address:      (disabled)")
}

func TestDoctorCommand_JSON(t *testing.T) {
	testutil.WriteInstall(t, "")
	for _, env := range []string{
		"FURBOT_REDDIT_CLIENT_ID", "FURBOT_REDDIT_CLIENT_SECRET",
		"FURBOT_REDDIT_USERNAME", "FURBOT_REDDIT_PASSWORD",
		"FURBOT_E621_USERNAME", "FURBOT_E621_API_KEY",
	} {
		t.Setenv(env, "x")
	}

	out, err := execute(t, "doctor", "--json", "--skip-upstream")
	require.NoError(t, err)

	var report struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "pass", report.Status)
}

func TestDoctorCommand_FailsWithoutCredentials(t *testing.T) {
	testutil.WriteInstall(t, "")
	t.Setenv("FURBOT_E621_API_KEY", "")

	out, err := execute(t, "doctor", "--skip-upstream")
	require.Error(t, err)
	assert.Contains(t, out, "✗ credential_e621_api_key")
	assert.Contains(t, out, "fix: Run: furbot secrets set e621_api_key <value>")
}

func TestRunCommand_RepliesUntilCanceled(t *testing.T) {
	in := testutil.WriteInstall(t, "")
	cat := testutil.NewCatalogServer(func([]string) []testutil.CatalogPost {
		return []testutil.CatalogPost{wolfPost()}
	})
	t.Cleanup(cat.Close)
	testutil.SetCatalogCredentials(t, cat)
	plat := testutil.NewPlatformServer()
	t.Cleanup(plat.Close)
	testutil.SetPlatformCredentials(t, plat)

	plat.AddFeed(
		testutil.PlatformComment{ID: "c1", Author: "fox", Body: "furbot search wolf", LinkID: "t3_p", ParentID: "t3_p"},
		testutil.PlatformComment{ID: "c2", Author: "fox", Body: "nice art", LinkID: "t3_p", ParentID: "t3_p"},
	)
	plat.SetUserComments(testutil.PlatformComment{ID: "old", Author: testutil.PlatformUsername, Score: -5})

	resetFlags()
	ctx, cancel := context.WithCancel(context.Background())
	rootCmd.SetOut(new(strings.Builder))
	rootCmd.SetArgs([]string{"run"})
	done := make(chan error, 1)
	go func() { done <- rootCmd.ExecuteContext(ctx) }()

	idsPath := filepath.Join(in.DataDir, processed.DefaultFileName)
	require.Eventually(t, func() bool {
		ids, _ := processed.ReadIDs(idsPath)
		return len(plat.Replies()) == 1 && len(plat.Deleted()) == 1 && len(ids) == 2
	}, 20*time.Second, 20*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	reply := plat.Replies()[0]
	assert.Equal(t, "t1_c1", reply.ParentID)
	assert.Contains(t, reply.Text, "Hello, fox.")
	assert.Contains(t, reply.Text, "/posts/42")
	assert.Equal(t, []string{"t1_old"}, plat.Deleted())
	// Comment loop and sweep each authenticate their own session.
	assert.Equal(t, 2, plat.TokenRequests())

	ids, err := processed.ReadIDs(idsPath)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2"}, ids)
}
