package tags

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSet_NormalizesAndDeduplicates(t *testing.T) {
	s := NewSet("Gore", " scat ", "", "gore", "Young")

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"gore", "scat", "young"}, s.Tags())
	assert.True(t, s.Contains("GORE"))
	assert.True(t, s.Contains("scat"))
	assert.False(t, s.Contains("cat"))
}

func TestSet_TagsReturnsCopy(t *testing.T) {
	s := NewSet("a", "b")
	got := s.Tags()
	got[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, s.Tags())
}

func TestSet_IntersectKeepsCandidateOrder(t *testing.T) {
	s := NewSet("gore", "scat", "young")

	got := s.Intersect([]string{"cat", "young", "Gore", "young", "dog"})
	assert.Equal(t, []string{"young", "gore"}, got)
	assert.Empty(t, s.Intersect([]string{"cat", "dog"}))
}

func TestParseSet_SkipsBlankLines(t *testing.T) {
	s, err := ParseSet(strings.NewReader("gore\n\nscat\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"gore", "scat"}, s.Tags())
}

func TestParseImplications_MergesDuplicateKeys(t *testing.T) {
	input := "cat%feline\ncat%mammal\n\nfeline%mammal\n"
	m, err := ParseImplications(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"feline", "mammal"}, m.Implied("cat"))
	assert.Equal(t, []string{"mammal"}, m.Implied("FELINE"))
	assert.Nil(t, m.Implied("dog"))
}

func TestParseImplications_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no separator", "cat feline\n"},
		{"empty antecedent", "%feline\n"},
		{"empty consequent", "cat%\n"},
		{"two separators", "cat%feline%mammal\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseImplications(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedImplication)
		})
	}
}

func TestWriteImplications_RoundTripsThroughParser(t *testing.T) {
	var buf bytes.Buffer
	pairs := []Pair{{"cat", "feline"}, {"cat", "mammal"}, {"wolf", "canine"}}
	require.NoError(t, WriteImplications(&buf, pairs))

	assert.Equal(t, "cat%feline\ncat%mammal\nwolf%canine\n", buf.String())

	m, err := ParseImplications(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"feline", "mammal"}, m["cat"])
}

func TestLoad_ReadsAllFiles(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		Blacklist:      filepath.Join(dir, "blacklist.txt"),
		AliasBlacklist: filepath.Join(dir, "generated_blacklist.txt"),
		Implications:   filepath.Join(dir, "implicated_tags.txt"),
	}
	require.NoError(t, os.WriteFile(paths.Blacklist, []byte("gore\nscat\n"), 0o600))
	require.NoError(t, os.WriteFile(paths.AliasBlacklist, []byte("gore\nguro\nscat\n"), 0o600))
	require.NoError(t, os.WriteFile(paths.Implications, []byte("cat%feline\n"), 0o600))

	c, err := Load(paths)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Base.Len())
	assert.Equal(t, 3, c.Aliased.Len())
	assert.True(t, c.Aliased.Contains("guro"))
	assert.Equal(t, []string{"feline"}, c.Implications.Implied("cat"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(Paths{Blacklist: filepath.Join(t.TempDir(), "missing.txt")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading blacklist")
}

func TestNewCatalog_NilImplications(t *testing.T) {
	c := NewCatalog(NewSet(), NewSet(), nil)
	require.NotNil(t, c.Implications)
	assert.Nil(t, c.Implications.Implied("cat"))
}
