package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType PatternType
		wantTerm string
	}{
		{"wildcard alone", "*", PatternWildcard, "*"},
		{"extension", "*.tsx", PatternExtension, "tsx"},
		{"extension go", "*.go", PatternExtension, "go"},
		{"type filter", "t:Component", PatternEntityType, "Component"},
		{"exact quoted", `"Exact Name"`, PatternExact, "Exact Name"},
		{"fuzzy", "~fuzzy", PatternFuzzy, "fuzzy"},
		{"prefix", "Comp*", PatternPrefix, "Comp"},
		{"suffix", "*Handler", PatternSuffix, "Handler"},
		{"contains", "*auth*", PatternContains, "auth"},
		{"free text", "dashboard", PatternFreeText, "dashboard"},
		{"free text multiple words kept raw", "user", PatternFreeText, "user"},
		{"regex", "/foo/", PatternRegex, "foo"},
		{"regex with flag", "/^Use[rR]$/i", PatternRegex, "^Use[rR]$"},
		{"path exact", "src/components/Header.tsx", PatternPath, "src/components/Header.tsx"},
		{"absolute path stays path", "/src/components", PatternPath, "/src/components"},
		{"path prefix glob", "src/components/*", PatternPath, "src/components/"},
		{"path suffix glob", "*/components/Header.tsx", PatternPath, "/components/Header.tsx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, parsed.Type)
			assert.Equal(t, tt.wantTerm, parsed.Term)
		})
	}
}

func TestParseEmptyQuery(t *testing.T) {
	for _, input := range []string{"", "   ", "\t"} {
		_, err := Parse(input)
		assert.ErrorIs(t, err, ErrEmptyQuery, "input %q", input)
	}
}

func TestParseRegexDetails(t *testing.T) {
	t.Run("flags after last slash", func(t *testing.T) {
		parsed, err := Parse("/a/b/i")
		require.NoError(t, err)
		// Contains a slash and valid trailing flags, so classified as regex
		assert.Equal(t, PatternRegex, parsed.Type)
		assert.Equal(t, "a/b", parsed.Term)
		assert.Equal(t, "i", parsed.Flags)
	})

	t.Run("invalid pattern degrades to free text", func(t *testing.T) {
		parsed, err := Parse("/[unclosed/")
		require.NoError(t, err)
		assert.Equal(t, PatternFreeText, parsed.Type)
	})

	t.Run("no closing slash is not regex", func(t *testing.T) {
		parsed, err := Parse("/foo")
		require.NoError(t, err)
		assert.Equal(t, PatternPath, parsed.Type)
	})
}

func TestParsePathModes(t *testing.T) {
	tests := []struct {
		input    string
		wantMode PathMode
		wantTerm string
	}{
		{"src/utils/auth.ts", PathExact, "src/utils/auth.ts"},
		{"src/*", PathPrefix, "src/"},
		{"*/auth.ts", PathSuffix, "/auth.ts"},
		{"*components/*", PathContains, "components/"},
	}
	for _, tt := range tests {
		parsed, err := Parse(tt.input)
		require.NoError(t, err)
		require.Equal(t, PatternPath, parsed.Type, "input %q", tt.input)
		assert.Equal(t, tt.wantMode, parsed.PathMode, "input %q", tt.input)
		assert.Equal(t, tt.wantTerm, parsed.Term, "input %q", tt.input)
	}
}

func TestParseInteriorStarFallsBackToWildcard(t *testing.T) {
	parsed, err := Parse("a*b")
	require.NoError(t, err)
	assert.Equal(t, PatternWildcard, parsed.Type)
	assert.Equal(t, "a*b", parsed.Term)
}

func TestParseComposite(t *testing.T) {
	t.Run("single token degrades to plain parse", func(t *testing.T) {
		parsed, err := ParseComposite("Comp*")
		require.NoError(t, err)
		assert.Equal(t, PatternPrefix, parsed.Type)
	})

	t.Run("multiple tokens intersect", func(t *testing.T) {
		parsed, err := ParseComposite("t:Component *.tsx")
		require.NoError(t, err)
		require.Equal(t, PatternComposite, parsed.Type)
		require.Len(t, parsed.Filters, 2)
		assert.Equal(t, PatternEntityType, parsed.Filters[0].Type)
		assert.Equal(t, "Component", parsed.Filters[0].Term)
		assert.Equal(t, PatternExtension, parsed.Filters[1].Type)
		assert.Equal(t, "tsx", parsed.Filters[1].Term)
	})

	t.Run("quoted token keeps its spaces", func(t *testing.T) {
		parsed, err := ParseComposite(`t:Component "User Profile"`)
		require.NoError(t, err)
		require.Equal(t, PatternComposite, parsed.Type)
		require.Len(t, parsed.Filters, 2)
		assert.Equal(t, PatternExact, parsed.Filters[1].Type)
		assert.Equal(t, "User Profile", parsed.Filters[1].Term)
	})

	t.Run("escaped space stays in token", func(t *testing.T) {
		parsed, err := ParseComposite(`User\ Profile`)
		require.NoError(t, err)
		assert.Equal(t, PatternFreeText, parsed.Type)
		assert.Equal(t, "User Profile", parsed.Term)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := ParseComposite("   ")
		assert.ErrorIs(t, err, ErrEmptyQuery)
	})
}

func TestPatternInfo(t *testing.T) {
	tiers := map[PatternType]string{
		PatternWildcard:   "fast",
		PatternExtension:  "fast",
		PatternEntityType: "fast",
		PatternExact:      "fast",
		PatternPrefix:     "fast",
		PatternPath:       "medium",
		PatternContains:   "medium",
		PatternSuffix:     "medium",
		PatternFreeText:   "medium",
		PatternComposite:  "medium",
		PatternFuzzy:      "slow",
		PatternRegex:      "slow",
	}
	for pt, tier := range tiers {
		info := PatternInfo(ParsedQuery{Type: pt})
		assert.Equal(t, tier, info.Tier, "pattern %s", pt)
		assert.NotEmpty(t, info.Description)
	}
}
