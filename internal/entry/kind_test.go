package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFileKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path  string
		kind  FileKind
		found bool
	}{
		{"apertium-eng.eng.dix", Monodix, true},
		{"apertium-eng-spa.eng-spa.dix", Bidix, true},
		{"apertium-eng-spa.eng-spa.dix.xml", Bidix, true},
		{"apertium-eng.eng.metadix", MetaMonodix, true},
		{"apertium-eng-spa.eng.metadix", MetaMonodix, true},
		{"apertium-eng-spa.eng-spa.metadix", MetaBidix, true},
		{"apertium-eng-spa.post-spa.dix", Postdix, true},
		{"apertium-spa.post-spa.dix", Postdix, true},
		{"apertium-eng-spa.eng-spa.rlx", Rlx, true},
		{"apertium-eng.eng.rlx", Rlx, true},
		{"apertium-eng-spa.eng-spa.t1x", Transfer, true},
		{"apertium-eng-spa.eng-spa.t2x", Transfer, true},
		{"apertium-eng.eng.lexc", Lexc, true},
		{"apertium-eng-spa.eng.twol", Twol, true},
		{"apertium-eng.eng.twol", Twol, true},
		{"apertium-eng.eng.lexd", Lexd, true},
		{"subdir/apertium-eng.eng.dix", Monodix, true},
		{"README.md", "", false},
		{"apertium-eng.eng.mode", "", false},
	}

	for _, tc := range cases {
		kind, found := DetectFileKind(tc.path)

		assert.Equal(t, tc.found, found, tc.path)
		assert.Equal(t, tc.kind, kind, tc.path)
	}
}

func TestParseFileKind(t *testing.T) {
	t.Parallel()

	kind, err := ParseFileKind("Bidix")
	require.NoError(t, err)
	assert.Equal(t, Bidix, kind)

	_, err = ParseFileKind("nope")
	require.ErrorIs(t, err, ErrUnknownFileKind)
}

func TestParseStatKind(t *testing.T) {
	t.Parallel()

	kind, err := ParseStatKind("entries")
	require.NoError(t, err)
	assert.Equal(t, StatEntries, kind)

	_, err = ParseStatKind("bogus")
	require.ErrorIs(t, err, ErrUnknownStatKind)
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	name, err := NormalizeName("eng-spa")
	require.NoError(t, err)
	assert.Equal(t, "apertium-eng-spa", name)

	name, err = NormalizeName("apertium-eng")
	require.NoError(t, err)
	assert.Equal(t, "apertium-eng", name)

	name, err = NormalizeName("srd_ITA")
	require.NoError(t, err)
	assert.Equal(t, "apertium-srd_ITA", name)

	_, err = NormalizeName("not a package")
	require.ErrorIs(t, err, ErrInvalidName)

	_, err = NormalizeName("apertium-eng-spa-fra")
	require.ErrorIs(t, err, ErrInvalidName)
}
