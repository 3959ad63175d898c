package entry

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// FileKind classifies an apertium data file by its role in the package.
type FileKind string

// File kinds, named after the apertium artifact conventions.
const (
	Monodix     FileKind = "monodix"
	Bidix       FileKind = "bidix"
	MetaMonodix FileKind = "metamonodix"
	MetaBidix   FileKind = "metabidix"
	Postdix     FileKind = "postdix"
	Rlx         FileKind = "rlx"
	Transfer    FileKind = "transfer"
	Lexc        FileKind = "lexc"
	Twol        FileKind = "twol"
	Lexd        FileKind = "lexd"
)

// StatKind names a metric computed over a file.
type StatKind string

// Stat kinds.
const (
	StatEntries        StatKind = "entries"
	StatParadigms      StatKind = "paradigms"
	StatRules          StatKind = "rules"
	StatMacros         StatKind = "macros"
	StatLexicons       StatKind = "lexicons"
	StatLexiconEntries StatKind = "lexicon_entries"
	StatPatterns       StatKind = "patterns"
	StatPatternEntries StatKind = "pattern_entries"
)

// ErrUnknownFileKind is returned when a file kind string is not recognized.
var ErrUnknownFileKind = errors.New("unknown file kind")

// ErrUnknownStatKind is returned when a stat kind string is not recognized.
var ErrUnknownStatKind = errors.New("unknown stat kind")

var fileKinds = map[string]FileKind{
	string(Monodix):     Monodix,
	string(Bidix):       Bidix,
	string(MetaMonodix): MetaMonodix,
	string(MetaBidix):   MetaBidix,
	string(Postdix):     Postdix,
	string(Rlx):         Rlx,
	string(Transfer):    Transfer,
	string(Lexc):        Lexc,
	string(Twol):        Twol,
	string(Lexd):        Lexd,
}

var statKinds = map[string]StatKind{
	string(StatEntries):        StatEntries,
	string(StatParadigms):      StatParadigms,
	string(StatRules):          StatRules,
	string(StatMacros):         StatMacros,
	string(StatLexicons):       StatLexicons,
	string(StatLexiconEntries): StatLexiconEntries,
	string(StatPatterns):       StatPatterns,
	string(StatPatternEntries): StatPatternEntries,
}

// ParseFileKind converts a request parameter into a FileKind.
func ParseFileKind(raw string) (FileKind, error) {
	kind, ok := fileKinds[strings.ToLower(raw)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFileKind, raw)
	}

	return kind, nil
}

// ParseStatKind converts a request parameter into a StatKind.
func ParseStatKind(raw string) (StatKind, error) {
	kind, ok := statKinds[strings.ToLower(raw)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatKind, raw)
	}

	return kind, nil
}

// langCodeRE matches an ISO-style language code as used in apertium package
// and file names.
const langCodeRE = `\w{2,3}(?:_\w+)?`

// fileKindPatterns maps filename shapes to kinds. Order matters: the last
// matching pattern wins, mirroring the upstream filename conventions where
// the bilingual shapes are more specific than the monolingual ones.
var fileKindPatterns = []struct {
	re   *regexp.Regexp
	kind FileKind
}{
	{regexp.MustCompile(fmt.Sprintf(`apertium-%s\.%s\.dix$`, langCodeRE, langCodeRE)), Monodix},
	{regexp.MustCompile(fmt.Sprintf(`apertium-%s-%s\.%s-%s\.dix$`, langCodeRE, langCodeRE, langCodeRE, langCodeRE)), Bidix},
	{regexp.MustCompile(fmt.Sprintf(`apertium-%s\.%s\.metadix$`, langCodeRE, langCodeRE)), MetaMonodix},
	{regexp.MustCompile(fmt.Sprintf(`apertium-%s-%s\.%s\.metadix$`, langCodeRE, langCodeRE, langCodeRE)), MetaMonodix},
	{regexp.MustCompile(fmt.Sprintf(`apertium-%s-%s\.%s-%s\.metadix$`, langCodeRE, langCodeRE, langCodeRE, langCodeRE)), MetaBidix},
	{regexp.MustCompile(fmt.Sprintf(`apertium-%s-%s\.post-%s\.dix$`, langCodeRE, langCodeRE, langCodeRE)), Postdix},
	{regexp.MustCompile(fmt.Sprintf(`apertium-%s\.post-%s\.dix$`, langCodeRE, langCodeRE)), Postdix},
	{regexp.MustCompile(fmt.Sprintf(`apertium-%s-%s\.%s-%s\.rlx$`, langCodeRE, langCodeRE, langCodeRE, langCodeRE)), Rlx},
	{regexp.MustCompile(fmt.Sprintf(`apertium-%s\.%s\.rlx$`, langCodeRE, langCodeRE)), Rlx},
	{regexp.MustCompile(fmt.Sprintf(`apertium-%s-%s\.%s-%s\.t\dx$`, langCodeRE, langCodeRE, langCodeRE, langCodeRE)), Transfer},
	{regexp.MustCompile(fmt.Sprintf(`apertium-%s\.%s\.lexc$`, langCodeRE, langCodeRE)), Lexc},
	{regexp.MustCompile(fmt.Sprintf(`apertium-%s-%s\.%s\.twol$`, langCodeRE, langCodeRE, langCodeRE)), Twol},
	{regexp.MustCompile(fmt.Sprintf(`apertium-%s\.%s\.twol$`, langCodeRE, langCodeRE)), Twol},
	{regexp.MustCompile(fmt.Sprintf(`apertium-%s\.%s\.lexd$`, langCodeRE, langCodeRE)), Lexd},
}

// DetectFileKind classifies a file path within a package by its name.
// A trailing ".xml" suffix is ignored, as some packages ship their dix
// files with it. Returns false when the file carries no known statistics.
func DetectFileKind(path string) (FileKind, bool) {
	name := strings.TrimSuffix(path, ".xml")

	kind := FileKind("")
	found := false

	for _, p := range fileKindPatterns {
		if p.re.MatchString(name) {
			kind = p.kind
			found = true
		}
	}

	return kind, found
}
