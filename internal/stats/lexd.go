package stats

import (
	"bufio"
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/apertium/apertium-stats-service/internal/entry"
)

// LexdComputer counts lexicons, patterns, and their entries in lexd files.
type LexdComputer struct{}

// Kinds implements [Computer].
func (*LexdComputer) Kinds() []entry.FileKind {
	return []entry.FileKind{entry.Lexd}
}

// Stats implements [Computer].
func (*LexdComputer) Stats() []entry.StatKind {
	return []entry.StatKind{
		entry.StatLexicons,
		entry.StatLexiconEntries,
		entry.StatPatterns,
		entry.StatPatternEntries,
	}
}

// lexd block states.
const (
	lexdOutside = iota
	lexdInPattern
	lexdInLexicon
)

// Compute scans block headers (PATTERNS, PATTERN <name>, LEXICON <name>) and
// counts the non-empty lines inside each block. The anonymous PATTERNS block
// counts as one pattern, matching the grammar where its start token carries
// no identifier.
func (*LexdComputer) Compute(ctx context.Context, _ string, body []byte) (Values, error) {
	lexicons := map[string]struct{}{}
	patterns := map[string]struct{}{}

	var lexEntries, patEntries int

	state := lexdOutside

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineLen)

	for scanner.Scan() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		line := strings.TrimSpace(lexcCommentRE.ReplaceAllString(scanner.Text(), ""))
		if line == "" {
			continue
		}

		fields := strings.Fields(line)

		switch {
		case fields[0] == "PATTERNS":
			patterns[""] = struct{}{}
			state = lexdInPattern
		case fields[0] == "PATTERN" && len(fields) > 1:
			patterns[fields[1]] = struct{}{}
			state = lexdInPattern
		case fields[0] == "LEXICON" && len(fields) > 1:
			lexicons[fields[1]] = struct{}{}
			state = lexdInLexicon
		case fields[0] == "ALIAS":
			state = lexdOutside
		case state == lexdInPattern:
			patEntries++
		case state == lexdInLexicon:
			lexEntries++
		}
	}

	return Values{
		entry.StatLexicons:       strconv.Itoa(len(lexicons)),
		entry.StatLexiconEntries: strconv.Itoa(lexEntries),
		entry.StatPatterns:       strconv.Itoa(len(patterns)),
		entry.StatPatternEntries: strconv.Itoa(patEntries),
	}, nil
}
