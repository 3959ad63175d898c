package stats

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/apertium/apertium-stats-service/internal/entry"
)

// lexcEscapeRE unescapes %-prefixed characters before comment stripping, so
// an escaped %! does not terminate the line.
var lexcEscapeRE = regexp.MustCompile(`%(.)`)

// lexcCommentRE strips ! comments.
var lexcCommentRE = regexp.MustCompile(`!.*$`)

// LexcComputer counts lexicons and their entries in lexc files.
type LexcComputer struct{}

// Kinds implements [Computer].
func (*LexcComputer) Kinds() []entry.FileKind {
	return []entry.FileKind{entry.Lexc}
}

// Stats implements [Computer].
func (*LexcComputer) Stats() []entry.StatKind {
	return []entry.StatKind{entry.StatLexicons, entry.StatLexiconEntries}
}

// Compute scans the file line by line: LEXICON headers open a lexicon, and
// every non-empty line inside one is an entry (continuation-only pointers
// included). The Multichar_Symbols preamble is outside any lexicon and is
// not counted.
func (*LexcComputer) Compute(ctx context.Context, path string, body []byte) (Values, error) {
	lexicons := map[string]struct{}{}

	var entries int

	inLexicon := false

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineLen)

	lineNo := 0
	for scanner.Scan() {
		lineNo++

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		line := lexcEscapeRE.ReplaceAllString(scanner.Text(), "$1")
		line = strings.TrimSpace(lexcCommentRE.ReplaceAllString(line, ""))

		switch {
		case strings.HasPrefix(line, "LEXICON"):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return nil, fmt.Errorf("%w: %s: LEXICON header without a name (line %d)", ErrComputationFailed, path, lineNo)
			}

			lexicons[fields[1]] = struct{}{}
			inLexicon = true
		case line != "" && inLexicon:
			entries++
		}
	}

	return Values{
		entry.StatLexicons:       strconv.Itoa(len(lexicons)),
		entry.StatLexiconEntries: strconv.Itoa(entries),
	}, nil
}
