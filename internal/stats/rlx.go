package stats

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"strconv"

	"github.com/apertium/apertium-stats-service/internal/entry"
)

// rlxRuleRE matches a constraint-grammar rule operator at the start of a
// line, optionally prefixed by a tag target. Covers the vislcg3 rule set
// used in apertium disambiguation files.
var rlxRuleRE = regexp.MustCompile(`(?i)^\s*(?:"[^"]*"\s+)?` +
	`(SELECT|REMOVE|IFF|MAP|ADD|APPEND|SUBSTITUTE|REPLACE|RELABEL|` +
	`SETPARENT|SETCHILD|ADDRELATION|SETRELATION|REMRELATION|` +
	`ADDRELATIONS|SETRELATIONS|REMRELATIONS|MOVE|SWITCH|` +
	`EXTERNAL|REMCOHORT|UNMAP)\b`)

// rlxCommentRE strips # comments outside of quoted tags.
var rlxCommentRE = regexp.MustCompile(`#.*$`)

// RlxComputer counts rules in constraint-grammar files.
type RlxComputer struct{}

// Kinds implements [Computer].
func (*RlxComputer) Kinds() []entry.FileKind {
	return []entry.FileKind{entry.Rlx}
}

// Stats implements [Computer].
func (*RlxComputer) Stats() []entry.StatKind {
	return []entry.StatKind{entry.StatRules}
}

// Compute counts lines opening a rule. Section headers (BEFORE-SECTIONS,
// SECTION, ...) and list/set definitions are not rules.
func (*RlxComputer) Compute(ctx context.Context, _ string, body []byte) (Values, error) {
	var rules int

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineLen)

	for scanner.Scan() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		line := rlxCommentRE.ReplaceAllString(scanner.Text(), "")
		if rlxRuleRE.MatchString(line) {
			rules++
		}
	}

	return Values{entry.StatRules: strconv.Itoa(rules)}, nil
}

// maxLineLen bounds scanner lines; dictionary data occasionally packs very
// long lines.
const maxLineLen = 1 << 20
