package stats

import (
	"bufio"
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/apertium/apertium-stats-service/internal/entry"
)

// TwolComputer counts rules in two-level morphology files.
type TwolComputer struct{}

// Kinds implements [Computer].
func (*TwolComputer) Kinds() []entry.FileKind {
	return []entry.FileKind{entry.Twol}
}

// Stats implements [Computer].
func (*TwolComputer) Stats() []entry.StatKind {
	return []entry.StatKind{entry.StatRules}
}

// Compute counts rule-name lines, which in twol start with a double quote.
func (*TwolComputer) Compute(ctx context.Context, _ string, body []byte) (Values, error) {
	var rules int

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineLen)

	for scanner.Scan() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if strings.HasPrefix(scanner.Text(), `"`) {
			rules++
		}
	}

	return Values{entry.StatRules: strconv.Itoa(rules)}, nil
}
