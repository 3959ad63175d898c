package entry

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidName is returned when a package name does not follow the
// apertium-<code>(-<code>) convention.
var ErrInvalidName = errors.New("invalid package name")

var nameRE = regexp.MustCompile(fmt.Sprintf(`^apertium-%s(?:-%s)?$`, langCodeRE, langCodeRE))

// NormalizeName prefixes a bare language-pair name with "apertium-" and
// validates the result. The returned name is the canonical form stored in
// the entry table.
func NormalizeName(name string) (string, error) {
	normalized := name
	if !strings.HasPrefix(normalized, "apertium-") {
		normalized = "apertium-" + normalized
	}

	if !nameRE.MatchString(normalized) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return normalized, nil
}
