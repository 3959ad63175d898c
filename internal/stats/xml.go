package stats

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/apertium/apertium-stats-service/internal/entry"
)

// MonodixComputer counts entries and paradigms in monolingual dictionaries,
// including their metadix variants.
type MonodixComputer struct{}

// Kinds implements [Computer].
func (*MonodixComputer) Kinds() []entry.FileKind {
	return []entry.FileKind{entry.Monodix, entry.MetaMonodix}
}

// Stats implements [Computer].
func (*MonodixComputer) Stats() []entry.StatKind {
	return []entry.StatKind{entry.StatEntries, entry.StatParadigms}
}

// Compute counts <e> elements inside <section> and <pardef> elements inside
// <pardefs>.
func (*MonodixComputer) Compute(ctx context.Context, path string, body []byte) (Values, error) {
	var entries, pardefs int

	inSection := false
	inPardefs := false

	err := scanXML(ctx, path, body, func(name string, start bool) {
		switch {
		case name == "section":
			inSection = start
		case name == "pardefs":
			inPardefs = start
		case start && inSection && name == "e":
			entries++
		case start && inPardefs && name == "pardef":
			pardefs++
		}
	})
	if err != nil {
		return nil, err
	}

	return Values{
		entry.StatEntries:   strconv.Itoa(entries),
		entry.StatParadigms: strconv.Itoa(pardefs),
	}, nil
}

// BidixComputer counts entries in bilingual and postgeneration dictionaries.
type BidixComputer struct{}

// Kinds implements [Computer].
func (*BidixComputer) Kinds() []entry.FileKind {
	return []entry.FileKind{entry.Bidix, entry.MetaBidix, entry.Postdix}
}

// Stats implements [Computer].
func (*BidixComputer) Stats() []entry.StatKind {
	return []entry.StatKind{entry.StatEntries}
}

// Compute counts <e> elements inside <section>.
func (*BidixComputer) Compute(ctx context.Context, path string, body []byte) (Values, error) {
	var entries int

	inSection := false

	err := scanXML(ctx, path, body, func(name string, start bool) {
		switch {
		case name == "section":
			inSection = start
		case start && inSection && name == "e":
			entries++
		}
	})
	if err != nil {
		return nil, err
	}

	return Values{entry.StatEntries: strconv.Itoa(entries)}, nil
}

// TransferComputer counts rules and macros in transfer files (t1x/t2x/t3x).
type TransferComputer struct{}

// Kinds implements [Computer].
func (*TransferComputer) Kinds() []entry.FileKind {
	return []entry.FileKind{entry.Transfer}
}

// Stats implements [Computer].
func (*TransferComputer) Stats() []entry.StatKind {
	return []entry.StatKind{entry.StatRules, entry.StatMacros}
}

// Compute counts <rule> and <def-macro> elements anywhere in the document.
func (*TransferComputer) Compute(ctx context.Context, path string, body []byte) (Values, error) {
	var rules, macros int

	err := scanXML(ctx, path, body, func(name string, start bool) {
		if !start {
			return
		}

		switch name {
		case "rule":
			rules++
		case "def-macro", "macro":
			macros++
		}
	})
	if err != nil {
		return nil, err
	}

	return Values{
		entry.StatRules:  strconv.Itoa(rules),
		entry.StatMacros: strconv.Itoa(macros),
	}, nil
}

// scanXML streams start/end element events to visit, checking ctx between
// tokens so oversized or pathological documents respect the worker timeout.
func scanXML(ctx context.Context, path string, body []byte, visit func(name string, start bool)) error {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	// Dictionaries routinely use latin-1 and friends; counting elements does
	// not require transcoding the character data.
	decoder.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %s: %w", ErrComputationFailed, path, ctxErr)
		}

		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("%w: %s at offset %d: %w", ErrComputationFailed, path, decoder.InputOffset(), err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			visit(t.Name.Local, true)
		case xml.EndElement:
			visit(t.Name.Local, false)
		}
	}
}
