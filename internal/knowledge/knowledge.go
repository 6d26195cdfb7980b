// Package knowledge loads the optional reference-notes file that is
// injected into every prompt to bias answers toward curated facts.
package knowledge

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// NotesLabel prefixes the knowledge notes when they are sent to the
// backend as a system message.
const NotesLabel = "Reference notes (public, simplified):\n"

// Base is an immutable snapshot of the knowledge notes, loaded once at
// startup and read for the process lifetime.
type Base struct {
	notes string
}

// Load reads the knowledge file at path. A missing file is not an
// error; it yields an empty base. An empty path skips loading entirely.
func Load(path string) (Base, error) {
	if path == "" {
		return Base{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debug().Str("path", path).Msg("no knowledge file, continuing without reference notes")
			return Base{}, nil
		}
		return Base{}, fmt.Errorf("read knowledge file: %w", err)
	}

	notes := strings.TrimSpace(string(data))
	log.Info().Str("path", path).Int("bytes", len(notes)).Msg("knowledge base loaded")
	return Base{notes: notes}, nil
}

// Empty reports whether the base carries no notes.
func (b Base) Empty() bool {
	return b.notes == ""
}

// Notes returns the raw note text.
func (b Base) Notes() string {
	return b.notes
}

// SystemMessage returns the notes wrapped under the fixed label, ready
// to be sent as a system message. Empty string when the base is empty.
func (b Base) SystemMessage() string {
	if b.notes == "" {
		return ""
	}
	return NotesLabel + b.notes
}
