package types

import (
	"strconv"

	"github.com/google/uuid"
)

// ensureID assigns a fresh UUID when the primary key is unset. Done in Go rather than with a
// database default so the same models migrate on Postgres and SQLite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func optionalUUID(id *uuid.UUID) string {
	if id == nil || *id == uuid.Nil {
		return ""
	}
	return id.String()
}

func itoa(n int) string { return strconv.Itoa(n) }
