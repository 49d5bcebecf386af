package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "onboard/pkg/domain-errors"
)

// SessionID identifies one wizard session hosted by this service.
type SessionID uuid.UUID

// NewSessionID returns a random session id.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

// ParseSessionID parses a non-nil UUID.
func ParseSessionID(s string) (SessionID, error) {
	if s == "" {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "session id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid session id")
	}
	if u == uuid.Nil {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "session id cannot be nil")
	}
	return SessionID(u), nil
}

func (id SessionID) String() string {
	return uuid.UUID(id).String()
}

func (id SessionID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id SessionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *SessionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSessionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// BusinessID is the identifier the onboarding backend assigns on the first
// successful draft save. The backend emits it as a number or a string; both are
// accepted and kept in their decimal/string form. The zero value means "not yet
// assigned".
type BusinessID string

const maxBusinessIDLength = 64

// ParseBusinessID trims and validates a backend business identifier.
func ParseBusinessID(s string) (BusinessID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "business id is required")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "business id must be valid UTF-8")
	}
	if len(s) > maxBusinessIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "business id is too long")
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return "", dErrors.New(dErrors.CodeInvalidInput, "business id contains control characters")
		}
	}
	return BusinessID(s), nil
}

// BusinessIDFromAny converts a decoded JSON value (string or number) into an id.
// ok is false when v carries no usable identifier.
func BusinessIDFromAny(v any) (BusinessID, bool) {
	var raw string
	switch t := v.(type) {
	case string:
		raw = t
	case json.Number:
		raw = t.String()
	case float64:
		raw = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		raw = strconv.Itoa(t)
	case int64:
		raw = strconv.FormatInt(t, 10)
	default:
		return "", false
	}
	id, err := ParseBusinessID(raw)
	if err != nil {
		return "", false
	}
	return id, true
}

func (id BusinessID) String() string {
	return string(id)
}

func (id BusinessID) IsZero() bool {
	return id == ""
}

// MarshalJSON renders an unassigned id as null.
func (id BusinessID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts null, strings and numbers.
func (id *BusinessID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	parsed, ok := BusinessIDFromAny(v)
	if !ok {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid business id")
	}
	*id = parsed
	return nil
}
