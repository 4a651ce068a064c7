package photo

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces photo identifiers unique within a session.
// Reset is called when the session starts over.
type IDGenerator interface {
	Next() string
	Reset()
}

// Sequence generates prefix1, prefix2, ... and restarts from 1 on Reset.
type Sequence struct {
	prefix string
	n      atomic.Int64
}

// NewSequence returns a counter-based generator, e.g. NewSequence("photo-").
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

func (s *Sequence) Next() string {
	return s.prefix + strconv.FormatInt(s.n.Add(1), 10)
}

func (s *Sequence) Reset() {
	s.n.Store(0)
}

// RandomIDs generates UUIDv7 identifiers.
type RandomIDs struct{}

func (RandomIDs) Next() string {
	return uuid.Must(uuid.NewV7()).String()
}

func (RandomIDs) Reset() {}
