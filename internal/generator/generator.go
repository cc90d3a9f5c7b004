// Package generator produces unique identifiers: UUIDs for playback jobs and
// snowflake nonces for outgoing messages.
package generator

import (
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
)

// Generator is an interface that defines a method to generate a new value of type T.
type Generator[T any] interface {
	Next() (T, error)
}

// UUIDV4Generator produces UUIDv4 strings.
type UUIDV4Generator struct{}

func (g *UUIDV4Generator) Next() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var _ Generator[string] = &UUIDV4Generator{}

// NonceGenerator produces strictly increasing snowflakes stamped with the
// current time, rendered as decimal strings.
type NonceGenerator struct {
	now func() time.Time

	mu   sync.Mutex
	last snowflake.ID
}

func NewNonceGenerator() *NonceGenerator {
	return &NonceGenerator{now: time.Now}
}

// NewNonceGeneratorAt uses now as the clock.
func NewNonceGeneratorAt(now func() time.Time) *NonceGenerator {
	return &NonceGenerator{now: now}
}

func (g *NonceGenerator) Next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := snowflake.New(g.now())
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id.String(), nil
}

var _ Generator[string] = (*NonceGenerator)(nil)
