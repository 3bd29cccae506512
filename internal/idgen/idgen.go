// Package idgen produces the prefixed identifiers used for loans and payments.
package idgen

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Generator builds identifiers of the form PREFIX_<32 hex digits>. The hex part
// is a UUIDv7: a millisecond timestamp with a sub-millisecond sequence followed
// by random bits, so ids sort by creation time and never repeat within a process.
//
// Create one Generator at startup and share it; it is safe for concurrent use.
type Generator struct {
	mu   sync.Mutex
	rand io.Reader
}

// New returns a Generator drawing entropy from crypto/rand through a buffer.
func New() *Generator {
	return NewFromReader(bufio.NewReaderSize(rand.Reader, 16*64))
}

// NewFromReader returns a Generator drawing entropy from r. r need not be
// safe for concurrent use.
func NewFromReader(r io.Reader) *Generator {
	return &Generator{rand: r}
}

// Next returns a new identifier with the given prefix. It panics if the
// entropy source fails, since continuing would risk duplicate primary keys.
func (g *Generator) Next(prefix string) string {
	g.mu.Lock()
	id, err := uuid.NewV7FromReader(g.rand)
	g.mu.Unlock()
	if err != nil {
		panic(fmt.Sprintf("idgen: read entropy: %v", err))
	}
	return prefix + "_" + strings.ToUpper(hex.EncodeToString(id[:]))
}
