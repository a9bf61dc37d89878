package protocol

import (
	"strconv"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/postbridge-go/internal/config"
)

// IDGenerator produces call identifiers. Next must never return the same
// value twice for the lifetime of the generator and must be safe for
// concurrent use.
type IDGenerator interface {
	Next() string
}

// NewCounterIDs returns a generator yielding "<namespace>:1", "<namespace>:2", ...
func NewCounterIDs(namespace string) IDGenerator {
	return &counterIDs{namespace: namespace}
}

type counterIDs struct {
	namespace string
	n         atomic.Uint64
}

func (c *counterIDs) Next() string {
	return c.namespace + ":" + strconv.FormatUint(c.n.Add(1), 10)
}

// NewULIDIDs returns a generator yielding "<namespace>:<ULID>". ULIDs from
// ulid.Make are monotonic within the process and random across processes, so
// several engines sharing one channel do not collide.
func NewULIDIDs(namespace string) IDGenerator {
	return ulidIDs{namespace: namespace}
}

type ulidIDs struct {
	namespace string
}

func (u ulidIDs) Next() string {
	return u.namespace + ":" + ulid.Make().String()
}

func newIDGenerator(opts *config.Options) IDGenerator {
	if opts.CallbackIDs == config.CallbackIDULID {
		return NewULIDIDs(opts.CallbackNamespace)
	}

	return NewCounterIDs(opts.CallbackNamespace)
}
