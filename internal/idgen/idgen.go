package idgen

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

const (
	timestampBits int64 = 42
	workerBits    int64 = 10
	sequenceBits  int64 = 64 - timestampBits - workerBits

	timestampShift = workerBits + sequenceBits
	workerShift    = sequenceBits

	maxWorkerID = (1 << workerBits) - 1
	maxSequence = (1 << sequenceBits) - 1
)

var (
	ErrWorkerIDRange    = errors.New("worker ID exceeds maximum value")
	ErrClockWentBack    = errors.New("system clock moved backwards")
	ErrSequenceOverflow = errors.New("sequence overflow within a single millisecond")
)

// Generator produces unique snowflake IDs for a single worker.
// IDs are time-ordered across the process and unique across workers
// as long as each process is configured with a distinct worker ID.
type Generator struct {
	mu           sync.Mutex
	workerID     int64
	lastMillis   int64
	lastSequence int64
	now          func() time.Time
}

// NewGenerator creates a generator bound to the given worker ID.
func NewGenerator(workerID int64) (*Generator, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrWorkerIDRange, workerID, maxWorkerID)
	}

	return &Generator{
		workerID: workerID,
		now:      time.Now,
	}, nil
}

// Next returns the next unique ID. Safe for concurrent use.
func (g *Generator) Next() (snowflake.ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	millis := g.now().UnixMilli()
	if millis < g.lastMillis {
		return 0, fmt.Errorf("%w: last=%d now=%d", ErrClockWentBack, g.lastMillis, millis)
	}

	if millis == g.lastMillis {
		g.lastSequence++
		if g.lastSequence > maxSequence {
			return 0, ErrSequenceOverflow
		}
	} else {
		g.lastMillis = millis
		g.lastSequence = 0
	}

	raw := millis<<timestampShift | g.workerID<<workerShift | g.lastSequence

	return snowflake.ID(raw), nil
}

// Timestamp extracts the millisecond timestamp encoded in an ID.
func Timestamp(id snowflake.ID) time.Time {
	return time.UnixMilli(int64(id) >> timestampShift)
}

// WorkerID extracts the worker ID encoded in an ID.
func WorkerID(id snowflake.ID) int64 {
	return (int64(id) >> workerShift) & maxWorkerID
}
