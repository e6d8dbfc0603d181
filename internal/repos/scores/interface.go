package scores

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrDuplicateScore = errors.New("score already recorded for session")

// Score is a submitted result. Value is kept exactly as the client sent it.
type Score struct {
	SessionID     string
	Value         json.RawMessage
	ContinueScore *float64
	RecordedAt    time.Time
}

type Recorder interface {
	Record(ctx context.Context, s Score) error
}
