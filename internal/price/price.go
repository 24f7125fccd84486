package price

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the normalized shape returned by the fallback chain.
// Rate stays a decimal end to end; floats appear only at the JSON boundary.
type Quote struct {
	Rate      decimal.Decimal `json:"rate"`
	Source    string          `json:"source"`
	Timestamp int64           `json:"t"` // epoch-ms
}

// Source is one external rate feed. Rate returns the quoted value or an
// error; a successfully parsed but non-positive value is the source's
// problem to report as a value, not an error, so the chain can tell the two
// apart.
type Source interface {
	Name() string
	Rate(ctx context.Context) (decimal.Decimal, error)
}

// Func adapts a plain function into a Source.
type Func struct {
	SourceName string
	Fn         func(ctx context.Context) (decimal.Decimal, error)
}

func (f Func) Name() string { return f.SourceName }

func (f Func) Rate(ctx context.Context) (decimal.Decimal, error) { return f.Fn(ctx) }

func nowMillis() int64 { return time.Now().UnixMilli() }
