package price

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func fixed(name string, v string) Source {
	return Func{SourceName: name, Fn: func(context.Context) (decimal.Decimal, error) {
		return decimal.RequireFromString(v), nil
	}}
}

func failing(name string, err error) Source {
	return Func{SourceName: name, Fn: func(context.Context) (decimal.Decimal, error) {
		return decimal.Zero, err
	}}
}

func TestChain_FirstValidWins_RestNotInvoked(t *testing.T) {
	invoked := false
	chain := &Chain{Sources: []Source{
		fixed("A", "1350.25"),
		Func{SourceName: "B", Fn: func(context.Context) (decimal.Decimal, error) {
			invoked = true
			return decimal.NewFromInt(1), nil
		}},
	}}

	q, attempts, err := chain.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, "A", q.Source)
	require.True(t, q.Rate.Equal(decimal.RequireFromString("1350.25")))
	require.Len(t, attempts, 1)
	require.False(t, invoked, "second source must not be invoked after a valid rate")
}

func TestChain_SoftFailuresFallThrough(t *testing.T) {
	// A: 200 with a non-numeric payload (surfaces as a parse error),
	// B: negative rate, C: valid.
	chain := &Chain{Sources: []Source{
		failing("A", fmt.Errorf("parse body: not a number")),
		fixed("B", "-5"),
		fixed("C", "1350.25"),
	}}

	q, attempts, err := chain.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, "C", q.Source)
	require.True(t, q.Rate.Equal(decimal.RequireFromString("1350.25")))
	require.Len(t, attempts, 3)
	require.False(t, attempts[0].OK)
	require.False(t, attempts[1].OK)
	require.Contains(t, attempts[1].Error, "non-positive")
	require.True(t, attempts[2].OK)
}

func TestChain_Exhausted_OneDiagnosticPerSourceInOrder(t *testing.T) {
	chain := &Chain{Sources: []Source{
		failing("A", errors.New("connection refused")),
		fixed("B", "0"),
		failing("C", errors.New("timeout")),
	}}

	_, attempts, err := chain.Fetch(context.Background())
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Attempts, 3)
	require.Equal(t, []string{"A", "B", "C"},
		[]string{attempts[0].Source, attempts[1].Source, attempts[2].Source})
	require.Contains(t, exhausted.Error(), "connection refused")
}

func TestChain_TimeoutCancelsAttempt(t *testing.T) {
	slow := Func{SourceName: "slow", Fn: func(ctx context.Context) (decimal.Decimal, error) {
		select {
		case <-ctx.Done():
			return decimal.Zero, ctx.Err()
		case <-time.After(5 * time.Second):
			return decimal.NewFromInt(1), nil
		}
	}}
	chain := &Chain{Sources: []Source{slow, fixed("fallback", "2")}, Timeout: 20 * time.Millisecond}

	start := time.Now()
	q, _, err := chain.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fallback", q.Source)
	require.Less(t, time.Since(start), time.Second, "timeout must abort the in-flight attempt")
}
