package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// countingEmbedder records how many texts it was actually asked to embed,
// so tests can assert the cache is absorbing repeat requests.
type countingEmbedder struct {
	calls int
	seen  []string
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.seen = append(c.seen, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 0, 0}
	}
	return out, nil
}

func (c *countingEmbedder) Dimensions() int                    { return 3 }
func (c *countingEmbedder) ModelName() string                  { return "counting-test" }
func (c *countingEmbedder) Available(ctx context.Context) bool { return true }
func (c *countingEmbedder) Close() error                       { return nil }

func TestCachedEmbedder_CachesRepeatedText(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	first, err := cached.Embed(ctx, []string{"hello", "world"})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, 1, inner.calls)

	second, err := cached.Embed(ctx, []string{"hello", "world"})
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, inner.calls, "repeated texts should hit the cache, not the inner embedder")
}

func TestCachedEmbedder_OnlyComputesMisses(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	_, err := cached.Embed(ctx, []string{"alpha"})
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)

	results, err := cached.Embed(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, 2, inner.calls)
	require.Equal(t, []string{"beta"}, inner.seen[1:])
}

func TestCachedEmbedder_EmptyInput(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, 10)

	results, err := cached.Embed(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, results)
	require.Equal(t, 0, inner.calls)
}

func TestCachedEmbedder_DelegatesMetadata(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, 10)

	require.Equal(t, 3, cached.Dimensions())
	require.Equal(t, "counting-test", cached.ModelName())
	require.True(t, cached.Available(context.Background()))
	require.NoError(t, cached.Close())
	require.Same(t, inner, cached.Inner())
}
