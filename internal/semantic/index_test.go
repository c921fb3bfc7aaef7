package semantic

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
	"ragqa/internal/vectorstore/memory"
)

// fakeEmbedder maps text onto two axes: occurrences of "شمس" and of "قمر".
type fakeEmbedder struct {
	gate    chan struct{}
	fail    atomic.Bool
	batches atomic.Int32
}

func (f *fakeEmbedder) Name() string { return "fake" }
func (f *fakeEmbedder) Prepare([]string) error { return nil }
func (f *fakeEmbedder) Dimension() int { return 2 }
func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(strings.Count(text, "شمس")), float32(strings.Count(text, "قمر"))}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.batches.Add(1)
	if f.fail.Load() {
		return nil, errors.New("backend down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = f.Embed(ctx, t)
	}
	return out, nil
}

func testUnits() []domain.KnowledgeUnit {
	return []domain.KnowledgeUnit{
		{Content: "شمس", UnitID: "a"},
		{Content: ""},
		{Content: "قمر", UnitID: "c"},
		{Content: "شمس شمس قمر", UnitID: "d"},
		{Content: "لا شيء", UnitID: "e"},
	}
}

func TestSearchBeforeStart(t *testing.T) {
	x := New(testUnits(), &fakeEmbedder{}, memory.NewStorage(), Config{BatchSize: 2}, nil)
	_, err := x.Search(context.Background(), "شمس", 2)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, x.Wait(context.Background()), ErrNotReady)
	state, _ := x.State()
	assert.Equal(t, NotStarted, state)
}

func TestConcurrentStartBuildsOnce(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{gate: make(chan struct{})}
	x := New(testUnits(), emb, memory.NewStorage(), Config{BatchSize: 2, Concurrency: 2}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			x.Start(ctx)
		}()
	}
	wg.Wait()

	state, _ := x.State()
	assert.Equal(t, Building, state)
	_, err := x.Search(ctx, "شمس", 2)
	assert.ErrorIs(t, err, ErrNotReady)

	close(emb.gate)
	require.NoError(t, x.Wait(ctx))
	assert.Equal(t, 1, x.Builds())
	// four non-empty texts in batches of two
	assert.Equal(t, int32(2), emb.batches.Load())

	hits, err := x.Search(ctx, "شمس", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Index)
	assert.Equal(t, 3, hits[1].Index)

	x.Start(ctx)
	assert.Equal(t, 1, x.Builds())
}

func TestFailedBuildRestarts(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{}
	emb.fail.Store(true)
	x := New(testUnits(), emb, memory.NewStorage(), DefaultConfig(), nil)

	x.Start(ctx)
	err := x.Wait(ctx)
	require.Error(t, err)
	state, stateErr := x.State()
	assert.Equal(t, Failed, state)
	assert.Equal(t, err, stateErr)
	_, err = x.Search(ctx, "شمس", 1)
	assert.ErrorIs(t, err, ErrNotReady)

	emb.fail.Store(false)
	x.Start(ctx)
	require.NoError(t, x.Wait(ctx))
	assert.Equal(t, 2, x.Builds())
}

func TestZeroVectorsAreSkipped(t *testing.T) {
	ctx := context.Background()
	x := New(testUnits(), &fakeEmbedder{}, memory.NewStorage(), DefaultConfig(), nil)
	x.Start(ctx)
	require.NoError(t, x.Wait(ctx))

	hits, err := x.Search(ctx, "قمر", 10)
	require.NoError(t, err)
	idx := make([]int, len(hits))
	for i, h := range hits {
		idx[i] = h.Index
	}
	assert.Equal(t, []int{2, 3, 0}, idx)

	hits, err = x.Search(ctx, "بلا محور", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestEmptyCorpusFails(t *testing.T) {
	ctx := context.Background()
	x := New([]domain.KnowledgeUnit{{Content: "  "}}, &fakeEmbedder{}, memory.NewStorage(), DefaultConfig(), nil)
	x.Start(ctx)
	assert.Error(t, x.Wait(ctx))
}

func TestCloseStopsBuild(t *testing.T) {
	ctx := context.Background()
	emb := &fakeEmbedder{gate: make(chan struct{})}
	storage := memory.NewStorage()
	x := New(testUnits(), emb, storage, Config{BatchSize: 1, Concurrency: 1}, nil)
	x.Start(ctx)

	// let exactly one batch through, then supersede the index
	emb.gate <- struct{}{}
	require.Eventually(t, func() bool { return emb.batches.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, x.Close(ctx))

	state, err := x.State()
	assert.Equal(t, Failed, state)
	assert.ErrorIs(t, err, context.Canceled)

	// no further batches once closed, and Start is a no-op
	close(emb.gate)
	x.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), emb.batches.Load())
	assert.Equal(t, 1, x.Builds())

	hits, err := storage.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestCloseUnstartedClearsStorage(t *testing.T) {
	x := New(testUnits(), &fakeEmbedder{}, memory.NewStorage(), DefaultConfig(), nil)
	require.NoError(t, x.Close(context.Background()))
	x.Start(context.Background())
	assert.Equal(t, 0, x.Builds())
}
