package circuits

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"zk-attestation/internal/app/attestation"
	"zk-attestation/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	calls atomic.Int32
	delay time.Duration
	fail  map[attestation.Kind]error
}

func (l *countingLoader) Load(ctx context.Context, kind attestation.Kind) (any, []byte, error) {
	l.calls.Add(1)
	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	if err := l.fail[kind]; err != nil {
		return nil, nil, err
	}
	return "artifact-" + string(kind), []byte("vk-" + string(kind)), nil
}

func (l *countingLoader) Available(kind attestation.Kind) bool {
	return l.fail[kind] == nil
}

func TestRegistryMemoizesLoads(t *testing.T) {
	loader := &countingLoader{}
	r := NewRegistry(loader, logger.Nop())

	first, err := r.Load(context.Background(), attestation.KindAge)
	require.NoError(t, err)
	second, err := r.Get(context.Background(), attestation.KindAge)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), loader.calls.Load())
	assert.Equal(t, "artifact-age", first.Artifact)
	assert.NotEmpty(t, first.Integrity)
	assert.True(t, r.Loaded(attestation.KindAge))
	assert.False(t, r.Loaded(attestation.KindRegion))
}

func TestRegistryConcurrentGetLoadsOnce(t *testing.T) {
	loader := &countingLoader{delay: 20 * time.Millisecond}
	r := NewRegistry(loader, logger.Nop())

	var wg sync.WaitGroup
	results := make([]*Circuit, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := r.Get(context.Background(), attestation.KindUniqueness)
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), loader.calls.Load())
	for _, c := range results {
		assert.Same(t, results[0], c)
	}
}

func TestRegistryLoadSurvivesFirstCallerCancelling(t *testing.T) {
	loader := &countingLoader{delay: 100 * time.Millisecond}
	r := NewRegistry(loader, logger.Nop())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Get(firstCtx, attestation.KindAge)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return loader.calls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() {
		_, err := r.Get(context.Background(), attestation.KindAge)
		second <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancelFirst()
	assert.ErrorIs(t, <-firstErr, attestation.ErrCircuitLoad)

	require.NoError(t, <-second)
	assert.True(t, r.Loaded(attestation.KindAge))
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestRegistryLoadErrorTaggedWithKind(t *testing.T) {
	loader := &countingLoader{fail: map[attestation.Kind]error{
		attestation.KindRegion: errors.New("open region.pk: no such file"),
	}}
	r := NewRegistry(loader, logger.Nop())

	_, err := r.Get(context.Background(), attestation.KindRegion)
	require.ErrorIs(t, err, attestation.ErrCircuitLoad)

	var attErr *attestation.Error
	require.ErrorAs(t, err, &attErr)
	assert.Equal(t, attestation.KindRegion, attErr.Kind)
	assert.Contains(t, err.Error(), "region.pk")

	assert.False(t, r.Loaded(attestation.KindRegion))
	assert.False(t, r.Available(attestation.KindRegion))
	assert.True(t, r.Available(attestation.KindAge))
}

func TestRegistryRejectsUnknownKind(t *testing.T) {
	r := NewRegistry(&countingLoader{}, logger.Nop())

	_, err := r.Get(context.Background(), attestation.Kind("height"))
	assert.ErrorIs(t, err, attestation.ErrParameterValidation)
}

func TestRegistryEvictReloads(t *testing.T) {
	loader := &countingLoader{}
	r := NewRegistry(loader, logger.Nop())

	_, err := r.Get(context.Background(), attestation.KindAge)
	require.NoError(t, err)
	assert.True(t, r.Evict(attestation.KindAge))
	assert.False(t, r.Evict(attestation.KindAge))

	_, err = r.Get(context.Background(), attestation.KindAge)
	require.NoError(t, err)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestRegistryInfo(t *testing.T) {
	r := NewRegistry(&StaticLoader{
		Artifacts:     map[attestation.Kind]any{attestation.KindAge: "a"},
		VerifyingKeys: map[attestation.Kind][]byte{attestation.KindAge: []byte("vk")},
	}, logger.Nop())

	info := r.Info(attestation.KindAge)
	assert.True(t, info.Available)
	assert.False(t, info.Loaded)

	_, err := r.Get(context.Background(), attestation.KindAge)
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, attestation.KindAge, list[0].Kind)
	assert.True(t, list[0].Loaded)
	assert.NotNil(t, list[0].LoadedAt)
	assert.False(t, list[1].Available)

	_, err = r.Get(context.Background(), attestation.KindRegion)
	assert.ErrorIs(t, err, attestation.ErrCircuitLoad)
}
