package data_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"VisionFlow/internal/config"
	"VisionFlow/internal/data"
	"VisionFlow/internal/data/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) (*data.Manager, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(config.LocalConfig{BasePath: dir})
	require.NoError(t, err)
	return data.NewManager(store, "", zap.NewNop()), dir
}

func TestScalarSeriesRoundTrip(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	d, err := mgr.Create(ctx, data.KindScalarSeries, "")
	require.NoError(t, err)
	require.NoError(t, d.Set("y", []float64{1, 2, 3}))
	require.NoError(t, d.Set("time", []float64{0, 1, 2}))
	require.NoError(t, d.Set("delta_time", 1.0))
	require.NoError(t, mgr.Release(ctx, d))

	loaded, err := mgr.Load(ctx, d.ID())
	require.NoError(t, err)
	defer mgr.Release(ctx, loaded)

	assert.Equal(t, data.KindScalarSeries, loaded.Kind())

	y, err := loaded.Get("y")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1.0, 2.0, 3.0}, y)

	tm, err := loaded.Get("time")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{0.0, 1.0, 2.0}, tm)

	dt, err := loaded.Get("delta_time")
	require.NoError(t, err)
	assert.Equal(t, 1.0, dt)
}

func TestCreateUnknownKind(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.Create(context.Background(), data.Kind("bogus"), "")
	assert.ErrorIs(t, err, data.ErrUnknownType)
}

func TestLoadMissingEntity(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.Load(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, data.ErrNotFound)
}

func TestLoadCorruptEntity(t *testing.T) {
	ctx := context.Background()
	mgr, dir := newTestManager(t)

	// publish a valid entity, then clobber its backing artifact
	d, err := mgr.Create(ctx, data.KindStringList, "")
	require.NoError(t, err)
	require.NoError(t, d.Set("values", []string{"a"}))
	require.NoError(t, mgr.Release(ctx, d))

	objectPath := filepath.Join(dir, "entities", d.ID()[:2], d.ID()+".msgpack")
	require.NoError(t, os.WriteFile(objectPath, []byte("\xc1 not msgpack"), 0644))

	_, err = mgr.Load(ctx, d.ID())
	assert.ErrorIs(t, err, data.ErrCorruptData)
}

func TestReadWhileWriteScopeOpenFails(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	d, err := mgr.Create(ctx, data.KindScalarSeries, "entity-under-write")
	require.NoError(t, err)

	_, err = mgr.Load(ctx, "entity-under-write")
	assert.ErrorIs(t, err, data.ErrLocked)

	require.NoError(t, d.Set("delta_time", 0.5))
	require.NoError(t, mgr.Release(ctx, d))

	// after release the entity is published and readable
	loaded, err := mgr.Load(ctx, "entity-under-write")
	require.NoError(t, err)
	require.NoError(t, mgr.Release(ctx, loaded))
}

func TestSecondWriterRejected(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	d, err := mgr.Create(ctx, data.KindScalarSeries, "contended")
	require.NoError(t, err)
	defer mgr.Release(ctx, d)

	_, err = mgr.Create(ctx, data.KindScalarSeries, "contended")
	assert.ErrorIs(t, err, data.ErrLocked)
}

func TestConcurrentReadersAllowed(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	d, err := mgr.Create(ctx, data.KindStringList, "")
	require.NoError(t, err)
	require.NoError(t, d.Set("values", []string{"x"}))
	require.NoError(t, mgr.Release(ctx, d))

	first, err := mgr.Load(ctx, d.ID())
	require.NoError(t, err)
	second, err := mgr.Load(ctx, d.ID())
	require.NoError(t, err)

	require.NoError(t, mgr.Release(ctx, first))
	require.NoError(t, mgr.Release(ctx, second))
}

func TestUnpublishedEntityInvisible(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	d, err := mgr.Create(ctx, data.KindScalarSeries, "")
	require.NoError(t, err)
	require.NoError(t, d.Set("y", []float64{9}))

	exists, err := mgr.Exists(ctx, d.ID())
	require.NoError(t, err)
	assert.False(t, exists, "entity must not be visible before its write scope exits")

	require.NoError(t, mgr.Release(ctx, d))

	exists, err = mgr.Exists(ctx, d.ID())
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSchemaEnforcement(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	d, err := mgr.Create(ctx, data.KindScalarSeries, "")
	require.NoError(t, err)
	defer mgr.Release(ctx, d)

	assert.Error(t, d.Set("histogram", []float64{1}))
}

func TestWriteAfterReleaseFails(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	d, err := mgr.Create(ctx, data.KindScalarSeries, "")
	require.NoError(t, err)
	require.NoError(t, mgr.Release(ctx, d))

	assert.ErrorIs(t, d.Set("y", []float64{1}), data.ErrReleased)
}

func TestNestedContainerRoundTrip(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	parent, err := mgr.Create(ctx, data.KindClusterList, "")
	require.NoError(t, err)

	child, err := parent.CreateChild(data.KindStringList, "cluster-0")
	require.NoError(t, err)
	require.NoError(t, child.Set("values", []string{"shot-1", "shot-2"}))

	require.NoError(t, mgr.Release(ctx, parent))

	loaded, err := mgr.Load(ctx, parent.ID())
	require.NoError(t, err)
	defer mgr.Release(ctx, loaded)

	got, err := loaded.Child("cluster-0")
	require.NoError(t, err)
	assert.Equal(t, data.KindStringList, got.Kind())

	values, err := got.Get("values")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"shot-1", "shot-2"}, values)
}

func TestChildOnNonContainerRejected(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	d, err := mgr.Create(ctx, data.KindScalarSeries, "")
	require.NoError(t, err)
	defer mgr.Release(ctx, d)

	_, err = d.CreateChild(data.KindStringList, "0")
	assert.Error(t, err)
}
