package persist

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixtureOwner struct {
	state string
	count int
}

func (o *fixtureOwner) SnapshotState() (string, any) {
	return o.state, o.count
}

func (o *fixtureOwner) RestoreState(stateName string, data any) error {
	o.state = stateName
	n, ok := data.(float64) // round-tripped through JSON/YAML as a number
	if !ok {
		if i, ok2 := data.(int); ok2 {
			o.count = i
			return nil
		}
		return errors.New("unexpected data type")
	}
	o.count = int(n)
	return nil
}

func TestSnapshotAndApplyRoundTrip(t *testing.T) {
	owner := &fixtureOwner{state: "blinky.onH", count: 7}
	rec := Snapshot("blinky", 3, owner)
	assert.Equal(t, "blinky", rec.Name)
	assert.Equal(t, 3, rec.Priority)
	assert.Equal(t, "blinky.onH", rec.StateName)

	restored := &fixtureOwner{}
	require.NoError(t, Apply(rec, restored))
	assert.Equal(t, "blinky.onH", restored.state)
}

func TestJSONStoreSaveLoadRoundTrip(t *testing.T) {
	store, err := NewJSONStore(t.TempDir())
	require.NoError(t, err)

	rec := Record{Name: "blinky", Priority: 3, StateName: "blinky.onH", Data: 7}
	require.NoError(t, store.Save(context.Background(), rec))

	got, err := store.Load(context.Background(), "blinky")
	require.NoError(t, err)
	assert.Equal(t, rec.Name, got.Name)
	assert.Equal(t, rec.Priority, got.Priority)
	assert.Equal(t, rec.StateName, got.StateName)
}

func TestJSONStoreLoadMissingReturnsNotExist(t *testing.T) {
	store, err := NewJSONStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "nobody")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestYAMLStoreSaveLoadRoundTrip(t *testing.T) {
	store, err := NewYAMLStore(t.TempDir())
	require.NoError(t, err)

	rec := Record{Name: "watchdog", Priority: 1, StateName: "watchdog.armedH", Data: "tick"}
	require.NoError(t, store.Save(context.Background(), rec))

	got, err := store.Load(context.Background(), "watchdog")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestYAMLStoreLoadMissingReturnsNotExist(t *testing.T) {
	store, err := NewYAMLStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "nobody")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
