package trainer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/bt"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/logging"
)

func TestFileIdentityStore_MissingFile(t *testing.T) {
	store := NewFileIdentityStore(filepath.Join(t.TempDir(), "device.json"), logging.NewRecorder())
	device, ok, err := store.LoadIdentity()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, device.IsZero())
}

func TestFileIdentityStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "device.json")
	store := NewFileIdentityStore(path, logging.NewRecorder())

	require.NoError(t, store.SaveIdentity(testBike))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")

	device, ok, err := NewFileIdentityStore(path, logging.NewRecorder()).LoadIdentity()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, testBike, device)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"device": {"id": "AA:BB:CC:DD:EE:01", "name": "Test Bike"}}`, string(raw))
}

func TestFileIdentityStore_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")
	store := NewFileIdentityStore(path, logging.NewRecorder())
	other := bt.DeviceIdentity{ID: "11:22:33:44:55:66", Name: "Other"}

	require.NoError(t, store.SaveIdentity(testBike))
	require.NoError(t, store.SaveIdentity(other))

	device, ok, err := store.LoadIdentity()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, other, device)
}

func TestFileIdentityStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, ok, err := NewFileIdentityStore(path, logging.NewRecorder()).LoadIdentity()
	assert.False(t, ok)
	assert.ErrorContains(t, err, "parse")
}

func TestFileIdentityStore_EmptyDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"device": {}}`), 0644))

	_, ok, err := NewFileIdentityStore(path, logging.NewRecorder()).LoadIdentity()
	require.NoError(t, err)
	assert.False(t, ok)
}
