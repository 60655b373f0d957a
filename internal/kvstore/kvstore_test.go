package kvstore

import (
	"fmt"
	"path/filepath"
	"strconv"
	"testing"
)

var (
	testVolumeId   = "a7f3c2d1"
	testPrefix     = "V"
	testMetadata   = []byte(`{"namespace":1,"blocks":1024}`)
	testNumEntries = 10
)

type volumeRegistry struct {
	t *testing.T
}

func (*volumeRegistry) Prefix() string {
	return testPrefix
}

func (r *volumeRegistry) NewReplay(id string) ReplayHandler {
	if testVolumeId != id {
		r.t.Fatalf("NewReplay incorrect ID: Expected: %s Actual: %s", testVolumeId, id)
	}
	return &volumeReplay{t: r.t}
}

type volumeReplay struct {
	t *testing.T
}

func (r *volumeReplay) Metadata(data []byte) error {
	if string(testMetadata) != string(data) {
		r.t.Fatalf("Replay metadata mismatch: Expected: %s Actual: %s", string(testMetadata), string(data))
	}

	return nil
}

func (r *volumeReplay) Entry(t uint32, data []byte) error {
	if t > uint32(testNumEntries) {
		r.t.Fatalf("Replay entry type invalid: %d", t)
	}

	val, err := strconv.Atoi(string(data))
	if err != nil {
		return err
	}
	if int(t) != val {
		r.t.Fatalf("Replay entry data value: Expected: %d Actual: %d", t, val)
	}

	return nil
}

func (*volumeReplay) Done() error {
	return nil
}

func TestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volumes.db")

	store, err := Open(path, false)
	if err != nil {
		t.Fatalf("Failed to open %s: Error: %s", path, err)
	}

	defer store.Close()

	registry := volumeRegistry{t: t}
	store.Register([]Registry{&registry})

	// Create a new key
	{
		ledger, err := store.NewKey(store.MakeKey(&registry, testVolumeId), testMetadata)
		if err != nil {
			t.Errorf("Failed to create new ledger key %s: Error: %s", testVolumeId, err)
		}

		for i := 0; i < testNumEntries; i++ {

			if err := ledger.Log(uint32(i), []byte(fmt.Sprintf("%d", i))); err != nil {
				t.Errorf("Failed to log ledger entry %d: Error: %s", i, err)
			}
		}

		ledger.Close()
	}

	// Open an existing key
	{
		ledger, err := store.OpenKey(store.MakeKey(&registry, testVolumeId), false)
		if err != nil {
			t.Errorf("Failed to open existing ledger key %s: Error: %s", testVolumeId, err)
		}

		for i := 0; i < testNumEntries; i++ {

			if err := ledger.Log(uint32(i), []byte(fmt.Sprintf("%d", i))); err != nil {
				t.Errorf("Failed to log ledger entry %d: Error: %s", i, err)
			}
		}

		ledger.Close()
	}

	// Run the ledger replay
	{
		if err := store.Replay(); err != nil {
			t.Errorf("Failed to run replay: Error: %s", err)
		}
	}
}
