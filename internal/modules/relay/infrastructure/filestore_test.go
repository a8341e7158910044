package infrastructure

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"prodRelayWs/internal/modules/relay/domain"
)

func TestFileStoreRoundTrip(t *testing.T) {
	req := require.New(t)
	store := NewFileStore(filepath.Join(t.TempDir(), "data", "messages.json"))

	hist := domain.History{}
	at := time.Now()
	for _, body := range []string{"first", "second"} {
		msg, err := domain.NewChatMessage("p1", "c1", "alice", body, at)
		req.NoError(err)
		hist.Append(msg)
	}
	req.NoError(store.Save(hist))

	loaded := store.Load()
	req.Len(loaded.Room("p1"), 2)
	req.Equal("first", loaded.Room("p1")[0].Body)
	req.Equal("second", loaded.Room("p1")[1].Body)
	req.Equal(hist.Room("p1")[0].ID, loaded.Room("p1")[0].ID)
}

func TestFileStoreLoadMissingFile(t *testing.T) {
	req := require.New(t)
	store := NewFileStore(filepath.Join(t.TempDir(), "messages.json"))

	hist := store.Load()
	req.NotNil(hist)
	req.Empty(hist)
}

func TestFileStoreLoadCorruptFile(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "messages.json")
	req.NoError(os.WriteFile(path, []byte("{not json"), 0o644))

	hist := NewFileStore(path).Load()
	req.NotNil(hist)
	req.Empty(hist)
}

func TestFileStoreSaveRewritesWholesale(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "messages.json")
	store := NewFileStore(path)

	hist := domain.History{}
	msg, err := domain.NewChatMessage("p1", "c1", "alice", "hi", time.Now())
	req.NoError(err)
	hist.Append(msg)
	req.NoError(store.Save(hist))

	// A save of a smaller history must fully replace the previous record.
	req.NoError(store.Save(domain.History{}))
	req.Empty(store.Load())
}
