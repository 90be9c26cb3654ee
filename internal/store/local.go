package store

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/casyncd/casyncd/internal/cdcerr"
	"github.com/casyncd/casyncd/internal/chunkid"
)

// LocalStore backs a ChunkStore with the local filesystem, sharding
// chunks two hex-byte-pairs deep the way the teacher's CAS sharded by a
// single prefix byte (cas.go's objectPath). Writes land via a temp file
// in the same directory followed by os.Rename, so a concurrent reader
// only ever sees a complete frame at the final path or nothing at all.
type LocalStore struct {
	root string
}

// NewLocalStore ensures root exists and returns a LocalStore rooted there.
func NewLocalStore(root string) (*LocalStore, error) {
	const op = "store.NewLocalStore"
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, cdcerr.New(cdcerr.IoError, op, err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(id [32]byte) string {
	return filepath.Join(s.root, chunkid.ShardedPath(id))
}

func (s *LocalStore) Put(ctx context.Context, id [32]byte, frame []byte) error {
	const op = "store.LocalStore.Put"
	if err := ctx.Err(); err != nil {
		return cdcerr.New(cdcerr.Cancelled, op, err)
	}

	dst := s.path(id)
	if _, err := os.Stat(dst); err == nil {
		return nil // already present; Put is idempotent
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cdcerr.New(cdcerr.IoError, op, err)
	}

	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return cdcerr.New(cdcerr.IoError, op, err)
	}
	_, err = f.Write(frame)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return cdcerr.New(cdcerr.IoError, op, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return cdcerr.New(cdcerr.IoError, op, err)
	}
	return nil
}

func (s *LocalStore) Get(ctx context.Context, id [32]byte) ([]byte, error) {
	const op = "store.LocalStore.Get"
	if err := ctx.Err(); err != nil {
		return nil, cdcerr.New(cdcerr.Cancelled, op, err)
	}
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, cdcerr.WithChunk(cdcerr.NotFound, op, chunkid.Hex(id), -1, err)
	}
	if err != nil {
		return nil, cdcerr.New(cdcerr.IoError, op, err)
	}
	return data, nil
}

func (s *LocalStore) GetReader(ctx context.Context, id [32]byte) (io.ReadCloser, error) {
	const op = "store.LocalStore.GetReader"
	if err := ctx.Err(); err != nil {
		return nil, cdcerr.New(cdcerr.Cancelled, op, err)
	}
	f, err := os.Open(s.path(id))
	if os.IsNotExist(err) {
		return nil, cdcerr.WithChunk(cdcerr.NotFound, op, chunkid.Hex(id), -1, err)
	}
	if err != nil {
		return nil, cdcerr.New(cdcerr.IoError, op, err)
	}
	return f, nil
}

func (s *LocalStore) Exists(ctx context.Context, id [32]byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, cdcerr.New(cdcerr.Cancelled, "store.LocalStore.Exists", err)
	}
	_, err := os.Stat(s.path(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, cdcerr.New(cdcerr.IoError, "store.LocalStore.Exists", err)
}

func (s *LocalStore) Delete(ctx context.Context, id [32]byte) error {
	const op = "store.LocalStore.Delete"
	if err := ctx.Err(); err != nil {
		return cdcerr.New(cdcerr.Cancelled, op, err)
	}
	err := os.Remove(s.path(id))
	if err != nil && !os.IsNotExist(err) {
		return cdcerr.New(cdcerr.IoError, op, err)
	}
	return nil
}

func (s *LocalStore) List(ctx context.Context) ([][32]byte, error) {
	const op = "store.LocalStore.List"
	var ids [][32]byte
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".cacnk" {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := filepath.Base(path)
		hex := name[:len(name)-len(".cacnk")]
		id, err := chunkid.Parse(hex)
		if err != nil {
			return nil // skip stray files that aren't chunk frames
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, cdcerr.New(cdcerr.IoError, op, err)
	}
	return ids, nil
}

func (s *LocalStore) Stats(ctx context.Context) (Stats, error) {
	const op = "store.LocalStore.Stats"
	var st Stats
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".cacnk" {
			return nil
		}
		st.ChunkCount++
		st.TotalBytes += info.Size()
		return nil
	})
	if err != nil {
		return Stats{}, cdcerr.New(cdcerr.IoError, op, err)
	}
	return st, nil
}
