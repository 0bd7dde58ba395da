package rtdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/cockroachdb/pebble"
)

// Pebble backing: every leaf of the tree is one key, "n:" plus the
// slash-joined path, holding the JSON-encoded leaf value. A subtree
// write clears the old keys under the path with a range delete and
// rewrites the new leaves.
type pebbleBacking struct {
	db *pebble.DB
}

func openPebble(dir string) (*pebbleBacking, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("rtdb: open pebble at %s: %w", dir, err)
	}
	return &pebbleBacking{db: db}, nil
}

func (pb *pebbleBacking) close() error {
	return pb.db.Close()
}

const leafPrefix = "n:"

// persist mirrors a tree mutation at segs. Called with the store lock
// held; pebble serializes its own writes. Persistence failures are only
// logged, the in-memory tree stays authoritative for the life of the
// process.
func (pb *pebbleBacking) persist(segs []string, v any) {
	path := strings.Join(segs, "/")
	batch := pb.db.NewBatch()
	_ = batch.Delete([]byte(leafPrefix+path), nil)
	// '0' is '/'+1, so this range covers exactly the keys under path.
	_ = batch.DeleteRange([]byte(leafPrefix+path+"/"), []byte(leafPrefix+path+"0"), nil)
	if v != nil {
		writeLeaves(batch, leafPrefix+path, v)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		log.Printf("[RTDB] pebble persist %s failed: %v", path, err)
	}
}

func writeLeaves(batch *pebble.Batch, key string, v any) {
	m, ok := v.(map[string]any)
	if !ok {
		data, err := json.Marshal(v)
		if err != nil {
			return
		}
		_ = batch.Set([]byte(key), data, nil)
		return
	}
	for k, child := range m {
		writeLeaves(batch, key+"/"+k, child)
	}
}

// load rebuilds the in-memory tree from the persisted leaves.
func (pb *pebbleBacking) load(s *Store) error {
	iter, err := pb.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(leafPrefix),
		UpperBound: []byte("n;"), // ';' is ':'+1
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		path := strings.TrimPrefix(string(iter.Key()), leafPrefix)
		segs, err := splitPath(path)
		if err != nil {
			continue
		}
		v, err := decodeLeaf(iter.Value())
		if err != nil {
			continue
		}
		s.setAt(segs, v)
	}
	return iter.Error()
}

func decodeLeaf(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		return f, err
	}
	return v, nil
}
