package history

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

var testBucket = []byte("test")

func nextSequence(b Backend) (uint64, error) {
	var seq uint64
	err := b.Update(func(tx Tx) error {
		var err error
		seq, err = tx.NextSequence(testBucket)
		return err
	})
	return seq, err
}

// backendTestSuite runs the same checks against any Backend implementation.
func backendTestSuite(t *testing.T, newBackend func(t *testing.T) Backend) {
	t.Run("PutAndGet", func(t *testing.T) {
		backend := newBackend(t)

		if err := backend.Put(testBucket, []byte("key1"), []byte("value1")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		got, err := backend.Get(testBucket, []byte("key1"))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, []byte("value1")) {
			t.Errorf("Get returned %s, want value1", got)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		backend := newBackend(t)

		got, err := backend.Get(testBucket, []byte("nope"))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != nil {
			t.Errorf("Get returned %q for a missing key, want nil", got)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		backend := newBackend(t)

		backend.Put(testBucket, []byte("k"), []byte("old"))
		backend.Put(testBucket, []byte("k"), []byte("new"))

		got, _ := backend.Get(testBucket, []byte("k"))
		if string(got) != "new" {
			t.Errorf("Get returned %s, want new", got)
		}
	})

	t.Run("ValueIsCopied", func(t *testing.T) {
		backend := newBackend(t)

		value := []byte("abc")
		backend.Put(testBucket, []byte("k"), value)
		value[0] = 'X'

		got, _ := backend.Get(testBucket, []byte("k"))
		if string(got) != "abc" {
			t.Errorf("stored value changed to %s after caller mutation", got)
		}
	})

	t.Run("ForEachOrdered", func(t *testing.T) {
		backend := newBackend(t)

		for _, k := range []string{"c", "a", "b"} {
			if err := backend.Put(testBucket, []byte(k), []byte(k+k)); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
		}

		var keys []string
		err := backend.ForEach(testBucket, func(k, v []byte) error {
			if string(v) != string(k)+string(k) {
				t.Errorf("value for %s = %s", k, v)
			}
			keys = append(keys, string(k))
			return nil
		})
		if err != nil {
			t.Fatalf("ForEach failed: %v", err)
		}

		want := []string{"a", "b", "c"}
		if len(keys) != len(want) {
			t.Fatalf("ForEach visited %v, want %v", keys, want)
		}
		for i := range want {
			if keys[i] != want[i] {
				t.Errorf("ForEach visited %v, want %v", keys, want)
				break
			}
		}
	})

	t.Run("NextSequence", func(t *testing.T) {
		backend := newBackend(t)

		var last uint64
		for range 5 {
			seq, err := nextSequence(backend)
			if err != nil {
				t.Fatalf("NextSequence failed: %v", err)
			}
			if seq <= last {
				t.Fatalf("NextSequence returned %d after %d", seq, last)
			}
			last = seq
		}
	})

	t.Run("UpdateCommits", func(t *testing.T) {
		backend := newBackend(t)

		err := backend.Update(func(tx Tx) error {
			if err := tx.Put(testBucket, []byte("a"), []byte("1")); err != nil {
				return err
			}
			if got := tx.Get(testBucket, []byte("a")); string(got) != "1" {
				t.Errorf("Get inside Update = %q, want 1", got)
			}
			return tx.Put(testBucket, []byte("b"), []byte("2"))
		})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		for k, want := range map[string]string{"a": "1", "b": "2"} {
			if got, _ := backend.Get(testBucket, []byte(k)); string(got) != want {
				t.Errorf("Get(%s) = %q, want %s", k, got, want)
			}
		}
	})

	t.Run("UpdateRollsBack", func(t *testing.T) {
		backend := newBackend(t)

		first, err := nextSequence(backend)
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}

		boom := errors.New("boom")
		err = backend.Update(func(tx Tx) error {
			if _, err := tx.NextSequence(testBucket); err != nil {
				return err
			}
			if err := tx.Put(testBucket, []byte("k"), []byte("v")); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Update error = %v, want boom", err)
		}

		if got, _ := backend.Get(testBucket, []byte("k")); got != nil {
			t.Errorf("failed Update left %q behind", got)
		}
		next, err := nextSequence(backend)
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		if next != first+1 {
			t.Errorf("sequence after rollback = %d, want %d", next, first+1)
		}
	})

	t.Run("MissingBucket", func(t *testing.T) {
		backend := newBackend(t)

		if err := backend.Put([]byte("missing"), []byte("k"), []byte("v")); err == nil {
			t.Error("Put into a missing bucket should fail")
		}
		if _, err := backend.Get([]byte("missing"), []byte("k")); err == nil {
			t.Error("Get from a missing bucket should fail")
		}
		err := backend.Update(func(tx Tx) error {
			_, err := tx.NextSequence([]byte("missing"))
			return err
		})
		if err == nil {
			t.Error("NextSequence on a missing bucket should fail")
		}
	})
}

func TestBoltBackend(t *testing.T) {
	t.Parallel()

	backendTestSuite(t, func(t *testing.T) Backend {
		b, err := OpenBolt(filepath.Join(t.TempDir(), "history.db"), testBucket)
		if err != nil {
			t.Fatalf("OpenBolt failed: %v", err)
		}
		t.Cleanup(func() { b.Close() })
		return b
	})
}

func TestMemoryBackend(t *testing.T) {
	t.Parallel()

	backendTestSuite(t, func(t *testing.T) Backend {
		return NewMemoryBackend(testBucket)
	})
}

func TestBoltBackendPersists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.db")

	b, err := OpenBolt(path, testBucket)
	if err != nil {
		t.Fatalf("OpenBolt failed: %v", err)
	}
	if err := b.Put(testBucket, []byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	seq, _ := nextSequence(b)
	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	b, err = OpenBolt(path, testBucket)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer b.Close()

	got, _ := b.Get(testBucket, []byte("k"))
	if string(got) != "v" {
		t.Errorf("after reopen Get = %q, want v", got)
	}
	next, _ := nextSequence(b)
	if next <= seq {
		t.Errorf("sequence went from %d to %d across reopen", seq, next)
	}
}
