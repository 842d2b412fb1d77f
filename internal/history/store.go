// Package history keeps a persistent record of every run so runs can be
// listed and compared later.
package history

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"pkg.jsn.cam/kwcount/pkg/kwcount"
	"pkg.jsn.cam/kwcount/pkg/kwcount/protocol"
)

var (
	runsBucket   = []byte("runs")
	runIDsBucket = []byte("run_ids")
)

// Buckets lists every bucket the store needs.
var Buckets = [][]byte{runsBucket, runIDsBucket}

// Record is one stored run.
type Record struct {
	StartedAt     time.Time           `json:"started_at"`
	Schema        string              `json:"schema"`
	RunID         string              `json:"run_id"`
	Label         string              `json:"label"`
	Tally         string              `json:"tally"`
	Framing       string              `json:"framing"`
	Corpus        string              `json:"corpus"`
	Fingerprint   string              `json:"fingerprint"`
	Keywords      []string            `json:"keywords"`
	Counts        kwcount.CountVector `json:"counts"`
	Seq           uint64              `json:"seq"`
	Ranks         int                 `json:"ranks"`
	Threads       int                 `json:"threads"`
	TotalRecords  int                 `json:"total_records"`
	Truncated     int                 `json:"truncated"`
	ScanElapsed   time.Duration       `json:"scan_elapsed_ns"`
	ReduceElapsed time.Duration       `json:"reduce_elapsed_ns"`
}

// NewRecord captures res. corpus names the input, typically its path.
func NewRecord(res *kwcount.Result, cfg kwcount.Config, corpus string) Record {
	return Record{
		StartedAt:     res.StartedAt,
		Schema:        protocol.SchemaVersion,
		RunID:         res.RunID,
		Label:         res.Label(),
		Tally:         cfg.Tally.String(),
		Framing:       cfg.Framing.String(),
		Corpus:        corpus,
		Fingerprint:   Fingerprint(res.Keywords, res.TotalRecords, corpus),
		Keywords:      res.Keywords,
		Counts:        res.Counts,
		Ranks:         res.Ranks,
		Threads:       res.ThreadsPerRank,
		TotalRecords:  res.TotalRecords,
		Truncated:     res.Truncated,
		ScanElapsed:   res.ScanElapsed,
		ReduceElapsed: res.ReduceElapsed,
	}
}

// Fingerprint identifies a set of inputs so runs over the same inputs can
// be compared.
func Fingerprint(keywords []string, totalRecords int, corpus string) string {
	h := sha256.New()
	for _, kw := range keywords {
		h.Write([]byte(kw))
		h.Write([]byte{'\n'})
	}
	fmt.Fprintf(h, "%d\x00%s", totalRecords, corpus)
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// Store reads and writes run records on a Backend.
type Store struct {
	backend Backend
	logger  *log.Logger
}

// Open opens the bbolt-backed store at path.
func Open(path string, logger *log.Logger) (*Store, error) {
	backend, err := OpenBolt(path, Buckets...)
	if err != nil {
		return nil, err
	}
	return NewStore(backend, logger), nil
}

// NewStore wraps backend, which must already hold Buckets.
func NewStore(backend Backend, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{backend: backend, logger: logger}
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func seqKey(seq uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, seq)
}

// Save stores rec under the next sequence number and returns it as stored.
// The record and its run ID index are written in one transaction.
func (s *Store) Save(rec Record) (Record, error) {
	rec.Schema = protocol.SchemaVersion

	err := s.backend.Update(func(tx Tx) error {
		seq, err := tx.NextSequence(runsBucket)
		if err != nil {
			return fmt.Errorf("allocate run sequence: %w", err)
		}
		rec.Seq = seq

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode run: %w", err)
		}
		if err := tx.Put(runsBucket, seqKey(seq), data); err != nil {
			return fmt.Errorf("store run: %w", err)
		}
		if err := tx.Put(runIDsBucket, []byte(rec.RunID), seqKey(seq)); err != nil {
			return fmt.Errorf("index run: %w", err)
		}
		return nil
	})
	if err != nil {
		return Record{}, err
	}

	s.logger.Printf("[HISTORY] Saved run %s as #%d", rec.RunID, rec.Seq)
	return rec, nil
}

// Delete removes a saved run and its index entry.
func (s *Store) Delete(rec Record) error {
	return s.backend.Update(func(tx Tx) error {
		if tx.Get(runsBucket, seqKey(rec.Seq)) == nil {
			return fmt.Errorf("%w: #%d", kwcount.ErrRunNotFound, rec.Seq)
		}
		if err := tx.Delete(runsBucket, seqKey(rec.Seq)); err != nil {
			return err
		}
		return tx.Delete(runIDsBucket, []byte(rec.RunID))
	})
}

// Get resolves ref, which may be a sequence number, a run ID or a unique
// run ID prefix. A number that names no stored run is tried as an ID.
func (s *Store) Get(ref string) (Record, error) {
	data, err := s.lookup(ref)
	if err != nil {
		return Record{}, err
	}
	return decode(data)
}

func (s *Store) lookup(ref string) ([]byte, error) {
	if seq, err := strconv.ParseUint(strings.TrimPrefix(ref, "#"), 10, 64); err == nil {
		data, err := s.backend.Get(runsBucket, seqKey(seq))
		if err != nil || data != nil {
			return data, err
		}
	}

	key, err := s.resolveID(ref)
	if err != nil {
		return nil, err
	}

	data, err := s.backend.Get(runsBucket, key)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s", kwcount.ErrRunNotFound, ref)
	}
	return data, nil
}

// resolveID maps a run ID or unique run ID prefix to its sequence key.
func (s *Store) resolveID(ref string) ([]byte, error) {
	key, err := s.backend.Get(runIDsBucket, []byte(ref))
	if err != nil {
		return nil, err
	}
	if key != nil {
		return key, nil
	}

	var matches [][]byte
	err = s.backend.ForEach(runIDsBucket, func(k, v []byte) error {
		if strings.HasPrefix(string(k), ref) {
			matches = append(matches, bytes.Clone(v))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", kwcount.ErrRunNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("run reference %q is ambiguous (%d matches)", ref, len(matches))
	}
}

// List returns every readable run in the order they were saved. Records
// written by an incompatible schema are skipped.
func (s *Store) List() ([]Record, error) {
	var out []Record
	err := s.backend.ForEach(runsBucket, func(k, v []byte) error {
		rec, err := decode(v)
		if err != nil {
			s.logger.Printf("[HISTORY] Skipping run #%d: %v", binary.BigEndian.Uint64(k), err)
			return nil
		}
		if protocol.Newer(rec.Schema, protocol.SchemaVersion) {
			s.logger.Printf("[HISTORY] Run #%d was written by schema %s; unknown fields ignored", rec.Seq, rec.Schema)
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func decode(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode run: %w", err)
	}

	ok, err := protocol.IsCompatibleSchema(rec.Schema, protocol.SchemaVersion)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", kwcount.ErrIncompatibleSchema, err)
	}
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", kwcount.ErrIncompatibleSchema,
			protocol.CompatibilityError(rec.Schema, protocol.SchemaVersion))
	}

	return rec, nil
}
