package store

import (
	"encoding/binary"
	"errors"

	bolt "go.etcd.io/bbolt"

	. "github.com/nextco/hermes-dec/pkg/store/storedefs"
)

func init() {
	initDB["initialize diagnostic table"] = func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketDiagnostics))
		return err
	}
}

var errBadDiagnostic = errors.New("malformed diagnostic record")

// AddDiagnostic appends a diagnostic and returns its sequence number.
func (s *dbStore) AddDiagnostic(d Diagnostic) (int, error) {
	var seq uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketDiagnostics))
		var err error
		seq, err = b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(marshalSeq(seq), marshalDiagnostic(d))
	})
	return int(seq), err
}

// Diagnostics returns all diagnostics in the order they were added.
func (s *dbStore) Diagnostics() ([]Diagnostic, error) {
	var ds []Diagnostic
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketDiagnostics)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			d, err := unmarshalDiagnostic(v)
			if err != nil {
				return err
			}
			d.Seq = int(unmarshalSeq(k))
			ds = append(ds, d)
		}
		return nil
	})
	return ds, err
}

// The value is the function index followed by the message.
func marshalDiagnostic(d Diagnostic) []byte {
	b := make([]byte, 8, 8+len(d.Message))
	binary.BigEndian.PutUint64(b, uint64(int64(d.Function)))
	return append(b, d.Message...)
}

func unmarshalDiagnostic(v []byte) (Diagnostic, error) {
	if len(v) < 8 {
		return Diagnostic{}, errBadDiagnostic
	}
	return Diagnostic{
		Function: int(int64(binary.BigEndian.Uint64(v))),
		Message:  string(v[8:]),
	}, nil
}
