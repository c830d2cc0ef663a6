package store

import (
	bolt "go.etcd.io/bbolt"

	. "github.com/nextco/hermes-dec/pkg/store/storedefs"
)

func init() {
	initDB["initialize function table"] = func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketFunctions))
		return err
	}
}

var (
	keyName = []byte("name")
	keyText = []byte("text")
)

// PutFunction stores a function, replacing any function with the same index.
// Each function is a nested bucket keyed by its index.
func (s *dbStore) PutFunction(fn Function) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket([]byte(bucketFunctions)).CreateBucketIfNotExists(marshalSeq(uint64(fn.Index)))
		if err != nil {
			return err
		}
		if err := b.Put(keyName, []byte(fn.Name)); err != nil {
			return err
		}
		return b.Put(keyText, []byte(fn.Text))
	})
}

// Function queries the function with the given index.
func (s *dbStore) Function(index int) (Function, error) {
	var fn Function
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketFunctions)).Bucket(marshalSeq(uint64(index)))
		if b == nil {
			return ErrNoFunction
		}
		fn = readFunction(index, b)
		return nil
	})
	return fn, err
}

// Functions returns all stored functions in index order.
func (s *dbStore) Functions() ([]Function, error) {
	var fns []Function
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketFunctions))
		return b.ForEach(func(k, v []byte) error {
			// Only nested buckets are stored, which have a nil value.
			if v == nil {
				fns = append(fns, readFunction(int(unmarshalSeq(k)), b.Bucket(k)))
			}
			return nil
		})
	})
	return fns, err
}

func readFunction(index int, b *bolt.Bucket) Function {
	return Function{Index: index, Name: string(b.Get(keyName)), Text: string(b.Get(keyText))}
}
