package cachestore

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var signaturesBucket = []byte("signatures")
var outputsBucket = []byte("outputs")

// SignatureIndex persists the optional on-disk cache index
// <project>/.pipeline/cache/signatures.db, mapping step name to the
// signature hex that last produced its cached outputs. It backs the
// `cache plan`, `cache warm`, and `cache clear` CLI commands so they can
// inspect cache state without replaying a flow.
type SignatureIndex struct {
	db *bolt.DB
}

// OpenSignatureIndex opens (creating if absent) the bbolt-backed index at path.
func OpenSignatureIndex(path string) (*SignatureIndex, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache index: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(signaturesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(outputsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache index bucket: %w", err)
	}
	return &SignatureIndex{db: db}, nil
}

// Close releases the underlying file handle.
func (s *SignatureIndex) Close() error { return s.db.Close() }

// Put records the signature that produced step's cached outputs.
func (s *SignatureIndex) Put(step, signature string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(signaturesBucket).Put([]byte(step), []byte(signature))
	})
}

// Get returns the stored signature for step, and whether one was present.
func (s *SignatureIndex) Get(step string) (string, bool, error) {
	var sig string
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(signaturesBucket).Get([]byte(step))
		if v != nil {
			sig = string(v)
			ok = true
		}
		return nil
	})
	return sig, ok, err
}

// Delete removes the stored signature and cached outputs for the named
// steps, or all of them when steps is empty; used by `cache clear
// [--steps a,b]`.
func (s *SignatureIndex) Delete(steps ...string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if len(steps) == 0 {
			for _, bucket := range [][]byte{signaturesBucket, outputsBucket} {
				if err := tx.DeleteBucket(bucket); err != nil {
					return err
				}
				if _, err := tx.CreateBucket(bucket); err != nil {
					return err
				}
			}
			return nil
		}
		sigs := tx.Bucket(signaturesBucket)
		outs := tx.Bucket(outputsBucket)
		for _, step := range steps {
			if err := sigs.Delete([]byte(step)); err != nil {
				return err
			}
			if err := outs.Delete([]byte(step)); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutOutputs persists step's declared outputs alongside the signature that
// produced them, so a future run with a matching signature can skip
// re-execution and reuse these values directly from disk.
func (s *SignatureIndex) PutOutputs(step string, outputs map[string]interface{}) error {
	data, err := json.Marshal(outputs)
	if err != nil {
		return fmt.Errorf("encode cached outputs for %q: %w", step, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(outputsBucket).Put([]byte(step), data)
	})
}

// GetOutputs returns the previously persisted outputs for step, and
// whether any were found.
func (s *SignatureIndex) GetOutputs(step string) (map[string]interface{}, bool, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(outputsBucket).Get([]byte(step))
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || raw == nil {
		return nil, false, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false, fmt.Errorf("decode cached outputs for %q: %w", step, err)
	}
	return out, true, nil
}

// All returns every step→signature pair currently stored.
func (s *SignatureIndex) All() (map[string]string, error) {
	out := make(map[string]string)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(signaturesBucket).ForEach(func(k, v []byte) error {
			out[string(k)] = string(v)
			return nil
		})
	})
	return out, err
}
