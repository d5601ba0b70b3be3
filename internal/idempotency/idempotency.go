// Package idempotency implements the persistent "{sender}:{client_tx_id}"
// idempotency store for POST /tx/send. Unlike the nonce guard, records are
// never swept: they live for the lifetime of the data directory.
package idempotency

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Record is what gets stored once a transaction submission succeeds.
type Record struct {
	TxHash     string `json:"tx_hash"`
	SubmitHash string `json:"submit_hash"`
	Amount     int64  `json:"amount"`
	Recipient  string `json:"recipient"`
	RecordedAt int64  `json:"recorded_at"`
}

// Store is a file-backed map of idempotency key to Record.
type Store struct {
	mu   sync.Mutex
	path string
}

// New returns a Store persisting to path.
func New(path string) *Store {
	return &Store{path: path}
}

// Key builds the idempotency key for a sender address and client tx id.
func Key(senderAddress, clientTxID string) string {
	return fmt.Sprintf("%s:%s", senderAddress, clientTxID)
}

func (s *Store) load() map[string]Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return map[string]Record{}
	}
	var parsed map[string]Record
	if err := json.Unmarshal(data, &parsed); err != nil {
		return map[string]Record{}
	}
	if parsed == nil {
		parsed = map[string]Record{}
	}
	return parsed
}

func (s *Store) save(data map[string]Record) error {
	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, buf, 0o600)
}

// Lookup returns the stored record for key, if any.
func (s *Store) Lookup(key string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.load()[key]
	return rec, ok
}

// Record writes rec under key, overwriting any prior value. Callers must
// have already verified via Lookup that key was unclaimed — Record itself
// does not check for collisions, since the submission service needs the
// lookup-then-record sequence to span the nonce claim and Tx Engine call.
func (s *Store) Record(key string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.load()
	data[key] = rec
	return s.save(data)
}
