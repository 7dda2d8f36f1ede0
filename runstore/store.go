// Package runstore persists the day records produced by a simulation
// run, either in memory or in a bolt database.
package runstore

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/boltdb/bolt"
	errgo "gopkg.in/errgo.v1"

	"github.com/Simma37/energy-simulation/simworker"
)

const dateFormat = "2006-01-02"

// MemStore keeps a run's day records in memory, in the order they
// were added. It implements simworker.Store.
type MemStore struct {
	mu   sync.Mutex
	days []simworker.DayRecord
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

// AddDay implements simworker.Store.AddDay.
func (s *MemStore) AddDay(rec simworker.DayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days = append(s.days, rec)
	return nil
}

// Days returns all stored day records in insertion order.
func (s *MemStore) Days() []simworker.DayRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]simworker.DayRecord(nil), s.days...)
}

// BoltStore persists day records in a bolt database, one JSON value
// per day keyed by date. It implements simworker.Store.
type BoltStore struct {
	mu sync.Mutex
	db *bolt.DB
}

var dayBucket = []byte("day")

// Open opens (creating if needed) a bolt-backed store at the given
// file path.
func Open(file string) (*BoltStore, error) {
	db, err := bolt.Open(file, 0666, nil)
	if err != nil {
		return nil, errgo.Mask(err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(dayBucket)
		return errgo.Mask(err)
	})
	if err != nil {
		return nil, errgo.Mask(err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// AddDay implements simworker.Store.AddDay. Adding a record for a date
// that already has one replaces it.
func (s *BoltStore) AddDay(rec simworker.DayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(rec)
	if err != nil {
		return errgo.Mask(err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(dayBucket).Put(dayKey(rec.Date), data)
	})
	return errgo.Mask(err)
}

// Days returns the stored day records with from <= date < to in date
// order. A zero from means from the beginning; a zero to means to the
// end.
func (s *BoltStore) Days(from, to time.Time) ([]simworker.DayRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var days []simworker.DayRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(dayBucket).Cursor()
		k, v := cursor.First()
		if !from.IsZero() {
			k, v = cursor.Seek(dayKey(from))
		}
		for ; k != nil; k, v = cursor.Next() {
			if !to.IsZero() && string(k) >= string(dayKey(to)) {
				break
			}
			var rec simworker.DayRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return errgo.Notef(err, "corrupt day record %q", k)
			}
			days = append(days, rec)
		}
		return nil
	})
	if err != nil {
		return nil, errgo.Mask(err)
	}
	return days, nil
}

// dayKey returns the database key for a date. The textual form sorts
// chronologically.
func dayKey(t time.Time) []byte {
	return []byte(t.Format(dateFormat))
}
