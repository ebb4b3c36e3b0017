package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/JakeFAU/jobboard-crawler/internal/crawler"
)

// ResultStore maps derived ids to job records for the lifetime of one run.
type ResultStore struct {
	mu      sync.RWMutex
	records map[string]crawler.JobRecord
}

// NewResultStore constructs an empty ResultStore.
func NewResultStore() *ResultStore {
	return &ResultStore{
		records: make(map[string]crawler.JobRecord),
	}
}

// Insert stores the record under its derived id. A record already present
// under the same id is replaced and Insert reports true.
func (s *ResultStore) Insert(record crawler.JobRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.records[record.DerivedID]
	record.Description = append([]string{}, record.Description...)
	s.records[record.DerivedID] = record
	return exists
}

// Get returns the record stored under id.
func (s *ResultStore) Get(id string) (crawler.JobRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	return record, ok
}

// Len returns the number of distinct derived ids stored.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Records returns every stored record ordered by derived id.
func (s *ResultStore) Records() []crawler.JobRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.JobRecord, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DerivedID < out[j].DerivedID })
	return out
}

// Serialize writes the whole mapping as one JSON object keyed by derived id.
func (s *ResultStore) Serialize(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s.records); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return nil
}

// DecodeResults parses a document written by Serialize.
func DecodeResults(r io.Reader) (map[string]crawler.JobRecord, error) {
	var out map[string]crawler.JobRecord
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	for id, record := range out {
		record.RawID = crawler.RawIDFromDerived(record.Title, record.DerivedID)
		out[id] = record
	}
	return out, nil
}
