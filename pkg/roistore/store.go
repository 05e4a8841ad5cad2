// Package roistore persists regions of interest per image file in a single
// rois.json document per output directory.
package roistore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/menta2k/roi-cropper/pkg/types"
)

// FileName is the name of the store document inside the store directory
const FileName = "rois.json"

// ErrCorrupt is returned when rois.json exists but cannot be decoded
var ErrCorrupt = errors.New("corrupt roi store")

// Store is an in-memory copy of a rois.json document.
// It is not safe for concurrent use; the cropper has a single writer.
type Store struct {
	path    string
	entries map[string][]types.ROI
}

// Open reads dir/rois.json. A missing file yields an empty store.
// A corrupt file yields an empty store together with an error wrapping ErrCorrupt,
// so callers can log it and carry on; the next Save overwrites the file.
func Open(dir string) (*Store, error) {
	s := &Store{
		path:    filepath.Join(dir, FileName),
		entries: make(map[string][]types.ROI),
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var entries map[string][]types.ROI
	if err := json.Unmarshal(data, &entries); err != nil {
		return s, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	for id, rois := range entries {
		s.entries[id] = rois
	}
	return s, nil
}

// Path returns the location of the backing document
func (s *Store) Path() string {
	return s.path
}

// Get returns a copy of the ROIs stored for id, or an empty list
func (s *Store) Get(id string) []types.ROI {
	rois := s.entries[id]
	out := make([]types.ROI, len(rois))
	copy(out, rois)
	return out
}

// Set replaces the entry for id
func (s *Store) Set(id string, rois []types.ROI) {
	stored := make([]types.ROI, len(rois))
	copy(stored, rois)
	s.entries[id] = stored
}

// IDs returns the stored image ids in sorted order
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Save rewrites the whole document with two-space indentation.
// The write is not atomic.
func (s *Store) Save() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal roi store: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return nil
}

// Load returns the ROIs stored for imageID in dir/rois.json.
// A missing document or entry yields an empty list.
func Load(dir, imageID string) ([]types.ROI, error) {
	s, err := Open(dir)
	if err != nil {
		return nil, err
	}
	return s.Get(imageID), nil
}

// Save replaces the entry for imageID in dir/rois.json, keeping all other entries.
func Save(dir, imageID string, rois []types.ROI) error {
	s, err := Open(dir)
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return err
	}
	s.Set(imageID, rois)
	return s.Save()
}
