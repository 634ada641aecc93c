package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"notioncal/internal/model"
)

const (
	bucketName = "state"
	// Key is the single key the whole AppState document lives under.
	Key = "notion-calendar-state"
)

// document is the persisted JSON shape of model.AppState.
type document struct {
	Credential        string         `json:"credential,omitempty"`
	Sources           []model.Source `json:"sources"`
	ViewMode          model.ViewMode `json:"view_mode"`
	AnchorDate        string         `json:"anchor_date"`
	SelectedSourceIDs []string       `json:"selected_source_ids,omitempty"`
}

// Store persists one AppState document in a bbolt file. The database is only
// held open for the duration of each call.
type Store struct {
	path string
}

// New returns a store backed by the bbolt file at path.
func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) open() (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state db %s: %w", s.path, err)
	}
	return db, nil
}

// Load returns the stored state, or nil with no error when nothing has been
// saved yet.
func (s *Store) Load() (*model.AppState, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var raw []byte
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(Key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	return decode(raw)
}

// Save overwrites the stored state.
func (s *Store) Save(st *model.AppState) error {
	if st == nil {
		return fmt.Errorf("save state: state is nil")
	}
	raw, err := encode(st)
	if err != nil {
		return err
	}

	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketName, err)
		}
		return b.Put([]byte(Key), raw)
	})
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Clear removes the stored state.
func (s *Store) Clear() error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(Key))
	})
}

func encode(st *model.AppState) ([]byte, error) {
	doc := document{
		Credential:        st.Credential,
		Sources:           st.Sources,
		ViewMode:          st.View.Mode,
		SelectedSourceIDs: st.SelectedSourceIDs,
	}
	if !st.View.Anchor.IsZero() {
		doc.AnchorDate = model.FormatDate(st.View.Anchor)
	}
	if doc.Sources == nil {
		doc.Sources = []model.Source{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return raw, nil
}

func decode(raw []byte) (*model.AppState, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}

	st := &model.AppState{
		Credential:        doc.Credential,
		Sources:           doc.Sources,
		SelectedSourceIDs: doc.SelectedSourceIDs,
	}
	if mode, ok := model.ParseViewMode(string(doc.ViewMode)); ok {
		st.View.Mode = mode
	} else {
		st.View.Mode = model.ViewMonth
	}
	if doc.AnchorDate != "" {
		if d, err := model.ParseDate(doc.AnchorDate); err == nil {
			st.View.Anchor = d
		}
	}
	return st, nil
}
