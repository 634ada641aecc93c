package state

import (
	"path/filepath"
	"testing"
	"time"

	"notioncal/internal/model"
)

func TestStore_LoadEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state.db"))

	st, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st != nil {
		t.Errorf("expected nil state, got %+v", st)
	}
}

func TestStore_RoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nested", "state.db"))

	want := &model.AppState{
		Credential: "secret_abcdefghijklmnopqrstu",
		Sources: []model.Source{{
			ID:           "s1",
			Name:         "Work",
			CollectionID: "0123456789abcdef0123456789abcdef",
			TitleField:   "Name",
			DateField:    "Due",
			Color:        "#feca57",
		}},
		View: model.ViewState{
			Mode:   model.ViewWeek,
			Anchor: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		},
		SelectedSourceIDs: []string{"s1"},
	}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatal("Load returned nil")
	}
	if got.Credential != want.Credential {
		t.Errorf("Credential = %q", got.Credential)
	}
	if len(got.Sources) != 1 || got.Sources[0] != want.Sources[0] {
		t.Errorf("Sources = %+v", got.Sources)
	}
	if got.View.Mode != model.ViewWeek || !got.View.Anchor.Equal(want.View.Anchor) {
		t.Errorf("View = %+v", got.View)
	}
	if len(got.SelectedSourceIDs) != 1 {
		t.Errorf("SelectedSourceIDs = %v", got.SelectedSourceIDs)
	}
}

func TestStore_Clear(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state.db"))

	if err := s.Save(&model.AppState{View: model.ViewState{Mode: model.ViewDay}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	st, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st != nil {
		t.Errorf("state survived Clear: %+v", st)
	}
}

func TestDecode_UnknownViewFallsBackToMonth(t *testing.T) {
	st, err := decode([]byte(`{"sources":[],"view_mode":"year","anchor_date":"not-a-date"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.View.Mode != model.ViewMonth {
		t.Errorf("Mode = %q", st.View.Mode)
	}
	if !st.View.Anchor.IsZero() {
		t.Errorf("Anchor = %v", st.View.Anchor)
	}
}

func TestDecode_Corrupt(t *testing.T) {
	if _, err := decode([]byte(`{`)); err == nil {
		t.Error("expected error")
	}
}
