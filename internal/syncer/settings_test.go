package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"notioncal/internal/model"
)

func TestApplySettings_RejectsBeforeSaving(t *testing.T) {
	tests := []struct {
		name string
		st   model.AppState
		want error
	}{
		{
			name: "bad credential prefix",
			st:   model.AppState{Credential: "token_abcdefghijklmnopqrstuvwxyz"},
			want: model.ErrInvalidCredential,
		},
		{
			name: "short credential",
			st:   model.AppState{Credential: "secret_abc"},
			want: model.ErrInvalidCredential,
		},
		{
			name: "bad database id",
			st: model.AppState{
				Credential: testCredential,
				Sources:    []model.Source{{Name: "x", CollectionID: "not-a-database"}},
			},
			want: model.ErrInvalidCollectionID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeNotion()
			c, store := newController(t, fake, testCredential)
			before := c.State()

			err := c.ApplySettings(context.Background(), tt.st)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if store.saves != 0 {
				t.Error("state saved despite validation failure")
			}
			if fake.queries != 0 {
				t.Error("remote queried despite validation failure")
			}
			if got := c.State(); len(got.Sources) != len(before.Sources) || got.Credential != before.Credential {
				t.Error("in-memory state changed")
			}
		})
	}
}

func TestApplySettings_CleansAndDefaults(t *testing.T) {
	fake := newFakeNotion()
	fake.add(dbA, "a1", "2024-03-01")
	c, store := newController(t, fake, "")

	err := c.ApplySettings(context.Background(), model.AppState{
		Credential: "  " + testCredential + " ",
		Sources: []model.Source{
			{CollectionID: "AAAAAAAA-AAAA-AAAA-AAAA-AAAAAAAAAAAA"},
			{Name: "Empty"},
		},
	})
	if err != nil {
		t.Fatalf("ApplySettings: %v", err)
	}

	st := c.State()
	if st.Credential != testCredential {
		t.Errorf("credential = %q", st.Credential)
	}
	src := st.Sources[0]
	if src.CollectionID != dbA {
		t.Errorf("collection id = %q", src.CollectionID)
	}
	if src.ID == "" || src.Name != model.DefaultName {
		t.Errorf("defaults not filled: %+v", src)
	}
	if src.TitleField != model.DefaultTitleField || src.DateField != model.DefaultDateField {
		t.Errorf("fields = %q, %q", src.TitleField, src.DateField)
	}
	if src.Color != model.PaletteColor(0) || st.Sources[1].Color != model.PaletteColor(1) {
		t.Errorf("colors = %q, %q", src.Color, st.Sources[1].Color)
	}
	if st.View.Mode != model.ViewMonth || st.View.Anchor.IsZero() {
		t.Errorf("view not kept: %+v", st.View)
	}
	if store.saves != 1 || store.st == nil || store.st.Credential != testCredential {
		t.Error("settings not persisted")
	}
	if n := len(c.Events()); n != 1 {
		t.Errorf("events after apply = %d, want 1", n)
	}
}

func TestClearSettings(t *testing.T) {
	fake := newFakeNotion()
	fake.add(dbA, "a1", "2024-03-01")
	c, store := newController(t, fake, testCredential)
	c.Refresh(context.Background())

	if err := c.ClearSettings(); err != nil {
		t.Fatalf("ClearSettings: %v", err)
	}
	if store.st != nil {
		t.Error("store not cleared")
	}
	st := c.State()
	if st.HasCredential() || len(st.Sources) != 1 {
		t.Errorf("state not reset: %+v", st)
	}
	if len(c.Events()) != 0 {
		t.Error("events not dropped")
	}
}

func TestClearSettings_DropsInflightRefresh(t *testing.T) {
	fake := newFakeNotion()
	fake.add(dbA, "a1", "2024-03-01")
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fake.gate = func(_ context.Context, id string) {
		if id != dbA {
			return
		}
		once.Do(func() {
			close(entered)
			<-release
		})
	}
	c, _ := newController(t, fake, testCredential)

	done := make(chan RefreshReport, 1)
	go func() { done <- c.Refresh(context.Background()) }()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh never reached the remote")
	}
	if err := c.ClearSettings(); err != nil {
		t.Fatalf("ClearSettings: %v", err)
	}
	close(release)

	var report RefreshReport
	select {
	case report = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not finish")
	}
	if !report.Stale {
		t.Error("refresh started before clear was applied")
	}
	if n := len(c.Events()); n != 0 {
		t.Errorf("events = %d after clear, want 0", n)
	}
	if c.State().HasCredential() {
		t.Error("credential restored after clear")
	}
}

func TestNavigation(t *testing.T) {
	fake := newFakeNotion()
	c, _ := newController(t, fake, testCredential)
	today := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	if v := c.View(); !v.Anchor.Equal(today) || v.Mode != model.ViewMonth {
		t.Fatalf("initial view = %+v", v)
	}

	v := c.Navigate(1)
	if want := today.AddDate(0, 0, 30); !v.Anchor.Equal(want) {
		t.Errorf("month next = %v, want %v", v.Anchor, want)
	}

	v = c.SetView(model.ViewWeek)
	if v.Mode != model.ViewWeek || !v.Anchor.Equal(today.AddDate(0, 0, 30)) {
		t.Errorf("SetView moved the anchor: %+v", v)
	}
	v = c.Navigate(-1)
	if want := today.AddDate(0, 0, 23); !v.Anchor.Equal(want) {
		t.Errorf("week prev = %v, want %v", v.Anchor, want)
	}

	c.SetView(model.ViewDay)
	v = c.Navigate(-1)
	if want := today.AddDate(0, 0, 22); !v.Anchor.Equal(want) {
		t.Errorf("day prev = %v, want %v", v.Anchor, want)
	}

	v = c.GoToday()
	if !v.Anchor.Equal(today) || v.Mode != model.ViewDay {
		t.Errorf("GoToday = %+v", v)
	}
}

func TestGrid_UsesCurrentView(t *testing.T) {
	fake := newFakeNotion()
	fake.add(dbA, "a1", "2024-03-05")
	c, _ := newController(t, fake, testCredential)
	c.Refresh(context.Background())

	cells := c.Grid()
	if len(cells) != 35 {
		t.Fatalf("cells = %d, want 35", len(cells))
	}
	var found bool
	for _, cell := range cells {
		if cell.Today {
			found = true
			if len(cell.Events) != 1 {
				t.Errorf("today events = %d", len(cell.Events))
			}
		}
	}
	if !found {
		t.Error("no today cell")
	}

	day := c.GridFor(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), model.ViewDay)
	if len(day) != 1 || len(day[0].Events) != 1 {
		t.Errorf("day grid = %+v", day)
	}
}
