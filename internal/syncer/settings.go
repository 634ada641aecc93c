package syncer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"notioncal/internal/grid"
	"notioncal/internal/model"
)

// ApplySettings validates, persists and activates a new AppState, then
// refreshes. Validation happens before anything is saved or sent; on
// failure the current state is left as it was.
func (c *Controller) ApplySettings(ctx context.Context, next model.AppState) error {
	next = next.Clone()
	next.Credential = strings.TrimSpace(next.Credential)
	if next.Credential != "" && !model.ValidCredential(next.Credential) {
		return model.ErrInvalidCredential
	}

	for i := range next.Sources {
		src := &next.Sources[i]
		src.CollectionID = model.CleanCollectionID(src.CollectionID)
		if src.CollectionID != "" && !model.ValidCollectionID(src.CollectionID) {
			return fmt.Errorf("%w: %q", model.ErrInvalidCollectionID, src.Name)
		}
		if src.ID == "" {
			src.ID = uuid.NewString()
		}
		if src.Name == "" {
			src.Name = model.DefaultName
		}
		if src.TitleField == "" {
			src.TitleField = model.DefaultTitleField
		}
		if src.DateField == "" {
			src.DateField = model.DefaultDateField
		}
		if src.Color == "" {
			src.Color = model.PaletteColor(i)
		}
	}

	current := c.State()
	if next.View.Mode == "" {
		next.View.Mode = current.View.Mode
	}
	if next.View.Anchor.IsZero() {
		next.View.Anchor = current.View.Anchor
	}

	if err := c.store.Save(&next); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	c.mu.Lock()
	c.state = next
	c.applied = c.issued
	c.mu.Unlock()

	c.log.Info("settings applied", "sources", len(next.Sources), "credential", next.HasCredential())
	c.Refresh(ctx)
	return nil
}

// SaveState persists the current AppState, including the view.
func (c *Controller) SaveState() error {
	st := c.State()
	if err := c.store.Save(&st); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// ClearSettings wipes persisted state and resets to defaults.
func (c *Controller) ClearSettings() error {
	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("clear state: %w", err)
	}
	c.mu.Lock()
	c.state = model.DefaultAppState(c.Today())
	c.events = nil
	c.errMsg = ""
	// Refreshes still running against the old settings must not land.
	c.applied = c.issued
	c.report = RefreshReport{}
	c.mu.Unlock()
	c.log.Info("settings cleared")
	return nil
}

// View returns the current view state.
func (c *Controller) View() model.ViewState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.View
}

// SetView switches the layout, keeping the anchor.
func (c *Controller) SetView(mode model.ViewMode) model.ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.View.Mode = mode
	return c.state.View
}

// Navigate moves the anchor dir steps of the current mode.
func (c *Controller) Navigate(dir int) model.ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.View.Anchor = grid.Shift(c.state.View.Anchor, c.state.View.Mode, dir)
	return c.state.View
}

// GoToday moves the anchor to today.
func (c *Controller) GoToday() model.ViewState {
	today := c.Today()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.View.Anchor = today
	return c.state.View
}
