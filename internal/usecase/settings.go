package usecase

import (
	"sync"

	"github.com/eliteGoblin/focusd/tc_mon/internal/domain"
)

// SettingsSource yields the effective settings of a folder.
// *config.Config implements it.
type SettingsSource interface {
	FolderSettings(folder domain.Folder) domain.Settings
}

// SettingsHolder is a SettingsSource that can be swapped on reload.
type SettingsHolder struct {
	mu  sync.RWMutex
	src SettingsSource
}

// NewSettingsHolder wraps src.
func NewSettingsHolder(src SettingsSource) *SettingsHolder {
	return &SettingsHolder{src: src}
}

// FolderSettings delegates to the current source.
func (h *SettingsHolder) FolderSettings(folder domain.Folder) domain.Settings {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.src.FolderSettings(folder)
}

// Swap installs src and returns the previous source.
func (h *SettingsHolder) Swap(src SettingsSource) SettingsSource {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.src
	h.src = src
	return prev
}
