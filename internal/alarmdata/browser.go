package alarmdata

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/oshokin/secpi-console/internal/flash"
	"github.com/oshokin/secpi-console/internal/gateway"
	"github.com/oshokin/secpi-console/internal/logger"
)

var (
	// ErrGatewayRequired is returned when no gateway is provided.
	ErrGatewayRequired = errors.New("gateway must be provided")
	// ErrCenterRequired is returned when no notification center is provided.
	ErrCenterRequired = errors.New("notification center must be provided")
	// ErrIndexOutOfRange is returned when a folder index is not in the list.
	ErrIndexOutOfRange = errors.New("folder index out of range")
)

// Notifier is the part of the notification center the browser posts to.
type Notifier interface {
	Post(text string, severity flash.Severity, d time.Duration) flash.ID
}

// Browser holds the alarm folders and the files of the open one.
type Browser struct {
	caller gateway.Caller
	center Notifier

	mu      sync.RWMutex
	folders []Folder
	current string
	files   []File
}

// New creates a browser; both collaborators are required.
func New(caller gateway.Caller, center Notifier) (*Browser, error) {
	if caller == nil {
		return nil, ErrGatewayRequired
	}

	if center == nil {
		return nil, ErrCenterRequired
	}

	return &Browser{caller: caller, center: center}, nil
}

// FetchFolders pulls the folder list. On failure the previous list is kept.
func (b *Browser) FetchFolders(ctx context.Context) error {
	res, err := b.caller.Call(ctx, ListPath, map[string]any{})
	if err != nil {
		return fmt.Errorf("list alarm data: %w", err)
	}

	folders := []Folder{}
	if err = res.Decode(&folders); err != nil {
		return err
	}

	b.mu.Lock()
	b.folders = folders
	b.mu.Unlock()

	logger.DebugKV(ctx, "Alarm data listed", "folders", len(folders))

	return nil
}

// Folders returns a copy of the folder list.
func (b *Browser) Folders() []Folder {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return slices.Clone(b.folders)
}

// ShowFolder opens the folder at index and fetches its files.
func (b *Browser) ShowFolder(ctx context.Context, index int) error {
	b.mu.RLock()
	if index < 0 || index >= len(b.folders) {
		b.mu.RUnlock()

		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	name := b.folders[index].Name
	b.mu.RUnlock()

	return b.FetchFiles(ctx, name)
}

// HideFolder closes the open folder.
func (b *Browser) HideFolder() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = ""
	b.files = nil
}

// Current returns the name of the open folder, if any.
func (b *Browser) Current() (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.current, b.current != ""
}

// FetchFiles opens folder and pulls its files.
func (b *Browser) FetchFiles(ctx context.Context, folder string) error {
	if err := ValidName(folder); err != nil {
		return err
	}

	res, err := b.caller.Call(ctx, ListFilesPath, map[string]any{"folder": folder})
	if err != nil {
		return fmt.Errorf("list files of %s: %w", folder, err)
	}

	files := []File{}
	if err = res.Decode(&files); err != nil {
		return err
	}

	b.mu.Lock()
	b.current = folder
	b.files = files
	b.mu.Unlock()

	return nil
}

// Files returns a copy of the files of the open folder.
func (b *Browser) Files() []File {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return slices.Clone(b.files)
}

// Extract unpacks the archive name inside folder, flashes the server message
// and re-pulls the files of folder.
func (b *Browser) Extract(ctx context.Context, folder, name string) error {
	if err := errors.Join(ValidName(folder), ValidName(name)); err != nil {
		return err
	}

	res, err := b.caller.Call(ctx, ExtractPath, map[string]any{"dir": folder, "name": name})
	if err != nil {
		return fmt.Errorf("extract %s/%s: %w", folder, name, err)
	}

	b.center.Post(res.Message, flash.SeverityInfo, 0)
	logger.InfoKV(ctx, "Alarm data extracted", "folder", folder, "name", name)

	return b.FetchFiles(ctx, folder)
}
