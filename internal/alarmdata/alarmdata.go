// Package alarmdata browses the files captured for each alarm: one folder per
// alarm, holding pictures and archives a worker uploaded, which can be listed,
// unpacked on the appliance and downloaded.
package alarmdata

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Endpoints of the alarm data API. Download is a plain HTTP GET taking the
// file as "name=<folder>/<file>"; the others are envelope calls.
const (
	ListPath      = "/alarmdata/list"
	ListFilesPath = "/alarmdata/listFiles"
	ExtractPath   = "/alarmdata/extract"
	DownloadPath  = "/alarmdata/download"
)

// TimeLayout formats modification times, e.g. "24.12.2025 18:30:00".
const TimeLayout = "02.01.2006 15:04:05"

// ErrInvalidName is returned for folder or file names that are not a single path element.
var ErrInvalidName = errors.New("invalid alarm data name")

// Folder is the data captured for one alarm.
type Folder struct {
	Name  string   `json:"name"`
	Path  string   `json:"path"`
	MTime string   `json:"mtime"`
	Size  int64    `json:"size"`
	HSize string   `json:"hsize"`
	Files []string `json:"files"`
}

// File is one entry of a folder.
type File struct {
	Name    string `json:"name"`
	MTime   string `json:"mtime"`
	Size    int64  `json:"size"`
	HSize   string `json:"hsize"`
	Archive bool   `json:"archive"`
}

// ValidName checks that name is a single path element, so it cannot leave its folder.
func ValidName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return nil
}

// IsArchive reports whether name can be extracted.
func IsArchive(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".zip")
}
