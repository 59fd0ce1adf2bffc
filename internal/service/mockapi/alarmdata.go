package mockapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"

	"github.com/oshokin/secpi-console/internal/alarmdata"
	console "github.com/oshokin/secpi-console/internal/api/grpc/console"
	"github.com/oshokin/secpi-console/internal/logger"
)

// maxExtractedBytes bounds one file unpacked from an archive.
const maxExtractedBytes = 64 << 20

// Alarm data reply messages.
const (
	msgNoAlarmData     = "Alarm data is not available!"
	msgFolderNotFound  = "Folder not found!"
	msgFileNotFound    = "File not found!"
	msgInvalidName     = "Invalid name!"
	msgNotArchive      = "Not an archive!"
	msgAlarmDataFailed = "Error reading alarm data!"
)

var (
	errFolderNotFound  = errors.New("alarm folder not found")
	errFileNotFound    = errors.New("alarm file not found")
	errNotArchive      = errors.New("not an archive")
	errEntryTooLarge   = errors.New("archive entry too large")
	errMissingFileName = errors.New("name must be folder/file")
)

// alarmStore reads the alarm folders below root.
type alarmStore struct {
	root string
}

// list returns one folder per directory below root; a missing root is empty.
func (a *alarmStore) list() ([]alarmdata.Folder, error) {
	entries, err := os.ReadDir(a.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []alarmdata.Folder{}, nil
	}

	if err != nil {
		return nil, err
	}

	folders := make([]alarmdata.Folder, 0, len(entries))

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		info, err := e.Info()
		if err != nil {
			return nil, err
		}

		dir := filepath.Join(a.root, e.Name())

		files, size, err := readFolder(dir)
		if err != nil {
			return nil, err
		}

		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, f.Name)
		}

		folders = append(folders, alarmdata.Folder{
			Name:  e.Name(),
			Path:  dir,
			MTime: info.ModTime().Format(alarmdata.TimeLayout),
			Size:  size,
			HSize: humanize.IBytes(uint64(size)), //nolint:gosec // Sizes are never negative.
			Files: names,
		})
	}

	return folders, nil
}

// folder resolves the directory of a folder name.
func (a *alarmStore) folder(name string) (string, error) {
	if err := alarmdata.ValidName(name); err != nil {
		return "", err
	}

	dir := filepath.Join(a.root, name)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", errFolderNotFound, name)
	}

	return dir, nil
}

// files lists the regular files of a folder.
func (a *alarmStore) files(folder string) ([]alarmdata.File, error) {
	dir, err := a.folder(folder)
	if err != nil {
		return nil, err
	}

	files, _, err := readFolder(dir)

	return files, err
}

// file resolves "folder/name" to the path of a regular file.
func (a *alarmStore) file(name string) (string, error) {
	folder, base, ok := strings.Cut(name, "/")
	if !ok {
		return "", errMissingFileName
	}

	dir, err := a.folder(folder)
	if err != nil {
		return "", err
	}

	if err = alarmdata.ValidName(base); err != nil {
		return "", err
	}

	target := filepath.Join(dir, base)

	info, err := os.Stat(target)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", errFileNotFound, name)
	}

	return target, nil
}

// extract unpacks the archive name of folder next to it and returns the
// number of files written. Entries are flattened to their base name.
func (a *alarmStore) extract(folder, name string) (int, error) {
	dir, err := a.folder(folder)
	if err != nil {
		return 0, err
	}

	if err = alarmdata.ValidName(name); err != nil {
		return 0, err
	}

	if !alarmdata.IsArchive(name) {
		return 0, fmt.Errorf("%w: %s", errNotArchive, name)
	}

	r, err := zip.OpenReader(filepath.Join(dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("%w: %s/%s", errFileNotFound, folder, name)
	}

	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", errNotArchive, name, err)
	}

	defer func() {
		_ = r.Close()
	}()

	count := 0

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}

		base := path.Base(f.Name)
		if alarmdata.ValidName(base) != nil || base == name {
			continue
		}

		if err = extractFile(f, filepath.Join(dir, base)); err != nil {
			return count, fmt.Errorf("extract %s: %w", f.Name, err)
		}

		count++
	}

	return count, nil
}

func extractFile(f *zip.File, target string) (err error) {
	rc, err := f.Open()
	if err != nil {
		return err
	}

	defer func() {
		_ = rc.Close()
	}()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) //nolint:gosec // Target is a validated base name.
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, out.Close())
	}()

	n, err := io.CopyN(out, rc, maxExtractedBytes+1)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	if n > maxExtractedBytes {
		return errEntryTooLarge
	}

	return nil
}

// readFolder lists the regular files of dir and sums their sizes.
func readFolder(dir string) ([]alarmdata.File, int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, err
	}

	files := make([]alarmdata.File, 0, len(entries))

	var total int64

	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}

		info, err := e.Info()
		if err != nil {
			return nil, 0, err
		}

		total += info.Size()
		files = append(files, alarmdata.File{
			Name:    e.Name(),
			MTime:   info.ModTime().Format(alarmdata.TimeLayout),
			Size:    info.Size(),
			HSize:   humanize.IBytes(uint64(info.Size())), //nolint:gosec // Sizes are never negative.
			Archive: alarmdata.IsArchive(e.Name()),
		})
	}

	return files, total, nil
}

// alarmDataFailure maps a store error to its reply.
func alarmDataFailure(ctx context.Context, err error) console.Reply {
	switch {
	case errors.Is(err, alarmdata.ErrInvalidName):
		return failure(msgInvalidName)
	case errors.Is(err, errFolderNotFound):
		return failure(msgFolderNotFound)
	case errors.Is(err, errFileNotFound):
		return failure(msgFileNotFound)
	case errors.Is(err, errNotArchive):
		return failure(msgNotArchive)
	default:
		logger.ErrorKV(ctx, "Failed to read alarm data", "error", err)

		return failure(msgAlarmDataFailed)
	}
}

func (s *service) listAlarmData(ctx context.Context, _ map[string]any) console.Reply {
	if s.alarms == nil {
		return failure(msgNoAlarmData)
	}

	folders, err := s.alarms.list()
	if err != nil {
		return alarmDataFailure(ctx, err)
	}

	return success(folders, "")
}

func (s *service) listAlarmFiles(ctx context.Context, payload map[string]any) console.Reply {
	if s.alarms == nil {
		return failure(msgNoAlarmData)
	}

	folder, _ := payload["folder"].(string)

	files, err := s.alarms.files(folder)
	if err != nil {
		return alarmDataFailure(ctx, err)
	}

	return success(files, "")
}

func (s *service) extractAlarmFile(ctx context.Context, payload map[string]any) console.Reply {
	if s.alarms == nil {
		return failure(msgNoAlarmData)
	}

	folder, _ := payload["dir"].(string)
	name, _ := payload["name"].(string)

	count, err := s.alarms.extract(folder, name)
	if err != nil {
		return alarmDataFailure(ctx, err)
	}

	logger.InfoKV(ctx, "Archive extracted", "folder", folder, "name", name, "files", count)

	return success(nil, fmt.Sprintf("Extracted %d files from %s!", count, name))
}

// serveAlarmFile streams one alarm file named by the "name" query parameter.
func (s *service) serveAlarmFile(w http.ResponseWriter, r *http.Request) {
	if s.alarms == nil {
		http.NotFound(w, r)

		return
	}

	target, err := s.alarms.file(r.URL.Query().Get("name"))
	if err != nil {
		logger.DebugKV(r.Context(), "Alarm file not served", "error", err)
		http.NotFound(w, r)

		return
	}

	http.ServeFile(w, r, target)
}
