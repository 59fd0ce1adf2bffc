package console

import (
	"context"
	"io"
	"strconv"

	"github.com/oshokin/secpi-console/internal/alarmdata"
)

// AlarmData prints the folders of captured alarm data.
func (s *Session) AlarmData(ctx context.Context) error {
	b, err := alarmdata.New(s.gateway, s.center)
	if err != nil {
		return err
	}

	if err = b.FetchFolders(ctx); err != nil {
		return err
	}

	folders := b.Folders()
	rows := make([][]string, 0, len(folders))

	for _, f := range folders {
		rows = append(rows, []string{f.Name, f.MTime, f.HSize, strconv.Itoa(len(f.Files))})
	}

	s.printer.Table([]string{"FOLDER", "MODIFIED", "SIZE", "FILES"}, rows)

	return nil
}

// AlarmFiles prints the files of one alarm folder.
func (s *Session) AlarmFiles(ctx context.Context, folder string) error {
	b, err := alarmdata.New(s.gateway, s.center)
	if err != nil {
		return err
	}

	if err = b.FetchFiles(ctx, folder); err != nil {
		return err
	}

	s.printFiles(b.Files())

	return nil
}

// ExtractAlarmFile unpacks an archive of folder and prints the folder again.
func (s *Session) ExtractAlarmFile(ctx context.Context, folder, name string) error {
	b, err := alarmdata.New(s.gateway, s.center)
	if err != nil {
		return err
	}

	if err = b.Extract(ctx, folder, name); err != nil {
		return err
	}

	s.printFiles(b.Files())

	return nil
}

// DownloadAlarmFile copies one alarm file into w. Files are always fetched
// from api_url over HTTP, whatever the configured transport.
func (s *Session) DownloadAlarmFile(ctx context.Context, folder, name string, w io.Writer) (int64, error) {
	return alarmdata.Download(ctx, s.httpClient, s.settings.APIURL, folder, name, w)
}

func (s *Session) printFiles(files []alarmdata.File) {
	rows := make([][]string, 0, len(files))

	for _, f := range files {
		kind := "file"
		if f.Archive {
			kind = "archive"
		}

		rows = append(rows, []string{f.Name, f.MTime, f.HSize, kind})
	}

	s.printer.Table([]string{"NAME", "MODIFIED", "SIZE", "KIND"}, rows)
}
