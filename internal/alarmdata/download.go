package alarmdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrDownload is returned when the server does not answer a download with 200.
var ErrDownload = errors.New("download failed")

// Download copies the file name of folder from the API at baseURL into w and
// returns the number of bytes written.
func Download(ctx context.Context, client *http.Client, baseURL, folder, name string, w io.Writer) (int64, error) {
	if err := errors.Join(ValidName(folder), ValidName(name)); err != nil {
		return 0, err
	}

	if client == nil {
		client = http.DefaultClient
	}

	target := strings.TrimRight(baseURL, "/") + DownloadPath + "?" +
		url.Values{"name": {folder + "/" + name}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("build download request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s/%s: %w", folder, name, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %s/%s: %s", ErrDownload, folder, name, resp.Status)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download %s/%s: %w", folder, name, err)
	}

	return n, nil
}
