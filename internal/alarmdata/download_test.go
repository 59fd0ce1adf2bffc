package alarmdata_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/secpi-console/internal/alarmdata"
)

func TestDownload(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != alarmdata.DownloadPath || r.URL.Query().Get("name") != "20250101_120000/cam_1.jpg" {
			http.NotFound(w, r)

			return
		}

		_, _ = w.Write([]byte("jpeg bytes"))
	}))
	t.Cleanup(srv.Close)

	var buf bytes.Buffer

	n, err := alarmdata.Download(context.Background(), srv.Client(), srv.URL+"/", "20250101_120000", "cam_1.jpg", &buf)
	require.NoError(t, err)
	require.Equal(t, int64(len("jpeg bytes")), n)
	require.Equal(t, "jpeg bytes", buf.String())

	_, err = alarmdata.Download(context.Background(), srv.Client(), srv.URL, "20250101_120000", "missing.jpg", &buf)
	require.ErrorIs(t, err, alarmdata.ErrDownload)

	_, err = alarmdata.Download(context.Background(), srv.Client(), srv.URL, "..", "cam_1.jpg", &buf)
	require.ErrorIs(t, err, alarmdata.ErrInvalidName)
}
