package mockapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oshokin/secpi-console/internal/crud"
	"github.com/oshokin/secpi-console/internal/domain/entity"
	"github.com/oshokin/secpi-console/internal/flash"
	"github.com/oshokin/secpi-console/internal/gateway"
)

// startHTTP serves a fresh service through the real router.
func startHTTP(t *testing.T) (*httptest.Server, *service) {
	t.Helper()

	svc, _ := newTestService(t)

	srv := httptest.NewServer(newRouter(svc, prometheus.NewRegistry()))
	t.Cleanup(srv.Close)

	return srv, svc
}

func newHTTPGateway(t *testing.T, srv *httptest.Server) (*gateway.Gateway, *flash.Center) {
	t.Helper()

	center := flash.NewCenter(flash.WithLogger(zap.NewNop().Sugar()))

	gw, err := gateway.New(gateway.NewHTTPTransport(srv.URL, srv.Client()), center)
	require.NoError(t, err)

	return gw, center
}

func post(t *testing.T, srv *httptest.Server, path, body string) (int, string) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(data)
}

// TestHTTP_Envelope answers every endpoint with the status envelope.
func TestHTTP_Envelope(t *testing.T) {
	t.Parallel()

	srv, _ := startHTTP(t)

	code, body := post(t, srv, "/zones/add", `{"name":"hall"}`)
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"status":"success","message":"Added zone with id 1!"}`, body)

	code, body = post(t, srv, "/zones/list", ``)
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"status":"success","data":[{"id":1,"name":"hall"}]}`, body)

	code, body = post(t, srv, "/zones/delete", `{"id":5}`)
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"status":"error","message":"ID not found!"}`, body)
}

// TestHTTP_Rejections answers unknown paths with 404 and bad bodies with 400.
func TestHTTP_Rejections(t *testing.T) {
	t.Parallel()

	srv, _ := startHTTP(t)

	code, _ := post(t, srv, "/zones/frobnicate", `{}`)
	require.Equal(t, http.StatusNotFound, code)

	code, _ = post(t, srv, "/nowhere", `{}`)
	require.Equal(t, http.StatusNotFound, code)

	code, _ = post(t, srv, "/zones/list", `[1,2]`)
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = post(t, srv, "/zones/list", `{`)
	require.Equal(t, http.StatusBadRequest, code)
}

// TestHTTP_Metrics exposes the request counter.
func TestHTTP_Metrics(t *testing.T) {
	t.Parallel()

	srv, _ := startHTTP(t)

	post(t, srv, "/zones/list", `{}`)

	resp, err := srv.Client().Get(srv.URL + MetricsPath)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(data), `secpi_mockapi_requests_total{code="200",route="/{collection}/{operation}"} 1`)
}

// TestHTTP_GatewayTransportFailure flashes the status of an unknown endpoint.
func TestHTTP_GatewayTransportFailure(t *testing.T) {
	t.Parallel()

	srv, _ := startHTTP(t)
	gw, center := newHTTPGateway(t, srv)

	_, err := gw.Call(context.Background(), "/zones/frobnicate", nil)
	require.ErrorIs(t, err, gateway.ErrTransport)

	msgs := center.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, flash.TransportFailureText(http.StatusNotFound), msgs[0].Text)
}

// TestHTTP_CrudRoundTrip drives the console workflows against the real router.
func TestHTTP_CrudRoundTrip(t *testing.T) {
	t.Parallel()

	srv, _ := startHTTP(t)
	gw, center := newHTTPGateway(t, srv)
	ctx := context.Background()

	zones, err := crud.New(entity.Zone, gw, center)
	require.NoError(t, err)
	require.NoError(t, zones.Load(ctx))
	require.Zero(t, zones.Store().Len())

	require.NoError(t, zones.ShowNew(ctx))
	require.NoError(t, zones.SetField("name", "hall"))
	require.NoError(t, zones.SaveEdit(ctx))
	require.Equal(t, 1, zones.Store().Len())

	require.NoError(t, zones.Copy(ctx, 0))
	require.NoError(t, zones.SetField("name", "attic"))
	require.NoError(t, zones.SaveEdit(ctx))
	require.Equal(t, 2, zones.Store().Len())

	blob, err := zones.ExportTable(ctx)
	require.NoError(t, err)

	batch, err := zones.Import(ctx, blob)
	require.NoError(t, err)
	result, err := batch.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.Succeeded)
	require.Equal(t, 4, zones.Store().Len())

	require.NoError(t, zones.ShowDelete(ctx, 0))
	require.NoError(t, zones.Delete(ctx))
	require.Equal(t, 3, zones.Store().Len())

	texts := make([]string, 0, center.Len())
	for _, m := range center.Messages() {
		texts = append(texts, m.Text)
	}

	require.Contains(t, texts, "Added zone with id 1!")
	require.Contains(t, texts, "Deleted zone with id 1!")
}
