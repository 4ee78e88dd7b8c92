package metrics

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drand/vmauth/common/testlogger"
	"github.com/drand/vmauth/internal/metrics/pprof"
)

func TestMetricsEndpoints(t *testing.T) {
	l := Start(testlogger.New(t), "127.0.0.1:0", nil)
	require.NotNil(t, l)
	defer l.Close()

	RequestsSigned.WithLabelValues("token.vm", "transfer").Inc()
	Authorizations.WithLabelValues(ResultOK).Inc()

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", l.Addr()))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Contains(t, string(body), "go_goroutines")
	require.Contains(t, string(body), `requests_signed{function="transfer",program="token.vm"}`)

	resp, err = http.Get(fmt.Sprintf("http://%s/metrics/auth", l.Addr()))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Contains(t, string(body), `authorizations{result="ok"}`)
	require.NotContains(t, string(body), "go_goroutines")

	resp, err = http.Get(fmt.Sprintf("http://%s/debug/gc", l.Addr()))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestMetricsProfile(t *testing.T) {
	l := Start(testlogger.New(t), "127.0.0.1:0", pprof.WithProfile())
	require.NotNil(t, l)
	defer l.Close()

	resp, err := http.Get(fmt.Sprintf("http://%s/debug/pprof/", l.Addr()))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}
