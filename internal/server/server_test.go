package server

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/tgifai/runbox/internal/compiler"
	"github.com/tgifai/runbox/internal/config"
	"github.com/tgifai/runbox/internal/pkg/logs"
	"github.com/tgifai/runbox/internal/process"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *promclient.Registry) {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Workspace: t.TempDir()},
	}
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	reg := promclient.NewRegistry()
	s, err := New(cfg,
		WithLogger(logs.Nop()),
		WithRegistry(reg),
		WithMetricsServer(false),
	)
	require.NoError(t, err)
	return s, reg
}

func postExecute(s *Server, body string, headers ...ut.Header) *ut.ResponseRecorder {
	headers = append(headers, ut.Header{Key: "Content-Type", Value: "application/json"})
	return ut.PerformRequest(s.Engine().Engine, consts.MethodPost, executePath,
		&ut.Body{Body: bytes.NewBufferString(body), Len: len(body)}, headers...)
}

func decodeReport(t *testing.T, w *ut.ResponseRecorder) compiler.Report {
	t.Helper()
	var report compiler.Report
	require.NoError(t, sonic.Unmarshal(w.Result().Body(), &report))
	return report
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("execute tests use sh commands")
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := ut.PerformRequest(s.Engine().Engine, consts.MethodGet, healthPath, nil)
	resp := w.Result()
	require.Equal(t, consts.StatusOK, resp.StatusCode())
	require.JSONEq(t, `{"status":"ok"}`, string(resp.Body()))
	require.NotEmpty(t, string(resp.Header.Peek("X-Request-Id")))
}

func TestExecute_Run(t *testing.T) {
	skipOnWindows(t)
	s, reg := newTestServer(t, nil)

	w := postExecute(s, `{"run":"echo {word} {n}","variables":{"word":"hi","n":2.5}}`)
	require.Equal(t, consts.StatusOK, w.Result().StatusCode())

	report := decodeReport(t, w)
	require.NotEmpty(t, report.ID)
	require.False(t, report.ShortCircuited)
	require.NotNil(t, report.Run)
	require.Equal(t, process.TypeSuccess, report.Run.Type)
	require.Equal(t, "hi 2.5", report.Run.Data)

	require.Eventually(t, func() bool {
		families, err := reg.Gather()
		if err != nil {
			return false
		}
		for _, f := range families {
			if f.GetName() == "runbox_executions_total" {
				return true
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)
}

func TestExecute_CompileFailureIsReported(t *testing.T) {
	skipOnWindows(t)
	s, _ := newTestServer(t, nil)

	w := postExecute(s, `{"compile":"echo nope >&2; exit 1","run":"echo never"}`)
	require.Equal(t, consts.StatusOK, w.Result().StatusCode())

	report := decodeReport(t, w)
	require.True(t, report.ShortCircuited)
	require.Nil(t, report.Run)
	require.Equal(t, process.TypeError, report.Compile.Type)
	require.Equal(t, "nope", report.Compile.Data)
}

func TestExecute_InputsAndDirectory(t *testing.T) {
	skipOnWindows(t)
	s, _ := newTestServer(t, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(s.server.Workspace, "job"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.server.Workspace, "job", "sum.sh"),
		[]byte("read a\nread b\necho $((a + b))\n"), 0o644))

	w := postExecute(s, `{"directory":"job","run":"sh sum.sh","inputs":["4\n","5\n"],"timeout_ms":5000}`)
	require.Equal(t, consts.StatusOK, w.Result().StatusCode())
	require.Equal(t, "9", decodeReport(t, w).Run.Data)
}

func TestExecute_TimeoutReported(t *testing.T) {
	skipOnWindows(t)
	s, _ := newTestServer(t, nil)

	w := postExecute(s, `{"run":"sleep 30","timeout_ms":100}`)
	require.Equal(t, consts.StatusOK, w.Result().StatusCode())

	report := decodeReport(t, w)
	require.Equal(t, process.TypeTimedOut, report.Run.Type)
	require.Nil(t, report.Run.Code)
	require.Contains(t, string(w.Result().Body()), `"code":null`)
}

func TestExecute_BadRequests(t *testing.T) {
	s, _ := newTestServer(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(s.server.Workspace, "file.txt"), nil, 0o644))

	cases := map[string]string{
		"malformed body":      `{"run":`,
		"missing run":         `{"compile":"true"}`,
		"negative timeout":    `{"run":"true","timeout_ms":-1}`,
		"unsupported var":     `{"run":"true","variables":{"x":[1,2]}}`,
		"escaping directory":  `{"run":"true","directory":"../.."}`,
		"absolute outside":    `{"run":"true","directory":"/"}`,
		"missing directory":   `{"run":"true","directory":"nope"}`,
		"directory is a file": `{"run":"true","directory":"file.txt"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := postExecute(s, body)
			require.Equal(t, consts.StatusBadRequest, w.Result().StatusCode())
		})
	}
}

func TestExecute_Auth(t *testing.T) {
	skipOnWindows(t)
	s, _ := newTestServer(t, func(c *config.Config) { c.Server.APIKey = "s3cret" })

	w := postExecute(s, `{"run":"echo ok"}`)
	require.Equal(t, consts.StatusUnauthorized, w.Result().StatusCode())

	w = postExecute(s, `{"run":"echo ok"}`, ut.Header{Key: "Authorization", Value: "Bearer wrong"})
	require.Equal(t, consts.StatusUnauthorized, w.Result().StatusCode())

	w = postExecute(s, `{"run":"echo ok"}`, ut.Header{Key: "Authorization", Value: "Bearer s3cret"})
	require.Equal(t, consts.StatusOK, w.Result().StatusCode())
	require.Equal(t, "ok", decodeReport(t, w).Run.Data)
}

func TestExecute_ConcurrencyLimit(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) { c.Server.MaxConcurrent = 1 })

	require.True(t, s.tryAcquire())
	w := postExecute(s, `{"run":"echo busy"}`)
	require.Equal(t, consts.StatusTooManyRequests, w.Result().StatusCode())

	s.release()
	require.True(t, s.tryAcquire())
	s.release()
}

func TestExecute_SpawnFailure(t *testing.T) {
	skipOnWindows(t)
	s, _ := newTestServer(t, func(c *config.Config) { c.Runner.Shell = "/definitely/not/a/shell" })

	w := postExecute(s, `{"run":"echo hi"}`)
	require.Equal(t, consts.StatusInternalServerError, w.Result().StatusCode())
}

func TestIsPathWithin(t *testing.T) {
	root := t.TempDir()

	cases := []struct {
		path string
		want bool
	}{
		{root, true},
		{filepath.Join(root, "a", "b"), true},
		{filepath.Join(root, "a", "..", "b"), true},
		{filepath.Join(root, ".."), false},
		{filepath.Join(root, "..", filepath.Base(root)+"-sibling"), false},
	}
	for _, tc := range cases {
		got, err := isPathWithin(tc.path, root)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, tc.path)
	}
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}
