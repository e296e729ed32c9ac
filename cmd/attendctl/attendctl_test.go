package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestJobsRun(t *testing.T) {
	var gotPath, gotSecret string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSecret = r.Header.Get(cronSecretHeader)
		_, _ = w.Write([]byte(`{"ok":true,"autoLoggedOutCount":2}`))
	}))
	defer srv.Close()

	out, err := execute(t, "jobs", "run", "auto-logout", "--server", srv.URL, "--secret", "s1")
	require.NoError(t, err)
	assert.Equal(t, "/internal/cron/auto-logout", gotPath)
	assert.Equal(t, "s1", gotSecret)
	assert.Contains(t, out, `"autoLoggedOutCount": 2`)
}

func TestJobsRunErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	_, err := execute(t, "jobs", "run", "nap-time", "--server", srv.URL, "--secret", "s1")
	assert.ErrorContains(t, err, "unknown job")

	_, err = execute(t, "jobs", "run", "daily-aggregate", "--server", srv.URL, "--secret", "bad")
	assert.ErrorContains(t, err, "401")

	t.Setenv("INTERNAL_CRON_SECRET", "")
	_, err = execute(t, "metrics", "--server", srv.URL)
	assert.ErrorContains(t, err, "no cron secret")
}

func TestSecretFromEnv(t *testing.T) {
	var gotSecret string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get(cronSecretHeader)
		_, _ = w.Write([]byte(`{"ok":true,"metrics":{}}`))
	}))
	defer srv.Close()

	t.Setenv("ATTENDCTL_SECRET", "from-env")
	_, err := execute(t, "metrics", "--server", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "from-env", gotSecret)
}

func TestKeysGenerate(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "priv.pem")
	pub := filepath.Join(dir, "pub.pem")

	_, err := execute(t, "keys", "generate", "--private", priv, "--public", pub)
	require.NoError(t, err)
	for _, p := range []string{priv, pub} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.NotZero(t, info.Size())
	}
}

func TestJobsList(t *testing.T) {
	out, err := execute(t, "jobs", "list")
	require.NoError(t, err)
	assert.Equal(t, "auto-logout\ndaily-aggregate\nstale-heartbeats\n", out)
}
