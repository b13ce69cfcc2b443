package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"dvr/internal/config"
	"dvr/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func xtreamServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/player_api.php" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("username") != "alice" || r.URL.Query().Get("password") != "s3cret" {
			_, _ = w.Write([]byte(`{"user_info":{"auth":0}}`))
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckXtreamSource_OK(t *testing.T) {
	srv := xtreamServer(t, `{"user_info":{"auth":1,"status":"Active","max_connections":"2"}}`)
	result := CheckXtreamSource(context.Background(), config.Source{ID: "xt", BaseURL: srv.URL + "/", Username: "alice", Password: "s3cret"})
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result.Detail != "Reachable (max connections 2)" {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckXtreamSource_BadCredentials(t *testing.T) {
	srv := xtreamServer(t, `{"user_info":{"auth":1}}`)
	result := CheckXtreamSource(context.Background(), config.Source{ID: "xt", BaseURL: srv.URL, Username: "alice", Password: "wrong"})
	if result.Passed {
		t.Fatal("expected failure for bad credentials")
	}
}

func TestCheckXtreamSource_ExpiredAccount(t *testing.T) {
	srv := xtreamServer(t, `{"user_info":{"auth":1,"status":"Expired"}}`)
	result := CheckXtreamSource(context.Background(), config.Source{ID: "xt", BaseURL: srv.URL, Username: "alice", Password: "s3cret"})
	if result.Passed || result.Detail != "account expired" {
		t.Fatalf("expected expired account failure, got %+v", result)
	}
}

func TestCheckNtfy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/health" {
			_, _ = w.Write([]byte(`{"healthy":true}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if result := CheckNtfy(context.Background(), srv.URL+"/dvr-alerts"); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckNtfy(context.Background(), "not a url"); result.Passed {
		t.Fatal("expected failure for invalid topic url")
	}
}

func TestRunAllCoversConfiguredChecks(t *testing.T) {
	srv := xtreamServer(t, `{"user_info":{"auth":1}}`)
	cfg := testsupport.NewConfig(t,
		testsupport.WithStubbedBinaries("ffmpeg"),
		testsupport.WithSource(config.Source{ID: "xt", Kind: config.SourceXtream, BaseURL: srv.URL, Username: "alice", Password: "s3cret"}),
		testsupport.WithSource(config.Source{ID: "m", Kind: config.SourceM3U}),
	)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 checks, got %d: %+v", len(results), results)
	}
	for _, r := range results {
		if !r.Passed {
			t.Fatalf("check %s failed: %s", r.Name, r.Detail)
		}
	}
}
