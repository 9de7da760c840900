package fetch

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func buildTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		hdr := &tar.Header{Name: name, Mode: 0o755, Size: int64(len(body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func serve(t *testing.T, payload []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func sha(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func TestFetchDownloadsAndReusesCache(t *testing.T) {
	payload := buildZip(t, map[string]string{"go/bin/go": "binary"})
	srv, hits := serve(t, payload)
	f := New(t.TempDir(), zerolog.Nop())

	spec := Spec{URL: srv.URL + "/dl/go1.24.0.linux-amd64.zip", SHA256: sha(payload)}
	first, err := f.Fetch(context.Background(), spec)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if first.Cached {
		t.Fatal("first fetch reported cached")
	}
	if filepath.Base(first.Path) != "go1.24.0.linux-amd64.zip" {
		t.Fatalf("cache path = %s", first.Path)
	}
	if first.Format != FormatZip {
		t.Fatalf("format = %s", first.Format)
	}

	second, err := f.Fetch(context.Background(), spec)
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if !second.Cached {
		t.Fatal("second fetch should hit the cache")
	}
	if hits.Load() != 1 {
		t.Fatalf("server hits = %d, want 1", hits.Load())
	}
}

func TestFetchIntegrityMismatchLeavesNoFile(t *testing.T) {
	srv, _ := serve(t, []byte("tampered"))
	dir := t.TempDir()
	f := New(dir, zerolog.Nop())

	_, err := f.Fetch(context.Background(), Spec{URL: srv.URL + "/gh.zip", SHA256: sha([]byte("original"))})
	if !errors.Is(err, ErrIntegrityMismatch) {
		t.Fatalf("err = %v, want integrity mismatch", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "gh.zip")); !os.IsNotExist(err) {
		t.Fatalf("cache file left behind: %v", err)
	}
}

func TestFetchHTTPErrorIsDownloadFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := New(t.TempDir(), zerolog.Nop())
	_, err := f.Fetch(context.Background(), Spec{URL: srv.URL + "/missing.zip"})
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("err = %v, want download failed", err)
	}
}

func TestFetchReportsProgress(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 10_000)
	srv, _ := serve(t, payload)
	f := New(t.TempDir(), zerolog.Nop())
	var last int64
	f.Progress = func(done, _ int64) { last = done }

	if _, err := f.Fetch(context.Background(), Spec{URL: srv.URL + "/uv"}); err != nil {
		t.Fatal(err)
	}
	if last != int64(len(payload)) {
		t.Fatalf("progress = %d, want %d", last, len(payload))
	}
}

func TestUnpackZipStripsSingleRoot(t *testing.T) {
	payload := buildZip(t, map[string]string{
		"go/bin/go":       "binary",
		"go/src/fmt/a.go": "package fmt",
	})
	srv, _ := serve(t, payload)
	f := New(t.TempDir(), zerolog.Nop())

	art, err := f.Fetch(context.Background(), Spec{URL: srv.URL + "/go.zip"})
	if err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(t.TempDir(), "lang", "go")
	if err := f.Unpack(context.Background(), art, dest, UnpackOptions{StripSingleRoot: true}); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	got, err := Locate(dest, "**/bin/go{,.exe}")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if got != filepath.Join(dest, "bin", "go") {
		t.Fatalf("Locate = %s", got)
	}
}

func TestUnpackTarGz(t *testing.T) {
	payload := buildTarGz(t, map[string]string{"gh_2.87.3_linux_amd64/bin/gh": "binary"})
	srv, _ := serve(t, payload)
	f := New(t.TempDir(), zerolog.Nop())

	art, err := f.Fetch(context.Background(), Spec{URL: srv.URL + "/gh.tar.gz"})
	if err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(t.TempDir(), "gh")
	if err := f.Unpack(context.Background(), art, dest, UnpackOptions{StripSingleRoot: true}); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	info, err := os.Stat(filepath.Join(dest, "bin", "gh"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Fatalf("binary lost executable bit: %v", info.Mode())
	}
}

func TestUnpackCorruptArchiveInvalidatesCache(t *testing.T) {
	srv, hits := serve(t, []byte("not a zip"))
	f := New(t.TempDir(), zerolog.Nop())
	spec := Spec{URL: srv.URL + "/broken.zip"}

	art, err := f.Fetch(context.Background(), spec)
	if err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(t.TempDir(), "broken")
	err = f.Unpack(context.Background(), art, dest, UnpackOptions{})
	if !errors.Is(err, ErrExtractFailed) {
		t.Fatalf("err = %v, want extract failed", err)
	}
	if _, err := os.Stat(art.Path); !os.IsNotExist(err) {
		t.Fatal("cache entry should be invalidated")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("destination should not exist after failed unpack")
	}

	again, err := f.Fetch(context.Background(), spec)
	if err != nil {
		t.Fatal(err)
	}
	if again.Cached || hits.Load() != 2 {
		t.Fatalf("expected a fresh download, cached=%v hits=%d", again.Cached, hits.Load())
	}
}

func TestUnpackRejectsZipSlip(t *testing.T) {
	payload := buildZip(t, map[string]string{"../evil": "x"})
	srv, _ := serve(t, payload)
	f := New(t.TempDir(), zerolog.Nop())

	art, err := f.Fetch(context.Background(), Spec{URL: srv.URL + "/evil.zip"})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Unpack(context.Background(), art, filepath.Join(t.TempDir(), "x"), UnpackOptions{}); !errors.Is(err, ErrExtractFailed) {
		t.Fatalf("err = %v, want extract failed", err)
	}
}

func TestUnpackSingleFile(t *testing.T) {
	srv, _ := serve(t, []byte("#!/bin/sh\n"))
	f := New(t.TempDir(), zerolog.Nop())

	art, err := f.Fetch(context.Background(), Spec{URL: srv.URL + "/fnm-linux", Format: FormatNone})
	if err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(t.TempDir(), "fnm")
	if err := f.Unpack(context.Background(), art, dest, UnpackOptions{Rename: "fnm"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dest, "fnm")); err != nil {
		t.Fatalf("expected renamed binary: %v", err)
	}
}

func TestFormatFromName(t *testing.T) {
	cases := map[string]Format{
		"a.ZIP":    FormatZip,
		"a.tar.gz": FormatTarGz,
		"a.tgz":    FormatTarGz,
		"a.exe":    FormatNone,
	}
	for in, want := range cases {
		if got := FormatFromName(in); got != want {
			t.Errorf("FormatFromName(%q) = %s, want %s", in, got, want)
		}
	}
}
