package imagehost

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"uplink/internal/config"
	"uplink/internal/services"
)

func writeScreens(t *testing.T, count int) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, count)
	for i := 0; i < count; i++ {
		path := filepath.Join(dir, "screen.png")
		if count > 1 {
			path = filepath.Join(dir, "screen-"+string(rune('a'+i))+".png")
		}
		if err := os.WriteFile(path, []byte("png-bytes"), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}
	return paths
}

func TestPTPImgUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("api_key"); got != "key" {
			t.Errorf("api_key field = %q", got)
		}
		if _, _, err := r.FormFile("file-upload[0]"); err != nil {
			t.Errorf("first file missing: %v", err)
		}
		if _, _, err := r.FormFile("file-upload[1]"); err != nil {
			t.Errorf("second file missing: %v", err)
		}
		w.Write([]byte(`[{"code":"abc123","ext":"png"},{"code":"def456","ext":"png"}]`))
	}))
	defer server.Close()

	host, err := New(config.ImageHost{Provider: "ptpimg", APIKey: "key", BaseURL: server.URL}, server.Client(), nil)
	if err != nil {
		t.Fatal(err)
	}
	images, err := host.Upload(context.Background(), writeScreens(t, 2))
	if err != nil {
		t.Fatal(err)
	}
	if len(images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(images))
	}
	if images[0].RawURL != server.URL+"/abc123.png" {
		t.Fatalf("first url = %q", images[0].RawURL)
	}
	if images[1].ImgURL != server.URL+"/def456.png" {
		t.Fatalf("second url = %q", images[1].ImgURL)
	}
}

func TestPTPImgUploadCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"code":"abc123","ext":"png"}]`))
	}))
	defer server.Close()

	host, err := New(config.ImageHost{APIKey: "key", BaseURL: server.URL}, server.Client(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := host.Upload(context.Background(), writeScreens(t, 2)); err == nil {
		t.Fatal("expected error when the host returns fewer codes than files")
	}
}

func TestPTPImgUploadAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	host, err := New(config.ImageHost{APIKey: "bad", BaseURL: server.URL}, server.Client(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := host.Upload(context.Background(), writeScreens(t, 1)); !errors.Is(err, services.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	if _, err := New(config.ImageHost{Provider: "imgbb"}, nil, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestUploadRequiresAPIKey(t *testing.T) {
	host, err := New(config.ImageHost{Provider: "ptpimg"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := host.Upload(context.Background(), writeScreens(t, 1)); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
