package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		UserID:  "user-abc",
		BaseDir: "/home/user/.local/share/lmsync",
		LogDir:  "/home/user/.local/share/lmsync/log",
		API: APIConfig{
			BaseURL:        "https://lms.example.com/api",
			TimeoutSeconds: 15,
			Endpoints: EndpointsConfig{
				Courses:     "/courses",
				Lessons:     "/lessons",
				Enrollments: "/enrollments",
				Progress:    "/progress",
			},
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/lmsync/data"},
		Packages: PackagesConfig{Dir: "/home/user/.local/share/lmsync/packages"},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.UserID != original.UserID {
		t.Errorf("UserID = %q, want %q", got.UserID, original.UserID)
	}
	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.API.BaseURL != original.API.BaseURL {
		t.Errorf("API.BaseURL = %q, want %q", got.API.BaseURL, original.API.BaseURL)
	}
	if got.API.TimeoutSeconds != 15 {
		t.Errorf("API.TimeoutSeconds = %d, want 15", got.API.TimeoutSeconds)
	}
	if got.API.Endpoints.Enrollments != "/enrollments" {
		t.Errorf("API.Endpoints.Enrollments = %q, want %q", got.API.Endpoints.Enrollments, "/enrollments")
	}
	if got.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want %q", got.Database.Type, "sqlite")
	}
	if got.Packages.Dir != original.Packages.Dir {
		t.Errorf("Packages.Dir = %q, want %q", got.Packages.Dir, original.Packages.Dir)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("user-1", "/data/lmsync")

	if cfg.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", cfg.UserID, "user-1")
	}
	if cfg.BaseDir != "/data/lmsync" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/lmsync")
	}
	if cfg.LogDir != filepath.Join("/data/lmsync", "log") {
		t.Errorf("LogDir = %q, want under base dir", cfg.LogDir)
	}
	if cfg.API.TimeoutSeconds != 30 {
		t.Errorf("API.TimeoutSeconds = %d, want 30", cfg.API.TimeoutSeconds)
	}
	if cfg.API.Endpoints.Courses != "/courses" {
		t.Errorf("API.Endpoints.Courses = %q, want /courses", cfg.API.Endpoints.Courses)
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want sqlite", cfg.Database.Type)
	}
	if cfg.Database.DataDir != filepath.Join("/data/lmsync", "data") {
		t.Errorf("Database.DataDir = %q, want under base dir", cfg.Database.DataDir)
	}
	if cfg.Packages.Dir != filepath.Join("/data/lmsync", "packages") {
		t.Errorf("Packages.Dir = %q, want under base dir", cfg.Packages.Dir)
	}
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads a written config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lmsync.toml")
		cfg := NewConfig("user-1", "/data/lmsync")

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.UserID != "user-1" {
			t.Errorf("UserID = %q, want user-1", got.UserID)
		}
	})

	t.Run("errors on a missing file", func(t *testing.T) {
		_, err := ReadFromFile(filepath.Join(t.TempDir(), "missing.toml"))
		if err == nil {
			t.Error("ReadFromFile() error = nil, want error")
		}
	})
}

func TestInit(t *testing.T) {
	t.Run("refuses to overwrite an existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lmsync.toml")
		if err := os.WriteFile(path, []byte("user_id = \"existing\"\n"), 0644); err != nil {
			t.Fatalf("writing existing file: %v", err)
		}

		err := Init(path, NewConfig("user-1", "/data/lmsync"))
		if err == nil {
			t.Error("Init() error = nil, want error for existing file")
		}
	})

	t.Run("creates missing parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "lmsync.toml")

		if err := Init(path, NewConfig("user-1", "/data/lmsync")); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Errorf("config file was not created: %v", err)
		}
	})
}
