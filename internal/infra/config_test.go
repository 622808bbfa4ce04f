package infra

import (
	"strings"
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("APP_ENV", "development")
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("STORAGE_BASE_URL", "")
	t.Setenv("ENHANCE_TIMEOUT_SECONDS", "")
	t.Setenv("VALIDATE_TIMEOUT_SECONDS", "")
	t.Setenv("HTTP_WRITE_TIMEOUT_SECONDS", "")
	for _, key := range []string{"OBJECT_STORE_ENDPOINT", "OBJECT_STORE_ACCESS_KEY", "OBJECT_STORE_SECRET_KEY", "OBJECT_STORE_BUCKET"} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDevelopmentDefaultsToLocalStorage(t *testing.T) {
	setBaseEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBackend != StorageBackendLocal {
		t.Fatalf("StorageBackend mismatch: got %q", cfg.StorageBackend)
	}
	if cfg.StorageBaseURL != "http://localhost:8080/static" {
		t.Fatalf("StorageBaseURL mismatch: got %q", cfg.StorageBaseURL)
	}
	if cfg.EnhanceTimeout != 40*time.Second {
		t.Fatalf("EnhanceTimeout mismatch: got %s", cfg.EnhanceTimeout)
	}
	if cfg.AttemptTimeout != 50*time.Second {
		t.Fatalf("AttemptTimeout mismatch: got %s", cfg.AttemptTimeout)
	}
	if cfg.EnhanceTimeout+cfg.ValidateTimeout >= cfg.AttemptTimeout {
		t.Fatalf("default budget does not fit: enhance=%s validate=%s attempt=%s", cfg.EnhanceTimeout, cfg.ValidateTimeout, cfg.AttemptTimeout)
	}
}

func TestLoadConfigRequiresBackendOutsideDevelopment(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("expected error when STORAGE_BACKEND is unset in production")
	}
	if !strings.Contains(err.Error(), "storage unavailable") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadConfigObjectBackendReportsMissingFields(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORAGE_BACKEND", "object")
	t.Setenv("OBJECT_STORE_ENDPOINT", "minio:9000")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("expected error for incomplete object store config")
	}
	for _, key := range []string{"OBJECT_STORE_ACCESS_KEY", "OBJECT_STORE_SECRET_KEY", "OBJECT_STORE_BUCKET"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("error %q does not mention %s", err, key)
		}
	}
}

func TestLoadConfigObjectBackend(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORAGE_BACKEND", "OBJECT")
	t.Setenv("OBJECT_STORE_ENDPOINT", "minio:9000")
	t.Setenv("OBJECT_STORE_ACCESS_KEY", "access")
	t.Setenv("OBJECT_STORE_SECRET_KEY", "secret")
	t.Setenv("OBJECT_STORE_BUCKET", "enhanced")
	t.Setenv("OBJECT_STORE_USE_SSL", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBackend != StorageBackendObject {
		t.Fatalf("StorageBackend mismatch: got %q", cfg.StorageBackend)
	}
	if cfg.ObjectStore.UseSSL {
		t.Fatal("expected UseSSL=false")
	}
}

func TestLoadConfigRejectsTimeoutBeyondWriteBudget(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ENHANCE_TIMEOUT_SECONDS", "60")
	t.Setenv("HTTP_WRITE_TIMEOUT_SECONDS", "60")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when enhancement budget is not inside the write timeout")
	}
}

func TestLoadConfigRejectsValidateFillingWriteBudget(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ENHANCE_TIMEOUT_SECONDS", "50")
	t.Setenv("VALIDATE_TIMEOUT_SECONDS", "10")
	t.Setenv("HTTP_WRITE_TIMEOUT_SECONDS", "60")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("expected error when enhance + validate fill the write timeout")
	}
	if !strings.Contains(err.Error(), "VALIDATE_TIMEOUT_SECONDS") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadConfigObjectStoreRegion(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORAGE_BACKEND", "object")
	t.Setenv("OBJECT_STORE_ENDPOINT", "minio:9000")
	t.Setenv("OBJECT_STORE_ACCESS_KEY", "access")
	t.Setenv("OBJECT_STORE_SECRET_KEY", "secret")
	t.Setenv("OBJECT_STORE_BUCKET", "photos")
	t.Setenv("OBJECT_STORE_REGION", " eu-central-1 ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ObjectStore.Region != "eu-central-1" {
		t.Fatalf("Region mismatch: got %q", cfg.ObjectStore.Region)
	}
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("JWT_SECRET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when JWT_SECRET is missing")
	}
}
