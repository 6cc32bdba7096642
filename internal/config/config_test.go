package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Config{HTTP: HTTPConfig{Port: 70000}}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_Drivers(t *testing.T) {
	tests := []struct {
		name    string
		db      DatabaseConfig
		wantErr string
	}{
		{name: "sqlite default", db: DatabaseConfig{}},
		{name: "memory", db: DatabaseConfig{Driver: DriverMemory}},
		{name: "redis", db: DatabaseConfig{Driver: DriverRedis, Addrs: []string{"localhost:6379"}}},
		{name: "valkey without addrs", db: DatabaseConfig{Driver: DriverValkey}, wantErr: "database.addrs"},
		{name: "qdrant", db: DatabaseConfig{Driver: DriverQdrant, Qdrant: QdrantConfig{Host: "localhost"}}},
		{name: "qdrant without host", db: DatabaseConfig{Driver: DriverQdrant}, wantErr: "database.qdrant.host"},
		{name: "unknown", db: DatabaseConfig{Driver: "milvus"}, wantErr: "database.driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Database: tt.db}
			cfg.ApplyDefaults()
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_CacheKind(t *testing.T) {
	cfg := Config{Cache: CacheConfig{Kind: CacheKV}}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatal("kv cache on sqlite must be rejected")
	}

	cfg = Config{
		Database: DatabaseConfig{Driver: DriverValkey, Addrs: []string{"localhost:6379"}},
		Cache:    CacheConfig{Kind: CacheKV},
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("kv cache on valkey: %v", err)
	}

	cfg = Config{Cache: CacheConfig{Kind: "disk"}}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown cache kind must be rejected")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected Port=8080, got %d", cfg.HTTP.Port)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Database.Path != "graphvec.db" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Database.Qdrant.Port != 6334 {
		t.Errorf("expected qdrant port 6334, got %d", cfg.Database.Qdrant.Port)
	}
	if cfg.Embedding.Dimensions != 1024 || cfg.Embedding.BatchSize != 10 || cfg.Embedding.Retries != 3 {
		t.Errorf("embedding = %+v", cfg.Embedding)
	}
	if cfg.Cache.Kind != CacheMemory {
		t.Errorf("expected memory cache, got %q", cfg.Cache.Kind)
	}
	if cfg.Collections.Prefix != "graphrag_" {
		t.Errorf("expected prefix graphrag_, got %q", cfg.Collections.Prefix)
	}
	if cfg.QueryTimeout() != 10*time.Second || cfg.EmbeddingTimeout() != 30*time.Second {
		t.Errorf("timeouts = %v, %v", cfg.QueryTimeout(), cfg.EmbeddingTimeout())
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:        HTTPConfig{Port: 9000, ReadTimeoutSec: 30},
		Database:    DatabaseConfig{Driver: DriverMemory},
		Cache:       CacheConfig{Kind: CacheLRU, Size: 10},
		Collections: CollectionsConfig{Prefix: "kg_"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 9000 || cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("http = %+v", cfg.HTTP)
	}
	if cfg.Database.Path != "" {
		t.Errorf("memory driver should not get a sqlite path, got %q", cfg.Database.Path)
	}
	if cfg.Cache.Size != 10 {
		t.Errorf("expected cache size 10, got %d", cfg.Cache.Size)
	}
	if cfg.Collections.Prefix != "kg_" {
		t.Errorf("expected prefix kg_, got %q", cfg.Collections.Prefix)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("GRAPHVEC_TEST_KEY", "sk-test")
	data := []byte(`
database:
  driver: ${GRAPHVEC_TEST_DRIVER:-memory}
embedding:
  api_key: ${GRAPHVEC_TEST_KEY}
  model: ${GRAPHVEC_TEST_MODEL:-text-embedding-v3}
query:
  all_or_nothing: true
`)

	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Database.Driver != DriverMemory {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
	if cfg.Embedding.APIKey != "sk-test" || cfg.Embedding.Model != "text-embedding-v3" {
		t.Errorf("embedding = %+v", cfg.Embedding)
	}
	if !cfg.Query.AllOrNothing {
		t.Error("all_or_nothing not decoded")
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Error("expected YAML error")
	}
	if _, err := Parse([]byte("database:\n  driver: milvus\n")); err == nil {
		t.Error("expected validation error")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte("http:\n  port: 9090\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d", cfg.HTTP.Port)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_LocalConfig(t *testing.T) {
	cfg, err := Load("local")
	if err != nil {
		t.Fatalf("Load(local): %v", err)
	}
	if cfg.Database.Driver == "" {
		t.Error("driver not set")
	}
}
