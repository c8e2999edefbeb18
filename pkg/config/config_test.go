package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/instancegraph/pkg/store"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instancegraph.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if c.Store.Driver != store.DriverSQLite || c.Store.Path != "instancegraph.db" {
		t.Errorf("store = %+v", c.Store)
	}
	if c.TargetUnits != "mm" || c.Codec != "json" || c.MaxDepth != 256 {
		t.Errorf("defaults = %q %q %d", c.TargetUnits, c.Codec, c.MaxDepth)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
root_name: workshop
target_units: in
codec: msgpack
eval_timeout: 2s
log:
  level: debug
  format: json
store:
  driver: s3
  bucket: payloads
  endpoint: http://localhost:9000
  path_style: true
convert:
  workers: 4
  mesh: true
metrics:
  enabled: true
`)
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		RootName:    "workshop",
		TargetUnits: "in",
		MaxDepth:    256,
		Codec:       "msgpack",
		EvalTimeout: 2 * time.Second,
		Log:         LogConfig{Level: "debug", Format: "json"},
		Store: StoreConfig{
			Driver:    store.DriverS3,
			Bucket:    "payloads",
			Endpoint:  "http://localhost:9000",
			PathStyle: true,
		},
		Convert: ConvertConfig{Kernel: KernelSdfx, Workers: 4, CacheSize: 1024, Mesh: true, MeshCells: 64, Segments: 32},
		Metrics: MetricsConfig{Enabled: true, Listen: ":8080"},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), c); diff != "" {
		t.Errorf("Load(\"\") differs from Default (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad yaml", "store: [", "config:"},
		{"unknown driver", "store: {driver: ftp}", "store.driver"},
		{"postgres without dsn", "store: {driver: postgres}", "store.dsn"},
		{"s3 without bucket", "store: {driver: s3}", "store.bucket"},
		{"http without url", "store: {driver: http}", "store.url"},
		{"units", "target_units: furlongs", "target_units"},
		{"codec", "codec: xml", "codec"},
		{"root", "root_name: /abs", "root_name"},
		{"log level", "log: {level: loud}", "log.level"},
		{"kernel", "convert: {kernel: cgal}", "convert.kernel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestValidateReportsEverything(t *testing.T) {
	c := Default()
	c.Codec = "xml"
	c.Log.Format = "yaml"
	err := c.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, part := range []string{"codec", "log.format"} {
		if !strings.Contains(err.Error(), part) {
			t.Errorf("error %q does not mention %s", err, part)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvPrefix + "STORE_DRIVER":     "HTTP",
		EnvPrefix + "STORE_URL":        "http://hub:8080",
		EnvPrefix + "STORE_PATH_STYLE": "true",
		EnvPrefix + "LOG_LEVEL":        "warn",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	c := &Config{Store: StoreConfig{Driver: store.DriverSQLite, Path: "x.db"}}
	if err := c.applyEnv(lookup); err != nil {
		t.Fatal(err)
	}
	want := StoreConfig{Driver: store.DriverHTTP, Path: "x.db", URL: "http://hub:8080", PathStyle: true}
	if diff := cmp.Diff(want, c.Store); diff != "" {
		t.Errorf("store mismatch (-want +got):\n%s", diff)
	}
	if c.Log.Level != "warn" {
		t.Errorf("log level = %q", c.Log.Level)
	}

	env[EnvPrefix+"STORE_PATH_STYLE"] = "maybe"
	if err := c.applyEnv(lookup); err == nil {
		t.Error("expected a parse error")
	}
}
