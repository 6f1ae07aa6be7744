package coatyconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_AppliesDefaultsAndExpandsEnv(t *testing.T) {
	t.Setenv("COATY_TEST_HOST", "broker.example.com")
	dir := t.TempDir()
	path := filepath.Join(dir, "coaty.yaml")
	yamlText := `
communication:
  namespace: myapp
  brokerOptions:
    host: ${COATY_TEST_HOST}
`
	if err := os.WriteFile(path, []byte(yamlText), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Communication.BrokerOptions.Host != "broker.example.com" {
		t.Errorf("host = %q, want env-expanded broker.example.com", cfg.Communication.BrokerOptions.Host)
	}
	if cfg.Communication.BrokerOptions.Port != 1883 {
		t.Errorf("port = %d, want default 1883", cfg.Communication.BrokerOptions.Port)
	}
	if cfg.Communication.Namespace != "myapp" {
		t.Errorf("namespace = %q, want myapp", cfg.Communication.Namespace)
	}
}

func TestValidate_RejectsUnknownDatabaseAdapter(t *testing.T) {
	cfg := Default()
	cfg.Databases["main"] = DatabaseOptions{Adapter: "postgres"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() should reject an unrecognized adapter")
	}
}

func TestValidate_RejectsSQLiteWithoutConnectionString(t *testing.T) {
	cfg := Default()
	cfg.Databases["main"] = DatabaseOptions{Adapter: "sqlite"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() should reject a sqlite adapter with no connectionString")
	}
}

func TestValidate_RejectsOutOfRangePort(t *testing.T) {
	cfg := Default()
	cfg.Communication.BrokerOptions.Port = 99999
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() should reject a port out of range")
	}
}

func TestCommOptions_BuildsBrokerURL(t *testing.T) {
	cfg := Default()
	cfg.Communication.BrokerOptions.Host = "mybroker"
	cfg.Communication.BrokerOptions.Port = 8883
	cfg.Communication.BrokerOptions.Secure = true

	opts := cfg.CommOptions()
	if opts.BrokerURL != "mqtts://mybroker:8883" {
		t.Errorf("BrokerURL = %q, want mqtts://mybroker:8883", opts.BrokerURL)
	}
}

func TestParseLogLevel_RejectsUnknown(t *testing.T) {
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Fatal("ParseLogLevel(\"verbose\") should error")
	}
}

func TestFindConfig_ErrorsWhenExplicitPathMissing(t *testing.T) {
	if _, err := FindConfig("/nonexistent/coaty.yaml"); err == nil {
		t.Fatal("FindConfig() with a missing explicit path should error")
	}
}
