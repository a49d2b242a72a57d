package config

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Symbol != "ESTC" {
		t.Fatalf("Symbol = %q", cfg.Symbol)
	}
	if cfg.CompanyName != "elastic" {
		t.Fatalf("CompanyName = %q", cfg.CompanyName)
	}
	if cfg.MaxSessions != 1000 || cfg.SessionTimeoutHours != 24 {
		t.Fatalf("session defaults = %d/%d", cfg.MaxSessions, cfg.SessionTimeoutHours)
	}
	if cfg.ElasticsearchURL == "" || cfg.ListenAddr == "" {
		t.Fatal("missing endpoint defaults")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STOCK_SYMBOL", "DDOG")
	t.Setenv("COMPANY_NAME", "datadog")
	t.Setenv("LLM_PROVIDER", "deepseek")
	t.Setenv("ELASTICSEARCH_URL", "https://es.example.com:9200")
	t.Setenv("MAX_SESSIONS", "5")
	t.Setenv("SESSION_TIMEOUT_HOURS", "2")
	t.Setenv("LISTEN_ADDR", ":8080")

	cfg := DefaultConfig()
	if cfg.Symbol != "DDOG" || cfg.CompanyName != "datadog" {
		t.Fatalf("identity overrides not applied: %s/%s", cfg.Symbol, cfg.CompanyName)
	}
	if cfg.LLMProvider != "deepseek" {
		t.Fatalf("LLMProvider = %q", cfg.LLMProvider)
	}
	if cfg.ElasticsearchURL != "https://es.example.com:9200" {
		t.Fatalf("ElasticsearchURL = %q", cfg.ElasticsearchURL)
	}
	if cfg.MaxSessions != 5 || cfg.SessionTimeoutHours != 2 {
		t.Fatalf("session overrides = %d/%d", cfg.MaxSessions, cfg.SessionTimeoutHours)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("ListenAddr = %q", cfg.ListenAddr)
	}
}

func TestInvalidNumericEnvIgnored(t *testing.T) {
	t.Setenv("MAX_SESSIONS", "not-a-number")
	cfg := DefaultConfig()
	if cfg.MaxSessions != 1000 {
		t.Fatalf("MaxSessions = %d, want default kept", cfg.MaxSessions)
	}
}
