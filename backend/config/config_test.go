package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "auth:\n  jwt_secret: a-secret-of-sixteen-plus\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d", cfg.Server.Port)
	}
	if cfg.Schedule.PeriodsPerDay != 8 || cfg.Schedule.RotationWeeks != 1 {
		t.Errorf("schedule 网格默认值错误: %+v", cfg.Schedule)
	}
	if cfg.Auth.AccessTokenTTL != 8*time.Hour {
		t.Errorf("access_token_ttl = %v", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Validation.RateWindow != time.Minute || cfg.Coordinator.Timeout != 5*time.Second {
		t.Errorf("时长默认值错误: window=%v timeout=%v", cfg.Validation.RateWindow, cfg.Coordinator.Timeout)
	}
	if cfg.Solver.Mode != "greedy" || cfg.Database.SlowThresholdMS != 200 {
		t.Errorf("solver.mode=%q slow_threshold_ms=%d", cfg.Solver.Mode, cfg.Database.SlowThresholdMS)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8081\nauth:\n  jwt_secret: from-file-secret-0001\n")
	t.Setenv("THUNDER_SERVER_PORT", "9090")
	t.Setenv("THUNDER_AUTH_JWT_SECRET", "from-env-secret-00002")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("环境变量应覆盖文件，server.port = %d", cfg.Server.Port)
	}
	if cfg.Auth.JWTSecret != "from-env-secret-00002" {
		t.Errorf("jwt_secret = %q", cfg.Auth.JWTSecret)
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  port: 8080\n"))
	if err == nil || !strings.Contains(err.Error(), "jwt_secret") {
		t.Errorf("缺少 jwt_secret 应报错，实际 %v", err)
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Auth:   AuthConfig{JWTSecret: "0123456789abcdef"},
		Schedule: ScheduleConfig{
			PeriodsPerDay: 8,
			RotationWeeks: 2,
			Timezone:      "UTC",
			Constraints:   ConstraintsConfig{MaxClassesPerDay: 4, MaxClassesPerWeek: 16, MaxConsecutiveClasses: 2},
		},
		Solver: SolverConfig{Mode: "greedy"},
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("合法配置不应报错: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "jwt_secret"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"editor without hash", func(c *Config) { c.Auth.Editors = []EditorConfig{{Username: "a"}} }, "editors[0]"},
		{"zero periods", func(c *Config) { c.Schedule.PeriodsPerDay = 0 }, "periods_per_day"},
		{"zero rotation", func(c *Config) { c.Schedule.RotationWeeks = 0 }, "rotation_weeks"},
		{"zero daily cap", func(c *Config) { c.Schedule.Constraints.MaxClassesPerDay = 0 }, "constraints"},
		{"bell count mismatch", func(c *Config) { c.Schedule.Bells = []BellConfig{{Start: "08:00", End: "08:45"}} }, "bells"},
		{"bad timezone", func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }, "timezone"},
		{"subprocess without command", func(c *Config) { c.Solver.Mode = "subprocess" }, "solver.command"},
		{"unknown solver", func(c *Config) { c.Solver.Mode = "cp-sat" }, "solver.mode"},
		{"negative rate limit", func(c *Config) { c.Validation.RateLimit = -1 }, "rate_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.field) {
				t.Errorf("期望包含 %q 的错误，实际 %v", tt.field, err)
			}
		})
	}
}
