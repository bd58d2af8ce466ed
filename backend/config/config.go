package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"db"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Log         LogConfig         `mapstructure:"log"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
	Validation  ValidationConfig  `mapstructure:"validation"`
	Solver      SolverConfig      `mapstructure:"solver"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
	Cache       CacheConfig       `mapstructure:"cache"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int        `mapstructure:"port"`
	BaseURL      string     `mapstructure:"base_url"`
	MaxBodyBytes int64      `mapstructure:"max_body_bytes"`
	CORS         CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
	LogLevel        string `mapstructure:"log_level"`          // silent | error | warn | info
	SlowThresholdMS int    `mapstructure:"slow_threshold_ms"`  // 慢查询阈值，超过即以 warn 记录
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置，Addr 为空时不启用
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret      string         `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration  `mapstructure:"access_token_ttl"`
	Editors        []EditorConfig `mapstructure:"editors"`
}

// EditorConfig 可编辑排课的账号，密码以 bcrypt 哈希保存
type EditorConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ScheduleConfig 排课网格与默认约束
type ScheduleConfig struct {
	PeriodsPerDay      int               `mapstructure:"periods_per_day"`
	RotationWeeks      int               `mapstructure:"rotation_weeks"`
	Constraints        ConstraintsConfig `mapstructure:"constraints"`
	Bells              []BellConfig      `mapstructure:"bells"`
	Timezone           string            `mapstructure:"timezone"`
	CSVMaxPeriods      int               `mapstructure:"csv_max_periods"`
	MaxImportBodyBytes int64             `mapstructure:"max_import_body_bytes"`
}

// ConstraintsConfig 新建排课方案时的默认约束
type ConstraintsConfig struct {
	MaxClassesPerDay       int  `mapstructure:"max_classes_per_day"`
	MaxClassesPerWeek      int  `mapstructure:"max_classes_per_week"`
	MaxConsecutiveClasses  int  `mapstructure:"max_consecutive_classes"`
	RequireBreakAfterClass bool `mapstructure:"require_break_after_class"`
}

// BellConfig 节次作息，用于 ICS 事件到节次的换算（HH:MM）
type BellConfig struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

// ValidationConfig 校验接口限流
type ValidationConfig struct {
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`
}

// SolverConfig 排课生成器配置
type SolverConfig struct {
	Mode      string        `mapstructure:"mode"` // greedy | subprocess
	Command   string        `mapstructure:"command"`
	Args      []string      `mapstructure:"args"`
	TimeLimit time.Duration `mapstructure:"time_limit"`
}

// CoordinatorConfig 调课客户端配置
type CoordinatorConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	CalendarTTL time.Duration `mapstructure:"calendar_ttl"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "thunder_scheduler")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟
	v.SetDefault("db.log_level", "warn")
	v.SetDefault("db.slow_threshold_ms", 200)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_token_ttl", "8h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("schedule.periods_per_day", 8)
	v.SetDefault("schedule.rotation_weeks", 1)
	v.SetDefault("schedule.constraints.max_classes_per_day", 4)
	v.SetDefault("schedule.constraints.max_classes_per_week", 16)
	v.SetDefault("schedule.constraints.max_consecutive_classes", 2)
	v.SetDefault("schedule.constraints.require_break_after_class", true)
	v.SetDefault("schedule.timezone", "UTC")
	v.SetDefault("schedule.csv_max_periods", 10)
	v.SetDefault("schedule.max_import_body_bytes", 5<<20)

	v.SetDefault("validation.rate_limit", 120)
	v.SetDefault("validation.rate_window", "1m")

	v.SetDefault("solver.mode", "greedy")
	v.SetDefault("solver.command", "")
	v.SetDefault("solver.time_limit", "30s")

	v.SetDefault("coordinator.base_url", "http://localhost:8080")
	v.SetDefault("coordinator.timeout", "5s")

	v.SetDefault("cache.calendar_ttl", "10m")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("THUNDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	for i, e := range c.Auth.Editors {
		if e.Username == "" || e.PasswordHash == "" {
			return fmt.Errorf("配置校验失败: auth.editors[%d] 缺少 username 或 password_hash", i)
		}
	}
	if c.Schedule.PeriodsPerDay <= 0 {
		return fmt.Errorf("配置校验失败: schedule.periods_per_day 必须为正数")
	}
	if c.Schedule.RotationWeeks <= 0 {
		return fmt.Errorf("配置校验失败: schedule.rotation_weeks 必须为正数")
	}
	sc := c.Schedule.Constraints
	if sc.MaxClassesPerDay <= 0 || sc.MaxClassesPerWeek <= 0 || sc.MaxConsecutiveClasses <= 0 {
		return fmt.Errorf("配置校验失败: schedule.constraints 的上限必须为正数")
	}
	if len(c.Schedule.Bells) > 0 && len(c.Schedule.Bells) != c.Schedule.PeriodsPerDay {
		return fmt.Errorf("配置校验失败: schedule.bells 数量 (%d) 应与 periods_per_day (%d) 一致",
			len(c.Schedule.Bells), c.Schedule.PeriodsPerDay)
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("配置校验失败: schedule.timezone 无效: %w", err)
	}
	switch c.Solver.Mode {
	case "greedy":
	case "subprocess":
		if c.Solver.Command == "" {
			return fmt.Errorf("配置校验失败: solver.mode=subprocess 时 solver.command 不能为空")
		}
	default:
		return fmt.Errorf("配置校验失败: solver.mode 仅支持 greedy 或 subprocess")
	}
	if c.Validation.RateLimit < 0 {
		return fmt.Errorf("配置校验失败: validation.rate_limit 不能为负数")
	}
	return nil
}
