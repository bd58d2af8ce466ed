// Package cli schedctl 命令行工具：离线校验、调课、签发 Token 与数据库迁移
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"thunder-scheduler/backend/config"
	applogger "thunder-scheduler/backend/pkg/logger"
)

// RootOptions 全局参数
type RootOptions struct {
	ConfigPath string
	Format     string // text | json
	Verbose    bool
}

// ValidFormats 支持的输出格式
var ValidFormats = []string{"text", "json"}

// NewRootCommand 创建 schedctl 根命令
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "schedctl",
		Short: "排课服务命令行工具",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("无效的输出格式 %q，仅支持 %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "配置文件路径（默认 ./config/config.yaml）")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "输出格式 (text|json)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "输出调试日志")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewMoveCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewHashPasswordCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig 读取配置，失败时返回命令错误
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "加载配置失败", err)
	}
	return cfg, nil
}

// newLogger verbose 时输出 debug 级 console 日志，否则只输出警告以上
func (o *RootOptions) newLogger() *zap.Logger {
	level := "warn"
	if o.Verbose {
		level = "debug"
	}
	l, err := applogger.NewLogger(&config.LogConfig{Level: level, Format: "console"})
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}
