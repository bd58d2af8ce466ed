package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"thunder-scheduler/backend/pkg/database"
)

// NewMigrateCommand 数据库迁移
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "数据库迁移",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "执行全部未应用的迁移",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(rootOpts, cmd, "up", func(run migrationRunner) error { return run.up() })
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "回退迁移（默认 1 步）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return NewExitError(ExitCommandError, fmt.Sprintf("回退步数无效: %q", args[0]))
				}
				steps = n
			}
			return withDB(rootOpts, cmd, "down", func(run migrationRunner) error { return run.down(steps) })
		},
	})

	return cmd
}

type migrationRunner struct {
	up   func() error
	down func(steps int) error
}

func withDB(opts *RootOptions, cmd *cobra.Command, action string, fn func(migrationRunner) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.newLogger()
	defer logger.Sync()

	db, err := database.NewDB(&cfg.Database, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "数据库连接失败", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return WrapExitError(ExitCommandError, "获取底层 sql.DB 失败", err)
	}
	defer sqlDB.Close()

	run := migrationRunner{
		up:   func() error { return database.RunMigrations(sqlDB, logger) },
		down: func(steps int) error { return database.RollbackMigrations(sqlDB, steps, logger) },
	}
	if err := fn(run); err != nil {
		return WrapExitError(ExitCommandError, "迁移失败", err)
	}
	return opts.formatter(cmd).Emit(map[string]string{"migrate": action}, func(w io.Writer) {
		fmt.Fprintf(w, "✓ migrate %s 完成\n", action)
	})
}
