package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"thunder-scheduler/backend/internal/service"
	"thunder-scheduler/backend/pkg/jwt"
)

// NewTokenCommand 用配置中的密钥直接签发编辑 Token，便于脚本调用
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var username, role string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "签发编辑 Access Token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if ttl > 0 {
				cfg.Auth.AccessTokenTTL = ttl
			}
			mgr := jwt.NewManager(&cfg.Auth)
			token, err := mgr.GenerateAccessToken(username, role)
			if err != nil {
				return WrapExitError(ExitCommandError, "签发 Token 失败", err)
			}
			out := map[string]interface{}{
				"access_token": token,
				"expires_in":   int(mgr.AccessTokenTTL().Seconds()),
				"username":     username,
				"role":         role,
			}
			return rootOpts.formatter(cmd).Emit(out, func(w io.Writer) { fmt.Fprintln(w, token) })
		},
	}

	cmd.Flags().StringVar(&username, "username", "schedctl", "Token 中的账号名")
	cmd.Flags().StringVar(&role, "role", jwt.RoleEditor, "Token 中的角色")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "有效期（默认取 auth.access_token_ttl）")
	return cmd
}

// NewHashPasswordCommand 生成 auth.editors[].password_hash
func NewHashPasswordCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "生成编辑账号的 bcrypt 密码哈希",
		Long:  "生成编辑账号的 bcrypt 密码哈希。未提供参数时从标准输入读取一行。",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && err != io.EOF {
					return WrapExitError(ExitCommandError, "读取密码失败", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			hash, err := service.HashPassword(password)
			if err != nil {
				return WrapExitError(ExitCommandError, "生成哈希失败", err)
			}
			return rootOpts.formatter(cmd).Emit(map[string]string{"password_hash": hash}, func(w io.Writer) {
				fmt.Fprintln(w, hash)
			})
		},
	}
}
