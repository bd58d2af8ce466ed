package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"thunder-scheduler/backend/internal/cli"
)

func main() {
	// .env 不存在时忽略
	_ = godotenv.Load()

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
