// Package cmd provides the Parley command line interface.
//
// Commands:
//   - chat: interactive conversation with the assistant (default)
//   - history: stored conversation management
//   - corpus: knowledge base management
//   - upload: push a local file to the backend
//   - voice: transcribe captured audio
//   - version: build and configuration information
//
// Every command wires the client stack through newApp so they share one
// construction path.
package cmd

import (
	"github.com/parleychat/parley/internal/i18n"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley - " + i18n.T("app.description"),
	Long: `Parley 是多工具聊天助手的终端客户端。
它把查询发送到后端智能体，流式接收回复，并管理附件、知识库与历史会话。

直接执行 parley 将进入互动式对话模式。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 无参数时进入 chat 模式
		return runChat(cmd, args)
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Subcommands register themselves in their own files.
}
