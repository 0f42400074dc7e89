package i18n

// loadChineseMessages loads all Simplified Chinese translations
func loadChineseMessages() {
	messages[LangZhCN] = map[string]string{
		// Common
		"app.name":        "Parley",
		"app.description": "多工具聊天助手的终端客户端",

		// Welcome and exit
		"welcome":         "欢迎使用 Parley v%s — 多工具聊天助手的终端客户端",
		"welcome.help":    "输入 /help 查看命令，Ctrl+D 或 /exit 退出",
		"welcome.resumed": "已恢复会话：%s",
		"goodbye":         "再见！",

		// Chat loop
		"chat.description": "与助手进行互动式对话",
		"chat.prompt":      "你> ",
		"chat.assistant":   "助手> ",
		"chat.busy":        "上一条请求仍在处理中，请稍候",
		"chat.failed":      "请求失败：%v",
		"chat.draft":       "待发送草稿：%s",
		"chat.draft.empty": "暂无待发送草稿",
		"chat.new":         "已开启新会话",
		"chat.trace.title": "—— 推理过程 ——",
		"chat.trace.item":  "  · %s",
		"chat.attachment":  "  [%s] %s  %s",
		"chat.link":        "  ↗ %s",
		"chat.error.event": "（服务端错误：%s）",

		// Help
		"help.title":   "可用命令：",
		"help.help":    "/help                   显示此帮助",
		"help.new":     "/new                    开启新会话",
		"help.history": "/history [关键字]       查看历史会话",
		"help.image":   "/image <路径>...        暂存图片附件",
		"help.file":    "/file <路径>...         暂存文件附件",
		"help.staged":  "/staged                 查看暂存附件",
		"help.unstage": "/unstage <image|file> <序号>  移除一个附件",
		"help.clear":   "/clear                  清空暂存附件",
		"help.rag":     "/rag [use|drop <名称>]  管理启用的知识库",
		"help.voice":   "/voice <PCM文件>        语音输入到草稿",
		"help.send":    "/send                   发送当前草稿",
		"help.save":    "/save [目录]            保存最新回复中的生成文件",
		"help.lang":    "/lang <code>            切换语言 (en, zh-CN)",
		"help.exit":    "/exit 或 /quit          退出",
		"help.ctrl_d":  "Ctrl+D                  退出",

		// Language
		"lang.changed":     "语言已切换为：%s",
		"lang.unsupported": "不支持的语言：%s",
		"lang.available":   "可用语言：%s",
		"lang.current":     "当前语言：%s",

		// Upload staging
		"staged.empty":   "没有暂存的附件",
		"staged.title":   "暂存附件：",
		"staged.item":    "  [%s %d] %s（%s）",
		"staged.added":   "已暂存 %d 个附件",
		"staged.removed": "已移除",
		"staged.cleared": "已清空暂存附件",

		// Knowledge bases
		"rag.description":   "管理知识库",
		"rag.title":         "知识库：",
		"rag.empty":         "暂无知识库",
		"rag.item":          "  %s%s（%d 个文件，建于 %s）",
		"rag.active.mark":   "* ",
		"rag.inactive.mark": "  ",
		"rag.activated":     "已启用知识库：%s",
		"rag.deactivated":   "已停用知识库：%s",
		"rag.built":         "知识库 %s 构建完成（%d 个文件）",
		"rag.built.skipped": "知识库 %s 已存在，已直接启用",
		"rag.renamed":       "知识库已重命名：%s → %s",
		"rag.deleted":       "知识库 %s 已删除",
		"rag.not.confirmed": "已取消删除",

		// Voice capture
		"voice.description": "录制语音并转写为文字",
		"voice.transcribed": "转写结果：%s",
		"voice.nospeech":    "未检测到语音",
		"voice.denied":      "麦克风权限被拒绝，请重试",

		// History
		"history.description": "管理历史会话",
		"history.empty":       "暂无历史会话",
		"history.title":       "历史会话：",
		"history.item":        "  %s%s%s（%s，%d 轮）",
		"history.pin.mark":    "📌",
		"history.star.mark":   "★",
		"history.deleted":     "会话 %s 已删除",
		"history.renamed":     "标题已更新",
		"history.pinned":      "已置顶",
		"history.unpinned":    "已取消置顶",
		"history.starred":     "已收藏",
		"history.unstarred":   "已取消收藏",
		"history.not.found":   "找不到会话：%s",

		// Artifact saving
		"save.none":   "最新回复没有可保存的文件",
		"save.saved":  "已保存：%s",
		"save.failed": "部分文件保存失败：%v",

		// Generic upload
		"upload.description": "上传文件到助手存储",
		"upload.item":        "  %s → %s",

		// Version
		"version.description": "显示版本与配置信息",

		// Errors
		"error.config": "加载配置失败：%v",
		"error.client": "初始化客户端失败：%v",
		"error.input":  "读取输入出错：%v",
	}
}
