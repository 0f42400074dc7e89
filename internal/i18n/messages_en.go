package i18n

// loadEnglishMessages loads all English translations
func loadEnglishMessages() {
	messages[LangEN] = map[string]string{
		// Common
		"app.name":        "Parley",
		"app.description": "terminal client for the multi-tool chat assistant",

		// Welcome and exit
		"welcome":         "Welcome to Parley v%s — terminal client for the multi-tool chat assistant",
		"welcome.help":    "Type /help for commands, Ctrl+D or /exit to quit",
		"welcome.resumed": "Resumed conversation: %s",
		"goodbye":         "Goodbye!",

		// Chat loop
		"chat.description": "Talk to the assistant interactively",
		"chat.prompt":      "you> ",
		"chat.assistant":   "assistant> ",
		"chat.busy":        "The previous request is still streaming, please wait",
		"chat.failed":      "Request failed: %v",
		"chat.draft":       "Pending draft: %s",
		"chat.draft.empty": "No pending draft",
		"chat.new":         "Started a new conversation",
		"chat.trace.title": "—— reasoning ——",
		"chat.trace.item":  "  · %s",
		"chat.attachment":  "  [%s] %s  %s",
		"chat.link":        "  ↗ %s",
		"chat.error.event": "(service error: %s)",

		// Help
		"help.title":   "Available commands:",
		"help.help":    "/help                   show this help",
		"help.new":     "/new                    start a new conversation",
		"help.history": "/history [filter]       list stored conversations",
		"help.image":   "/image <path>...        stage image attachments",
		"help.file":    "/file <path>...         stage file attachments",
		"help.staged":  "/staged                 show staged attachments",
		"help.unstage": "/unstage <image|file> <index>  remove one attachment",
		"help.clear":   "/clear                  drop all staged attachments",
		"help.rag":     "/rag [use|drop <name>]  manage active knowledge bases",
		"help.voice":   "/voice <pcm-file>       dictate into the draft",
		"help.send":    "/send                   send the pending draft",
		"help.save":    "/save [dir]             save generated files from the last reply",
		"help.lang":    "/lang <code>            switch language (en, zh-CN)",
		"help.exit":    "/exit or /quit          quit",
		"help.ctrl_d":  "Ctrl+D                  quit",

		// Language
		"lang.changed":     "Language changed to: %s",
		"lang.unsupported": "Unsupported language: %s",
		"lang.available":   "Available languages: %s",
		"lang.current":     "Current language: %s",

		// Upload staging
		"staged.empty":   "No staged attachments",
		"staged.title":   "Staged attachments:",
		"staged.item":    "  [%s %d] %s (%s)",
		"staged.added":   "Staged %d attachment(s)",
		"staged.removed": "Removed",
		"staged.cleared": "Staged attachments cleared",

		// Knowledge bases
		"rag.description":   "Manage knowledge bases",
		"rag.title":         "Knowledge bases:",
		"rag.empty":         "No knowledge bases yet",
		"rag.item":          "  %s%s (%d files, built %s)",
		"rag.active.mark":   "* ",
		"rag.inactive.mark": "  ",
		"rag.activated":     "Knowledge base activated: %s",
		"rag.deactivated":   "Knowledge base deactivated: %s",
		"rag.built":         "Knowledge base %s built (%d files)",
		"rag.built.skipped": "Knowledge base %s already exists, activated",
		"rag.renamed":       "Knowledge base renamed: %s → %s",
		"rag.deleted":       "Knowledge base %s deleted",
		"rag.not.confirmed": "Deletion cancelled",

		// Voice capture
		"voice.description": "Record speech and turn it into text",
		"voice.transcribed": "Transcribed: %s",
		"voice.nospeech":    "No speech detected",
		"voice.denied":      "Microphone permission denied, please retry",

		// History
		"history.description": "Manage stored conversations",
		"history.empty":       "No stored conversations",
		"history.title":       "Stored conversations:",
		"history.item":        "  %s%s%s (%s, %d rounds)",
		"history.pin.mark":    "📌",
		"history.star.mark":   "★",
		"history.deleted":     "Conversation %s deleted",
		"history.renamed":     "Title updated",
		"history.pinned":      "Pinned",
		"history.unpinned":    "Unpinned",
		"history.starred":     "Starred",
		"history.unstarred":   "Unstarred",
		"history.not.found":   "Conversation not found: %s",

		// Artifact saving
		"save.none":   "The last reply has no files to save",
		"save.saved":  "Saved: %s",
		"save.failed": "Some files failed to save: %v",

		// Generic upload
		"upload.description": "Upload files to the assistant's storage",
		"upload.item":        "  %s → %s",

		// Version
		"version.description": "Show version and configuration",

		// Errors
		"error.config": "Failed to load configuration: %v",
		"error.client": "Failed to initialize the client: %v",
		"error.input":  "Error reading input: %v",
	}
}
