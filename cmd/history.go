package cmd

import (
	"context"
	"fmt"

	"github.com/parleychat/parley/internal/api"
	"github.com/parleychat/parley/internal/history"
	"github.com/parleychat/parley/internal/i18n"
	"github.com/parleychat/parley/internal/transcript"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: i18n.T("history.description"),
}

var historyListCmd = &cobra.Command{
	Use:   "list [filter]",
	Short: "List stored conversations",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := ""
		if len(args) == 1 {
			filter = args[0]
		}
		return runHistoryList(cmd.Context(), filter)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Show a stored conversation's transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistoryShow(cmd.Context(), args[0])
	},
}

var historyRenameCmd = &cobra.Command{
	Use:   "rename <conversation-id> <title>",
	Short: "Change a conversation's title",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistoryPatch(cmd.Context(), args[0],
			map[string]any{"title": args[1]}, i18n.T("history.renamed"))
	},
}

var historyPinCmd = &cobra.Command{
	Use:   "pin <conversation-id>",
	Short: "Pin a conversation to the top of the list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistoryPatch(cmd.Context(), args[0],
			map[string]any{"pinned": true}, i18n.T("history.pinned"))
	},
}

var historyUnpinCmd = &cobra.Command{
	Use:   "unpin <conversation-id>",
	Short: "Unpin a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistoryPatch(cmd.Context(), args[0],
			map[string]any{"pinned": false}, i18n.T("history.unpinned"))
	},
}

var historyStarCmd = &cobra.Command{
	Use:   "star <conversation-id>",
	Short: "Star a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistoryPatch(cmd.Context(), args[0],
			map[string]any{"starred": true}, i18n.T("history.starred"))
	},
}

var historyUnstarCmd = &cobra.Command{
	Use:   "unstar <conversation-id>",
	Short: "Unstar a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistoryPatch(cmd.Context(), args[0],
			map[string]any{"starred": false}, i18n.T("history.unstarred"))
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete a stored conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistoryDelete(cmd.Context(), args[0])
	},
}

func init() {
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyRenameCmd)
	historyCmd.AddCommand(historyPinCmd)
	historyCmd.AddCommand(historyUnpinCmd)
	historyCmd.AddCommand(historyStarCmd)
	historyCmd.AddCommand(historyUnstarCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(ctx context.Context, filter string) error {
	a, err := newApp(ctx)
	if err != nil {
		return fmt.Errorf(i18n.T("error.client"), err)
	}
	defer a.Close()

	// One-shot invocation: fetch immediately, no debouncing.
	if err := a.history.Refresh(ctx, filter); err != nil {
		return err
	}

	printHistoryRecords(a.history.Conversations())
	return nil
}

func printHistoryRecords(records []history.Record) {
	if len(records) == 0 {
		fmt.Println(i18n.T("history.empty"))
		return
	}

	fmt.Println(i18n.T("history.title"))
	for _, rec := range records {
		marks := ""
		if rec.Pinned {
			marks += i18n.T("history.pin.mark")
		}
		if rec.Starred {
			marks += i18n.T("history.star.mark")
		}
		fmt.Println(i18n.Sprintf("history.item",
			marks,
			rec.Title,
			" #"+shortID(rec.ID),
			formatTime(rec.Timestamp),
			len(rec.Exchanges),
		))
	}
}

func runHistoryShow(ctx context.Context, id string) error {
	a, err := newApp(ctx)
	if err != nil {
		return fmt.Errorf(i18n.T("error.client"), err)
	}
	defer a.Close()

	conv, err := a.history.Load(ctx, id)
	if err != nil {
		if api.IsNotFound(err) {
			fmt.Println(i18n.Sprintf("history.not.found", id))
			return nil
		}
		return err
	}

	fmt.Printf("ID: %s\n", conv.ID)
	fmt.Printf("Title: %s\n", conv.Title)
	fmt.Printf("Updated: %s\n", formatTime(conv.UpdatedAt))
	fmt.Printf("Messages: %d\n", len(conv.Messages))
	fmt.Println()

	for _, msg := range conv.Messages {
		prompt := i18n.T("chat.prompt")
		if msg.Role == transcript.RoleAssistant {
			prompt = i18n.T("chat.assistant")
		}
		fmt.Printf("%s%s\n", prompt, msg.Text)
		for _, att := range msg.Attachments {
			fmt.Println(i18n.Sprintf("chat.attachment", att.Kind, att.Name, att.URL))
		}
		fmt.Println()
	}
	return nil
}

func runHistoryPatch(ctx context.Context, id string, fields map[string]any, okMsg string) error {
	a, err := newApp(ctx)
	if err != nil {
		return fmt.Errorf(i18n.T("error.client"), err)
	}
	defer a.Close()

	if err := a.history.PatchMetadata(ctx, id, fields); err != nil {
		if api.IsNotFound(err) {
			fmt.Println(i18n.Sprintf("history.not.found", id))
			return nil
		}
		return err
	}
	fmt.Println(okMsg)
	return nil
}

func runHistoryDelete(ctx context.Context, id string) error {
	a, err := newApp(ctx)
	if err != nil {
		return fmt.Errorf(i18n.T("error.client"), err)
	}
	defer a.Close()

	if err := a.history.Delete(ctx, id); err != nil {
		if api.IsNotFound(err) {
			fmt.Println(i18n.Sprintf("history.not.found", id))
			return nil
		}
		return err
	}
	fmt.Println(i18n.Sprintf("history.deleted", shortID(id)))
	return nil
}
