package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/parleychat/parley/internal/corpus"
	"github.com/parleychat/parley/internal/i18n"
	"github.com/spf13/cobra"
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: i18n.T("rag.description"),
}

var corpusListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge bases",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCorpusList(cmd.Context())
	},
}

var corpusBuildCmd = &cobra.Command{
	Use:   "build <name> <file>...",
	Short: "Upload documents and build a knowledge base",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCorpusBuild(cmd.Context(), args[0], args[1:])
	},
}

var corpusActivateCmd = &cobra.Command{
	Use:   "activate <name>",
	Short: "Include a knowledge base in upcoming queries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCorpusToggle(cmd.Context(), args[0], true)
	},
}

var corpusDeactivateCmd = &cobra.Command{
	Use:   "deactivate <name>",
	Short: "Exclude a knowledge base from upcoming queries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCorpusToggle(cmd.Context(), args[0], false)
	},
}

var corpusRenameCmd = &cobra.Command{
	Use:   "rename <old-name> <new-name>",
	Short: "Rename a knowledge base",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCorpusRename(cmd.Context(), args[0], args[1])
	},
}

var corpusDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a knowledge base and its index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCorpusDelete(cmd.Context(), args[0])
	},
}

func init() {
	corpusCmd.AddCommand(corpusListCmd)
	corpusCmd.AddCommand(corpusBuildCmd)
	corpusCmd.AddCommand(corpusActivateCmd)
	corpusCmd.AddCommand(corpusDeactivateCmd)
	corpusCmd.AddCommand(corpusRenameCmd)
	corpusCmd.AddCommand(corpusDeleteCmd)
	rootCmd.AddCommand(corpusCmd)
}

func runCorpusList(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return fmt.Errorf(i18n.T("error.client"), err)
	}
	defer a.Close()

	corpora, err := a.corpora.List(ctx)
	if err != nil {
		return err
	}
	if len(corpora) == 0 {
		fmt.Println(i18n.T("rag.empty"))
		return nil
	}

	fmt.Println(i18n.T("rag.title"))
	for _, c := range corpora {
		mark := i18n.T("rag.inactive.mark")
		if c.Active {
			mark = i18n.T("rag.active.mark")
		}
		fmt.Println(i18n.Sprintf("rag.item", mark, c.Name, len(c.Files), c.CreatedAt))
	}
	return nil
}

func runCorpusBuild(ctx context.Context, name string, paths []string) error {
	a, err := newApp(ctx)
	if err != nil {
		return fmt.Errorf(i18n.T("error.client"), err)
	}
	defer a.Close()

	uploaded, err := a.corpora.UploadPaths(ctx, paths...)
	if err != nil {
		return err
	}

	skipped, err := a.corpora.Build(ctx, name, uploaded)
	if err != nil {
		return err
	}
	a.saveActiveCorpora()

	if skipped {
		fmt.Println(i18n.Sprintf("rag.built.skipped", name))
	} else {
		fmt.Println(i18n.Sprintf("rag.built", name, len(uploaded)))
	}
	return nil
}

func runCorpusToggle(ctx context.Context, name string, active bool) error {
	a, err := newApp(ctx)
	if err != nil {
		return fmt.Errorf(i18n.T("error.client"), err)
	}
	defer a.Close()

	if active {
		a.corpora.Activate(name)
	} else {
		a.corpora.Deactivate(name)
	}
	a.saveActiveCorpora()

	if active {
		fmt.Println(i18n.Sprintf("rag.activated", name))
	} else {
		fmt.Println(i18n.Sprintf("rag.deactivated", name))
	}
	return nil
}

func runCorpusRename(ctx context.Context, oldName, newName string) error {
	a, err := newApp(ctx)
	if err != nil {
		return fmt.Errorf(i18n.T("error.client"), err)
	}
	defer a.Close()

	if err := a.corpora.Rename(ctx, oldName, newName); err != nil {
		return err
	}
	a.saveActiveCorpora()
	fmt.Println(i18n.Sprintf("rag.renamed", oldName, newName))
	return nil
}

func runCorpusDelete(ctx context.Context, name string) error {
	a, err := newApp(ctx)
	if err != nil {
		return fmt.Errorf(i18n.T("error.client"), err)
	}
	defer a.Close()

	if err := a.corpora.Delete(ctx, name); err != nil {
		if errors.Is(err, corpus.ErrNotConfirmed) {
			fmt.Println(i18n.T("rag.not.confirmed"))
			return nil
		}
		return err
	}
	a.saveActiveCorpora()
	fmt.Println(i18n.Sprintf("rag.deleted", name))
	return nil
}
