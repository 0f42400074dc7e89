package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parleychat/parley/internal/api"
	"github.com/parleychat/parley/internal/i18n"
	"github.com/spf13/cobra"
)

var uploadKind string

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: i18n.T("upload.description"),
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadKind, "kind", "files", "storage group: images or files")
	rootCmd.AddCommand(uploadCmd)
}

// runUpload pushes files through the generic upload boundary and prints
// the server-side name each one was stored under.
func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var kind api.UploadKind
	switch uploadKind {
	case "images", "image":
		kind = api.UploadImage
	case "files", "file":
		kind = api.UploadFile
	default:
		return fmt.Errorf("unknown upload kind %q (images or files)", uploadKind)
	}

	a, err := newApp(ctx)
	if err != nil {
		return fmt.Errorf(i18n.T("error.client"), err)
	}
	defer a.Close()

	for _, p := range args {
		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("opening %s: %w", p, err)
		}
		stored, err := a.client.Upload(ctx, kind, filepath.Base(f.Name()), f)
		f.Close()
		if err != nil {
			return fmt.Errorf("uploading %s: %w", p, err)
		}
		fmt.Println(i18n.Sprintf("upload.item", stored.Name, stored.Path))
	}
	return nil
}
