package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parleychat/parley/internal/i18n"
	"github.com/parleychat/parley/internal/voice"
	"github.com/spf13/cobra"
)

var voiceCmd = &cobra.Command{
	Use:   "voice <pcm-file|->",
	Short: i18n.T("voice.description"),
	Long: `Transcribe a raw PCM capture (16-bit little-endian mono) to text.

Reads the named file, or standard input when the argument is "-", wraps
the samples in a waveform container and sends them for transcription.
The recognized text is printed to standard output.`,
	Args: cobra.ExactArgs(1),
	RunE: runVoice,
}

func init() {
	rootCmd.AddCommand(voiceCmd)
}

func runVoice(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return fmt.Errorf(i18n.T("error.client"), err)
	}
	defer a.Close()

	var src io.Reader
	if args[0] == "-" {
		src = os.Stdin
	} else {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer f.Close()
		src = f
	}

	text, err := transcribeReader(ctx, a, src)
	if err != nil {
		// Silence is an outcome, not a failure.
		if errors.Is(err, voice.ErrNoSpeech) {
			fmt.Println(i18n.T("voice.nospeech"))
			return nil
		}
		if errors.Is(err, voice.ErrPermissionDenied) {
			return errors.New(i18n.T("voice.denied"))
		}
		return err
	}

	fmt.Println(text)
	return nil
}
