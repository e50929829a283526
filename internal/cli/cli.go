// Package cli holds the pieces shared by the edgebench commands.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"edgebench/internal/imageio"
	"edgebench/internal/imageio/cvio"

	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
)

// Decoder names accepted by -decoder.
const (
	DecoderOpenCV = "opencv"
	DecoderGo     = "go"
)

// NewLoader returns the image loader selected by name.
func NewLoader(name string) (imageio.Loader, error) {
	switch name {
	case DecoderOpenCV, "":
		return cvio.Loader{}, nil
	case DecoderGo:
		return imageio.Decoder{}, nil
	default:
		return nil, fmt.Errorf("unknown decoder %q (want %s or %s)", name, DecoderOpenCV, DecoderGo)
	}
}

// NewProgress returns a progress bar on stderr so stdout stays parsable.
func NewProgress(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(ansi.NewAnsiStderr()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription(description),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// Errorf prints an "Error: " line to w and returns exit status 1.
func Errorf(w io.Writer, format string, args ...any) int {
	fmt.Fprintf(w, "Error: "+format+"\n", args...)
	return 1
}

// Parse parses args with fs, which must use flag.ContinueOnError, and maps
// the outcome to an exit status: -1 to continue, 0 after -h, 2 on bad flags.
func Parse(fs *flag.FlagSet, args []string) int {
	err := fs.Parse(args)
	switch {
	case err == nil:
		return -1
	case errors.Is(err, flag.ErrHelp):
		return 0
	default:
		return 2
	}
}
