package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/imgstudio/imgstudio/pkg/models"
)

// Displayer renders image cards inline in the terminal using the kitty
// graphics protocol.
type Displayer struct {
	out io.Writer
}

func New(out io.Writer) *Displayer {
	return &Displayer{out: out}
}

func (d *Displayer) Display(img *models.GeneratedImage) error {
	data, err := imageData(img)
	if err != nil {
		return err
	}

	enc := NewKittyEncoder(d.out)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}

	fmt.Fprintln(d.out)
	return nil
}

func (d *Displayer) DisplayAll(resp *models.Response) error {
	for i := range resp.Images {
		if err := d.Display(&resp.Images[i]); err != nil {
			return fmt.Errorf("failed to display image %d: %w", i, err)
		}
	}
	return nil
}

func imageData(img *models.GeneratedImage) ([]byte, error) {
	if len(img.Data) > 0 {
		return img.Data, nil
	}
	if img.Filename != "" {
		return os.ReadFile(img.Filename)
	}
	return nil, models.ErrNoImageData
}

func IsTerminalSupported() bool {
	termProgram := strings.ToLower(os.Getenv("TERM_PROGRAM"))
	supportedPrograms := []string{"kitty", "ghostty", "iterm.app", "wezterm"}

	for _, prog := range supportedPrograms {
		if termProgram == prog {
			return true
		}
	}

	if os.Getenv("KITTY_WINDOW_ID") != "" {
		return true
	}

	if os.Getenv("ITERM_SESSION_ID") != "" {
		return true
	}

	term := strings.ToLower(os.Getenv("TERM"))
	return strings.Contains(term, "kitty") || strings.Contains(term, "ghostty")
}
