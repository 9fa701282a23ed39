package client

import (
	"context"
	"fmt"
	"os"

	"github.com/mdouchement/zotero/pkg/libzot"
	"github.com/pkg/errors"
)

// Cite prints the bibliography of the given items.
func (a *App) Cite(ctx context.Context, keys []string, opts libzot.RenderOptions) error {
	bib, err := a.Client.Render(ctx, keys, opts)
	if err != nil {
		return errors.Wrap(err, "could not render bibliography")
	}

	_, err = fmt.Fprintln(a.Out, bib)
	return err
}

// Export writes the items of the library in the given format to output, or prints them when output is empty.
func (a *App) Export(ctx context.Context, params libzot.ExportParams, output string) error {
	payload, err := a.Client.Export(ctx, params)
	if err != nil {
		return errors.Wrap(err, "could not export items")
	}

	if output == "" {
		_, err = fmt.Fprint(a.Out, payload)
		return err
	}

	if err = os.WriteFile(output, []byte(payload), 0o644); err != nil {
		return errors.Wrapf(err, "could not write %s", output)
	}
	a.printf("Exported items to %s\n", output)
	return nil
}
