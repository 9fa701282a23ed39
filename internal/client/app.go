package client

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mdouchement/zotero/pkg/libzot"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
	"github.com/sanity-io/litter"
	"github.com/sirupsen/logrus"
)

var notes = bluemonday.StrictPolicy()

// An App runs the zot commands against a Zotero library.
type App struct {
	Client libzot.Client
	Logger logrus.FieldLogger
	Out    io.Writer
	Err    io.Writer
	// Debug dumps the objects fetched from the library on Err.
	Debug bool
}

// New returns an App for the given configuration.
func New(cfg Config, logger logrus.FieldLogger, debug bool) (*App, error) {
	client, err := cfg.Client(libzot.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	return &App{
		Client: client,
		Logger: logger,
		Out:    os.Stdout,
		Err:    os.Stderr,
		Debug:  debug,
	}, nil
}

func (a *App) debug(v any) {
	if a.Debug {
		fmt.Fprintln(a.Err, litter.Sdump(v))
	}
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.Out, format, args...)
}

func (a *App) printJSON(v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "could not serialize value")
	}

	_, err = fmt.Fprintln(a.Out, string(payload))
	return err
}

func (a *App) printItems(items []*libzot.Item) error {
	w := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVERSION\tTYPE\tCREATOR\tDATE\tTITLE")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n", item.Key, item.Version, item.ItemType, creator(item), item.Date, display(item))
	}
	return w.Flush()
}

func (a *App) printCollections(collections []*libzot.Collection) error {
	w := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVERSION\tPARENT\tNAME")
	for _, c := range collections {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", c.Key, c.Version, c.ParentCollection, c.Name)
	}
	return w.Flush()
}

func (a *App) printTags(tags []libzot.Tag) error {
	w := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tTYPE\tITEMS")
	for _, t := range tags {
		kind := "manual"
		if t.Type == libzot.TagTypeAutomatic {
			kind = "automatic"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\n", t.Tag, kind, t.NumItems)
	}
	return w.Flush()
}

// creator returns the name of the first creator, followed by "et al." when there are more.
func creator(item *libzot.Item) string {
	switch len(item.Creators) {
	case 0:
		return ""
	case 1:
		return item.Creators[0].String()
	default:
		return item.Creators[0].String() + " et al."
	}
}

// display returns the title of the item, its file or its note for the untitled ones.
func display(item *libzot.Item) string {
	switch {
	case item.Title != "":
		return item.Title
	case item.Filename != "":
		return item.Filename
	case item.Note != "":
		note := []rune(strings.Join(strings.Fields(html.UnescapeString(notes.Sanitize(item.Note))), " "))
		if len(note) > 60 {
			return string(note[:60]) + "..."
		}
		return string(note)
	}
	return ""
}
