package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"github.com/mdouchement/zotero/internal/client"
	"github.com/mdouchement/zotero/pkg/libzot"
	"github.com/spf13/cobra"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	envfile string
	verbose bool
	debug   bool
)

func main() {
	c := &cobra.Command{
		Use:           "zot",
		Short:         "Zotero Web API client",
		Version:       fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.PersistentFlags().StringVar(&envfile, "env", client.DefaultEnvFile, "Configuration file")
	c.PersistentFlags().String("library-type", "", "Library type (users or groups)")
	c.PersistentFlags().String("library-id", "", "User or group ID")
	c.PersistentFlags().String("base-url", "", "Zotero Web API endpoint")
	c.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log requests in "+client.LogFile)
	c.PersistentFlags().BoolVar(&debug, "debug", false, "Dump fetched objects")

	c.AddCommand(configureCmd)
	c.AddCommand(itemsCmd())
	c.AddCommand(itemCmd())
	c.AddCommand(collectionsCmd())
	c.AddCommand(collectionCmd())
	c.AddCommand(tagsCmd())
	c.AddCommand(tagCmd())
	c.AddCommand(attachmentsCmd())
	c.AddCommand(attachmentCmd())
	c.AddCommand(citeCmd())
	c.AddCommand(exportCmd())
	c.AddCommand(duplicatesCmd())
	c.AddCommand(versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := c.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(client.ExitCode(err))
	}
}

// app loads the configuration and returns the App running cmd.
func app(cmd *cobra.Command) (*client.App, error) {
	cfg, err := client.Load(envfile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	return client.New(cfg, client.NewLogger(verbose, client.LogFile), debug)
}

// run wraps an App command into a cobra RunE.
func run(f func(ctx context.Context, a *client.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := app(cmd)
		if err != nil {
			return err
		}
		return f(cmd.Context(), a, args)
	}
}

// listFlags binds the filters shared by the listing commands.
func listFlags(cmd *cobra.Command, opts *client.ListOptions) {
	f := cmd.Flags()
	f.IntVarP(&opts.Limit, "limit", "l", 0, "Maximum number of results (0 for all)")
	f.IntVar(&opts.Start, "start", 0, "Index of the first result")
	f.StringVarP(&opts.Query, "query", "q", "", "Quick search")
	f.StringVar(&opts.QueryMode, "qmode", "", "Quick search mode (titleCreatorYear or everything)")
	f.StringVar(&opts.Sort, "sort", "", "Sort field (dateAdded, dateModified, title, creator, itemType, date)")
	f.StringVar(&opts.Direction, "direction", "", "Sort direction (asc or desc)")
	f.BoolVar(&opts.JSON, "json", false, "Print JSON")
}

// itemFlags binds the filters of the item listings.
func itemFlags(cmd *cobra.Command, opts *client.ListOptions) {
	listFlags(cmd, opts)
	f := cmd.Flags()
	f.StringVarP(&opts.ItemType, "type", "t", "", "Item type filter (e.g. book, -attachment, 'book || journalArticle')")
	f.StringArrayVar(&opts.Tags, "tag", nil, "Tag filter, repeatable (e.g. physics, -read, 'a || b')")
	f.BoolVar(&opts.IncludeTrashed, "trashed", false, "Include the items in the trash")
	f.StringSliceVar(&opts.ItemKeys, "keys", nil, "Restrict to the given item keys")
	f.IntVar(&opts.Since, "since", 0, "Only the items modified after the given library version")
}

// input opens the JSON document given as argument, "-" or nothing meaning stdin.
func input(args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(os.Stdin), nil
	}

	f, err := os.Open(args[0])
	if err != nil {
		return nil, &libzot.Error{Kind: libzot.KindInvalidArgument, Message: err.Error()}
	}
	return f, nil
}

var (
	configureCmd = &cobra.Command{
		Use:   "configure",
		Short: "Store the API key and the library ID in the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return client.Configure(envfile)
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Printf("zot %s (Zotero Web API v%s)\n", cmd.Root().Version, libzot.APIVersion)
		},
	}
)

func itemsCmd() *cobra.Command {
	var opts client.ListOptions
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List the items of the library",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *client.App, _ []string) error {
			return a.Items(ctx, opts)
		}),
	}
	itemFlags(cmd, &opts)
	cmd.Flags().BoolVar(&opts.Top, "top", false, "Only top-level items")
	return cmd
}

func itemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage an item",
	}

	var asJSON bool
	get := &cobra.Command{
		Use:   "get KEY",
		Short: "Print an item",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *client.App, args []string) error {
			return a.Item(ctx, args[0], asJSON)
		}),
	}
	get.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	create := &cobra.Command{
		Use:   "create [FILE]",
		Short: "Create an item from a JSON document (stdin by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: run(func(ctx context.Context, a *client.App, args []string) error {
			r, err := input(args)
			if err != nil {
				return err
			}
			defer r.Close()
			return a.CreateItem(ctx, r)
		}),
	}

	var version int
	update := &cobra.Command{
		Use:   "update KEY [FILE]",
		Short: "Replace an item with a JSON document (stdin by default)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: run(func(ctx context.Context, a *client.App, args []string) error {
			r, err := input(args[1:])
			if err != nil {
				return err
			}
			defer r.Close()
			return a.UpdateItem(ctx, args[0], r, version)
		}),
	}
	update.Flags().IntVar(&version, "version", 0, "Expected version of the item (current version when 0)")

	del := &cobra.Command{
		Use:   "delete KEY",
		Short: "Delete an item and its children",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *client.App, args []string) error {
			return a.DeleteItem(ctx, args[0], version)
		}),
	}
	del.Flags().IntVar(&version, "version", 0, "Expected version of the item (current version when 0)")

	trash := &cobra.Command{
		Use:   "trash KEY",
		Short: "Move an item to the trash",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *client.App, args []string) error {
			return a.TrashItem(ctx, args[0], version)
		}),
	}
	trash.Flags().IntVar(&version, "version", 0, "Expected version of the item (current version when 0)")

	var opts client.ListOptions
	children := &cobra.Command{
		Use:   "children KEY",
		Short: "List the notes and attachments of an item",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *client.App, args []string) error {
			return a.Children(ctx, args[0], opts)
		}),
	}
	itemFlags(children, &opts)

	cmd.AddCommand(get, create, update, del, trash, children)
	return cmd
}

func collectionsCmd() *cobra.Command {
	var (
		opts   client.ListOptions
		parent string
	)
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List the collections of the library",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *client.App, _ []string) error {
			return a.Collections(ctx, parent, opts)
		}),
	}
	listFlags(cmd, &opts)
	cmd.Flags().BoolVar(&opts.Top, "top", false, "Only top-level collections")
	cmd.Flags().StringVar(&parent, "parent", "", "Only the subcollections of the given collection")
	return cmd
}

func collectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage a collection",
	}

	var parent string
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *client.App, args []string) error {
			return a.CreateCollection(ctx, args[0], parent)
		}),
	}
	create.Flags().StringVar(&parent, "parent", "", "Parent collection")

	rename := &cobra.Command{
		Use:   "rename KEY NAME",
		Short: "Rename a collection",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, a *client.App, args []string) error {
			return a.RenameCollection(ctx, args[0], args[1])
		}),
	}

	var version int
	del := &cobra.Command{
		Use:   "delete KEY",
		Short: "Delete a collection and its subcollections, their items are kept",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *client.App, args []string) error {
			return a.DeleteCollection(ctx, args[0], version)
		}),
	}
	del.Flags().IntVar(&version, "version", 0, "Expected version of the collection (current version when 0)")

	var opts client.ListOptions
	items := &cobra.Command{
		Use:   "items KEY",
		Short: "List the items of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *client.App, args []string) error {
			return a.CollectionItems(ctx, args[0], opts)
		}),
	}
	itemFlags(items, &opts)

	cmd.AddCommand(create, rename, del, items)
	return cmd
}

func tagsCmd() *cobra.Command {
	var (
		opts client.ListOptions
		item string
	)
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List the tags of the library or of an item",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *client.App, _ []string) error {
			return a.Tags(ctx, item, opts)
		}),
	}
	listFlags(cmd, &opts)
	cmd.Flags().StringVar(&item, "item", "", "Only the tags of the given item")
	return cmd
}

func tagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage tags",
	}

	var version int
	add := &cobra.Command{
		Use:   "add KEY TAG...",
		Short: "Tag an item",
		Args:  cobra.MinimumNArgs(2),
		RunE: run(func(ctx context.Context, a *client.App, args []string) error {
			return a.AddTags(ctx, args[0], args[1:], version)
		}),
	}
	add.Flags().IntVar(&version, "version", 0, "Expected version of the item")

	rm := &cobra.Command{
		Use:   "rm KEY TAG...",
		Short: "Untag an item",
		Args:  cobra.MinimumNArgs(2),
		RunE: run(func(ctx context.Context, a *client.App, args []string) error {
			return a.RemoveTags(ctx, args[0], args[1:], version)
		}),
	}
	rm.Flags().IntVar(&version, "version", 0, "Expected version of the item")

	del := &cobra.Command{
		Use:   "delete TAG...",
		Short: "Remove tags from every item of the library",
		Args:  cobra.MinimumNArgs(1),
		RunE: run(func(ctx context.Context, a *client.App, args []string) error {
			return a.DeleteTags(ctx, args, version)
		}),
	}
	del.Flags().IntVar(&version, "version", 0, "Expected version of the library (current version when 0)")

	cmd.AddCommand(add, rm, del)
	return cmd
}

func attachmentsCmd() *cobra.Command {
	var (
		opts client.ListOptions
		item string
	)
	cmd := &cobra.Command{
		Use:   "attachments",
		Short: "List the attachments of the library or of an item",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *client.App, _ []string) error {
			return a.Attachments(ctx, item, opts)
		}),
	}
	listFlags(cmd, &opts)
	cmd.Flags().StringVar(&item, "item", "", "Only the attachments of the given item")
	return cmd
}

func attachmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attachment",
		Short: "Transfer attachment files",
	}

	var parent, contentType string
	upload := &cobra.Command{
		Use:   "upload FILE",
		Short: "Attach a file to an item",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *client.App, args []string) error {
			return a.Upload(ctx, parent, args[0], contentType)
		}),
	}
	upload.Flags().StringVar(&parent, "item", "", "Parent item (standalone attachment when empty)")
	upload.Flags().StringVar(&contentType, "content-type", "", "Content type (guessed from the extension when empty)")

	download := &cobra.Command{
		Use:   "download KEY [DEST]",
		Short: "Download the file of an attachment",
		Args:  cobra.RangeArgs(1, 2),
		RunE: run(func(ctx context.Context, a *client.App, args []string) error {
			var dest string
			if len(args) == 2 {
				dest = args[1]
			}
			return a.Download(ctx, args[0], dest)
		}),
	}

	cmd.AddCommand(upload, download)
	return cmd
}

func citeCmd() *cobra.Command {
	var opts libzot.RenderOptions
	cmd := &cobra.Command{
		Use:   "cite KEY...",
		Short: "Print the bibliography of items",
		Args:  cobra.MinimumNArgs(1),
		RunE: run(func(ctx context.Context, a *client.App, args []string) error {
			return a.Cite(ctx, args, opts)
		}),
	}
	cmd.Flags().StringVarP(&opts.Style, "style", "s", libzot.DefaultStyle, "CSL style")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", libzot.RenderText, "Output format (html, text, markdown)")
	cmd.Flags().StringVar(&opts.Locale, "locale", "", "CSL locale (e.g. en-US)")
	return cmd
}

func exportCmd() *cobra.Command {
	var (
		opts   client.ListOptions
		params libzot.ExportParams
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the items of the library",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *client.App, _ []string) error {
			params.ListParams = opts.ListParams
			return a.Export(ctx, params, output)
		}),
	}
	itemFlags(cmd, &opts)
	cmd.Flags().StringVarP(&params.Format, "format", "f", libzot.ExportBibTeX, "Export format ("+strings.Join(libzot.ExportFormats, ", ")+")")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (stdout when empty)")
	cmd.Flags().MarkHidden("json")
	return cmd
}

func duplicatesCmd() *cobra.Command {
	var opts client.ListOptions
	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "Find the items sharing the same title and year",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *client.App, _ []string) error {
			return a.Duplicates(ctx, opts)
		}),
	}
	itemFlags(cmd, &opts)
	return cmd
}
