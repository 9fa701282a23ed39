package client

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/araddon/dateparse"
	"github.com/mdouchement/zotero/pkg/libzot"
	"github.com/pkg/errors"
)

// Duplicates prints the groups of top-level items sharing the same title and year.
func (a *App) Duplicates(ctx context.Context, opts ListOptions) error {
	items, err := a.Client.TopItems(opts.ListParams).All(ctx)
	if err != nil {
		return errors.Wrap(err, "could not list items")
	}

	groups := FindDuplicates(items)
	if len(groups) == 0 {
		a.printf("No duplicate found among %d items\n", len(items))
		return nil
	}

	if opts.JSON {
		return a.printJSON(groups)
	}
	for i, group := range groups {
		if i > 0 {
			fmt.Fprintln(a.Out)
		}
		if err = a.printItems(group); err != nil {
			return err
		}
	}
	return nil
}

// FindDuplicates groups the items having the same normalized title and publication year.
// Only the groups of at least two items are returned, in the order of their first item.
// Notes, attachments and untitled items are ignored.
func FindDuplicates(items []*libzot.Item) [][]*libzot.Item {
	var keys []string
	groups := map[string][]*libzot.Item{}

	for _, item := range items {
		if item.ItemType == libzot.ItemTypeNote || item.IsAttachment() {
			continue
		}

		title := normalizeTitle(item.Title)
		if title == "" {
			continue
		}

		k := title + "\x00" + year(item.Date)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], item)
	}

	var duplicates [][]*libzot.Item
	for _, k := range keys {
		if len(groups[k]) > 1 {
			duplicates = append(duplicates, groups[k])
		}
	}
	return duplicates
}

// normalizeTitle lowercases the title and folds its punctuation and spaces.
func normalizeTitle(title string) string {
	fields := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	return strings.Join(fields, " ")
}

// year returns the year of a free-form date, empty when it cannot be parsed.
func year(date string) string {
	date = strings.TrimSpace(date)
	if date == "" {
		return ""
	}

	t, err := dateparse.ParseAny(date)
	if err != nil {
		// Zotero dates are often a bare year.
		if len(date) == 4 && strings.IndexFunc(date, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
			return date
		}
		return ""
	}
	return t.Format("2006")
}
