//
// libzot is a client of the Zotero Web API (v3) for managing the items, collections, tags and attachments of a library.
//

// Create client
//
//	client, err := libzot.NewClient(libzot.Config{
//		APIKey:    "P9NiFoyLeZu2bZNvvuQPDWsd",
//		LibraryID: "475425",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
// List items
//
//	it := client.Items(libzot.ListParams{Query: "Hawking", Tags: []string{"physics"}, Limit: 20})
//	for it.Next(ctx) {
//		item := it.Value()
//		fmt.Println(item.Key, item.Title)
//	}
//	if err := it.Err(); err != nil {
//		log.Fatal(err)
//	}
//
// Create an item
//
//	item, err := client.CreateItem(ctx, &libzot.Item{
//		ItemType: libzot.ItemTypeBook,
//		Title:    "A Brief History of Time",
//		Creators: []libzot.Creator{{CreatorType: "author", FirstName: "Stephen", LastName: "Hawking"}},
//		Date:     "1988",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Update an item
//
//	item.Title += " (Updated)"
//	item, err = client.UpdateItem(ctx, item.Key, item, item.Version)
//	if libzot.IsKind(err, libzot.KindVersionConflict) {
//		// The item has been modified by someone else, fetch it again and retry.
//	}
//
// Tag an item
//
//	version, err := client.AddTags(ctx, item.Key, []string{"to-read"}, item.Version)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Render a bibliography
//
//	bib, err := client.Render(ctx, []string{item.Key}, libzot.RenderOptions{Style: "apa", Format: libzot.RenderText})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(bib)
package libzot
