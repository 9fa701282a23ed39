package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/mdouchement/zotero/internal/database"
	"github.com/mdouchement/zotero/internal/mockapi"
	"github.com/mdouchement/zotero/internal/mockapi/service"
	"github.com/mdouchement/zotero/internal/model"
	"github.com/muesli/coral"
	"github.com/pkg/errors"
)

const dbname = "zotero-mock.db"

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cfg string
)

func main() {
	c := &coral.Command{
		Use:     "zotero-mock",
		Short:   "Local emulation of the Zotero Web API",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    coral.ExactArgs(0),
	}
	initCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(initCmd)

	reindexCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(reindexCmd)

	serverCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(serverCmd)

	queryCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(queryCmd)

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func dbnameWithPath(path string) string {
	if len(path) == 0 {
		return dbname
	}
	return filepath.Join(path, dbname)
}

func load() (*koanf.Koanf, error) {
	konf := koanf.New(".")
	if err := konf.Load(file.Provider(cfg), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "could not load %s", cfg)
	}
	return konf, nil
}

var (
	initCmd = &coral.Command{
		Use:   "init",
		Short: "Init the database",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := load()
			if err != nil {
				return err
			}

			return database.StormInit(dbnameWithPath(konf.String("database_path")))
		},
	}

	//
	reindexCmd = &coral.Command{
		Use:   "reindex",
		Short: "Reindex the database",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := load()
			if err != nil {
				return err
			}

			return database.StormReIndex(dbnameWithPath(konf.String("database_path")))
		},
	}

	//
	//
	serverCmd = &coral.Command{
		Use:   "server",
		Short: "Start server",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := load()
			if err != nil {
				return err
			}

			if konf.String("api_key") == "" {
				return errors.New("api_key not found")
			}
			if konf.String("library_id") == "" {
				return errors.New("library_id not found")
			}

			libraryType := konf.String("library_type")
			if libraryType == "" {
				libraryType = "users"
			}
			if libraryType != "users" && libraryType != "groups" {
				return errors.Errorf("invalid library_type %q", libraryType)
			}

			db, err := database.StormOpen(dbnameWithPath(konf.String("database_path")))
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			library := model.LibraryID(libraryType, konf.String("library_id"))
			if _, err = service.New(db).EnsureLibrary(library, konf.String("library_name")); err != nil {
				return errors.Wrapf(err, "could not create library %s", library)
			}

			engine := mockapi.EchoEngine(mockapi.Controller{
				Version:     version,
				Database:    db,
				APIKey:      konf.String("api_key"),
				LibraryType: libraryType,
				LibraryID:   konf.String("library_id"),
				PageLimit:   konf.Int("page_limit"),
			})
			mockapi.PrintRoutes(engine)

			address := konf.String("address")
			message := "could not run server"
			log.Printf("Serving library %s on %s\n", library, address)
			parts := strings.Split(address, ":")
			if len(parts) == 2 && parts[0] == "unix" {
				socketFile := parts[1]
				if _, err := os.Stat(socketFile); err == nil {
					log.Printf("Removing existing %s\n", socketFile)
					os.Remove(socketFile)
				}
				defer os.Remove(socketFile)
				listener, err := net.Listen(parts[0], socketFile)
				if err != nil {
					return err
				}
				return errors.Wrap(engine.Server.Serve(listener), message)
			}
			return errors.Wrap(engine.Start(address), message)
		},
	}

	// zotero-mock query -c zotero-mock.yml "SELECT count(*) FROM objects WHERE Kind = 'item' AND UpdatedAt > '2024-02-16 20:52:55'"
	queryCmd = &coral.Command{
		Use:   "query SQL",
		Short: "Run a SELECT statement on the database",
		Args:  coral.ExactArgs(1),
		RunE: func(_ *coral.Command, args []string) error {
			sel, err := database.ParseSelect(args[0])
			if err != nil {
				return err
			}

			konf, err := load()
			if err != nil {
				return err
			}

			db, err := database.StormOpen(dbnameWithPath(konf.String("database_path")))
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			result, err := db.Select(sel)
			if err != nil {
				return err
			}

			if sel.Count {
				fmt.Println("Count:", result)
				return nil
			}
			return jsondump(printable(result))
		},
	}
)

type (
	objectView struct {
		*model.Object
		Data json.RawMessage
	}

	fileView struct {
		*model.File
		Content string
	}
)

// printable replaces the binary fields of the records by a readable form.
func printable(records any) any {
	switch v := records.(type) {
	case []*model.Object:
		views := make([]objectView, 0, len(v))
		for _, o := range v {
			data := json.RawMessage(o.Data)
			if !json.Valid(data) {
				data, _ = json.Marshal(string(o.Data))
			}
			views = append(views, objectView{Object: o, Data: data})
		}
		return views
	case []*model.File:
		views := make([]fileView, 0, len(v))
		for _, f := range v {
			views = append(views, fileView{File: f, Content: humanize.Bytes(uint64(len(f.Content)))})
		}
		return views
	}
	return records
}

func jsondump(v any) error {
	d, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "could not encode records")
	}
	fmt.Println(string(d))
	return nil
}
