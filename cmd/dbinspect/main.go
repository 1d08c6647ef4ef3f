// Command dbinspect dumps catalog statistics and runs maintenance tasks
// against a Shelfmark database.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shelfmarkapp/shelfmark-server/internal/store/sqlite"
)

func main() {
	var (
		dbPath  = flag.String("db-path", "", "path to the catalog database (defaults to $SHELFMARK_DB_PATH or ~/Shelfmark/catalog.db)")
		rebuild = flag.Bool("rebuild", false, "rebuild the search index from the book tables")
		purge   = flag.Bool("purge", false, "remove linked entities no book references")
	)
	flag.Parse()

	path := *dbPath
	if path == "" {
		path = os.Getenv("SHELFMARK_DB_PATH")
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to resolve home directory: %v", err)
		}
		path = filepath.Join(home, "Shelfmark", "catalog.db")
	}

	db, err := sqlite.Open(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	fmt.Println("=== Catalog Inspection ===")
	fmt.Println()

	for _, c := range []struct {
		label string
		count func(context.Context) (int64, error)
	}{
		{"Books", db.CountBooks},
		{"Authors", db.CountAuthors},
		{"Series", db.CountSeries},
		{"Publishers", db.CountPublishers},
		{"Search rows", db.CountSearchRows},
	} {
		n, err := c.count(ctx)
		if err != nil {
			log.Fatalf("Failed to count %s: %v", c.label, err)
		}
		fmt.Printf("%-12s %d\n", c.label+":", n)
	}

	books, _ := db.CountBooks(ctx)
	rows, _ := db.CountSearchRows(ctx)
	if books != rows {
		fmt.Printf("\nWARNING: search index has %d rows for %d books (run with -rebuild)\n", rows, books)
	}

	if *purge {
		fmt.Println()
		fmt.Println("=== Purging orphaned entities ===")
		for _, p := range []struct {
			label string
			purge func(context.Context) (int64, error)
		}{
			{"authors", db.PurgeAuthors},
			{"series", db.PurgeSeries},
			{"publishers", db.PurgePublishers},
			{"shelves", db.PurgeShelves},
		} {
			n, err := p.purge(ctx)
			if err != nil {
				log.Fatalf("Failed to purge %s: %v", p.label, err)
			}
			fmt.Printf("Removed %d orphaned %s\n", n, p.label)
		}
	}

	if *rebuild {
		fmt.Println()
		fmt.Println("=== Rebuilding search index ===")
		if err := db.RebuildSearchIndex(ctx); err != nil {
			log.Fatalf("Failed to rebuild search index: %v", err)
		}
		rows, err := db.CountSearchRows(ctx)
		if err != nil {
			log.Fatalf("Failed to count search rows: %v", err)
		}
		fmt.Printf("Search index rebuilt with %d rows\n", rows)
	}
}
