// Command import_books bulk-loads authors and their books from a JSON catalog:
//
//	{"authors": [{"name": "...", "biography": "...", "books": [{"title": "...", ...}]}]}
//
// Authors are matched by exact name, so re-running an import adds only what is
// missing. Books whose ISBN already exists are reported and skipped.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"library-service/library"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

type catalog struct {
	Authors []catalogAuthor `json:"authors"`
}

type catalogAuthor struct {
	Name      string        `json:"name"`
	Biography *string       `json:"biography"`
	Books     []catalogBook `json:"books"`
}

type catalogBook struct {
	Title              string       `json:"title"`
	ISBN               string       `json:"isbn"`
	Category           string       `json:"category"`
	PublicationDate    library.Date `json:"publication_date"`
	AvailabilityStatus *bool        `json:"availability_status"`
	TotalCopies        *int         `json:"total_copies"`
	AvailableCopies    *int         `json:"available_copies"`
}

// importer is the admin identity the catalog is written as.
var importer = library.Caller{Username: "import_books", Role: library.RoleAdmin}

func main() {
	var (
		driver string
		dsn    string
	)
	cmd := &cobra.Command{
		Use:           "import_books <catalog.json>",
		Short:         "Import authors and books from a JSON catalog",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), library.Dialect(driver), dsn, args[0])
		},
	}
	cmd.Flags().StringVar(&driver, "driver", string(library.DialectSQLite), "database driver (sqlite3 or pgx)")
	cmd.Flags().StringVar(&dsn, "dsn", "library.db", "database file (sqlite3) or connection URL (pgx)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, driver library.Dialect, dsn, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading catalog: %w", err)
	}
	var cat catalog
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &cat); err != nil {
		return fmt.Errorf("parsing catalog: %w", err)
	}

	db, err := library.Open(ctx, library.Options{Driver: driver, DSN: dsn})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	manager := library.NewManager(db)
	defer manager.Close()

	fmt.Fprintf(out, "Importing %d authors from %s...\n", len(cat.Authors), path)

	successCount := 0
	errorCount := 0

	for _, ca := range cat.Authors {
		authorID, err := ensureAuthor(ctx, manager, ca)
		if err != nil {
			fmt.Fprintf(out, "ERROR - author %q: %v\n", ca.Name, err)
			errorCount += len(ca.Books)
			continue
		}

		for _, cb := range ca.Books {
			fmt.Fprintf(out, "Importing: %s by %s... ", cb.Title, ca.Name)

			book, err := manager.CreateBook(ctx, importer, bookInput(cb, authorID))
			if err != nil {
				fmt.Fprintf(out, "ERROR - %v\n", describe(err))
				errorCount++
				continue
			}

			fmt.Fprintf(out, "SUCCESS (ID: %d)\n", book.ID)
			successCount++
		}
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d books\n", successCount)
	fmt.Fprintf(out, "Errors: %d\n", errorCount)

	if successCount > 0 {
		books, err := manager.ListBooks(ctx, importer, library.BookQuery{})
		if err != nil {
			return fmt.Errorf("listing books: %w", err)
		}
		fmt.Fprintln(out, "\nCatalog:")
		fmt.Fprintf(out, "%-4s %-50s %-15s %-30s\n", "ID", "Title", "ISBN", "Author")
		fmt.Fprintln(out, strings.Repeat("-", 102))
		for _, b := range books {
			fmt.Fprintf(out, "%-4d %-50s %-15s %-30s\n", b.ID, truncateString(b.Title, 50), b.ISBN, truncateString(b.AuthorName, 30))
		}
	}
	return nil
}

// ensureAuthor returns the id of the author with exactly ca.Name, creating it
// when absent.
func ensureAuthor(ctx context.Context, manager *library.LibraryManager, ca catalogAuthor) (int64, error) {
	candidates, err := manager.ListAuthors(ctx, importer, library.AuthorQuery{Search: ca.Name})
	if err != nil {
		return 0, err
	}
	if existing, ok := lo.Find(candidates, func(a library.AuthorView) bool { return a.Name == strings.TrimSpace(ca.Name) }); ok {
		return existing.ID, nil
	}

	created, err := manager.CreateAuthor(ctx, importer, library.AuthorInput{
		Name:      lo.ToPtr(ca.Name),
		Biography: ca.Biography,
	})
	if err != nil {
		return 0, err
	}
	return created.ID, nil
}

func bookInput(cb catalogBook, authorID int64) library.BookInput {
	in := library.BookInput{
		Title:              lo.ToPtr(cb.Title),
		ISBN:               lo.ToPtr(cb.ISBN),
		Category:           lo.ToPtr(cb.Category),
		AvailabilityStatus: cb.AvailabilityStatus,
		TotalCopies:        cb.TotalCopies,
		AvailableCopies:    cb.AvailableCopies,
		Author:             lo.ToPtr(authorID),
	}
	if !cb.PublicationDate.IsZero() {
		in.PublicationDate = lo.ToPtr(cb.PublicationDate)
	}
	return in
}

func describe(err error) string {
	var verr *library.ValidationError
	if errors.As(err, &verr) {
		parts := lo.MapToSlice(verr.Fields, func(field string, msgs []string) string {
			return field + ": " + strings.Join(msgs, " ")
		})
		sort.Strings(parts)
		return strings.Join(parts, "; ")
	}
	return err.Error()
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
