// libctl is the operator CLI for the loans database. The borrow saga has one
// failure mode it cannot repair on its own (a compensation that itself
// fails), so operators get commands to inspect loans, settle fines and find
// loans whose remote item state drifted.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	databaseURL string
	booksURL    string
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "libctl",
		Short:         "Operator tooling for the PUBA loans service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "loans database DSN")
	root.PersistentFlags().StringVar(&booksURL, "books-url", envOr("BOOKS_SERVICE_URL", "http://localhost:3001"), "books service base URL")

	root.AddCommand(newLoansCmd(), newFinesCmd(), newReconcileCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
