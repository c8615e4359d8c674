package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"

	"support-chat/internal"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	// "msg:" lists messages only; "room:" the rooms; "" everything including the indexes.
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	summary := flag.Bool("summary", false, "Only count entries per type")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Room", "Entity ID", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	perType := make(map[string]int)
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(v []byte) error {
				row := internal.MapRow(key, v)
				perType[row.Type]++
				if !*summary {
					table.Append([]string{row.Key, row.Type, row.Timestamp, row.Room, row.EntityID, row.Detail})
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	if !*summary {
		table.Render()
	}
	types := lo.Keys(perType)
	slices.Sort(types)
	for _, t := range types {
		fmt.Printf("%-12s %d\n", t, perType[t])
	}
	fmt.Printf("\n%d entries under %q\n", lo.Sum(lo.Values(perType)), *prefix)
}

// openDB opens the store read-only next to a running chatd.
func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil && strings.Contains(err.Error(), "Log truncate required") {
		// A crashed writer leaves a log to truncate, which needs a write open first.
		repair, repairErr := badger.Open(badger.DefaultOptions(path).WithLogger(nil).WithBypassLockGuard(true))
		if repairErr != nil {
			return nil, fmt.Errorf("repair failed: %w", repairErr)
		}
		_ = repair.Close()
		return badger.Open(opts)
	}
	return db, err
}
