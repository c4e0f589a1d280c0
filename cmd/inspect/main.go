// Command inspect dumps the raw keyspace of a data directory for
// debugging: post rows, order index entries, idempotency records and the
// order version row.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
)

func main() {
	path := flag.String("path", "", "pebble data directory")
	prefix := flag.String("prefix", "", "only keys with this prefix")
	values := flag.Bool("values", false, "print values as well")
	flag.Parse()
	if *path == "" {
		fmt.Fprintln(os.Stderr, "--path required")
		os.Exit(2)
	}

	db, err := pebble.Open(*path, &pebble.Options{ReadOnly: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "iter failed: %v\n", err)
		os.Exit(1)
	}
	defer iter.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		k := string(iter.Key())
		if *prefix != "" && (len(k) < len(*prefix) || k[:len(*prefix)] != *prefix) {
			continue
		}
		if *values {
			fmt.Printf("%s\t%s\n", k, iter.Value())
		} else {
			fmt.Println(k)
		}
		n++
	}
	if err := iter.Error(); err != nil {
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "%d keys\n", n)
}
