// cmd/tools/pass-verify/main.go
//
// Offline verification of a generated pass bundle. Checks the archive
// layout, recomputes the manifest digests and validates the detached
// signature, without needing the signing key.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"walletpass/pkg/passkit"
)

func main() {
	file := flag.String("file", "", "Path to the .pkpass archive to verify")
	list := flag.Bool("list", false, "List bundle contents after verification")
	flag.Parse()

	if *file == "" {
		fmt.Println("Error: -file is required.")
		flag.Usage()
		os.Exit(1)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", *file, err)
		os.Exit(1)
	}

	bundle, err := passkit.Inspect(data)
	if err != nil {
		fmt.Printf("Layout check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Layout OK: %d files\n", len(bundle.Files))

	if err := bundle.VerifyManifest(); err != nil {
		fmt.Printf("Manifest check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Manifest OK: all digests match")

	cert, err := bundle.VerifySignature()
	if err != nil {
		fmt.Printf("Signature check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Signature OK: signed by %q (serial %s)\n", cert.Subject.CommonName, cert.SerialNumber)

	if *list {
		names := make([]string, 0, len(bundle.Files))
		for name := range bundle.Files {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %-20s %6d bytes\n", name, len(bundle.Files[name]))
		}
	}
}
