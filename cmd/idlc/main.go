// idlc compiles CUE interface descriptions and generates codec routines.
//
// Usage:
//
//	idlc check <schema>                 Validate and lint a schema
//	idlc gen <schema>                   Generate routines for the configured targets
//	idlc tags <schema> <type>           Show the tags of a type expression
//	idlc roundtrip <schema> <scenarios> Run round-trip scenarios
//	idlc runs --store <db>              List recorded runs
//	idlc diff --store <db> <base> <head> Compare two recorded runs
package main

import (
	"fmt"
	"os"

	"github.com/roach88/idlc/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "idlc: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
