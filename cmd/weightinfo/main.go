// Command weightinfo loads a network weight file and prints its
// structural parameters, for sanity-checking a weight file before
// pointing the engine at it.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/lczerogo/engine/internal/network"
	"github.com/lczerogo/engine/internal/weightfile"
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatal("usage: weightinfo <weights-file>")
	}

	w, err := weightfile.Load(flag.Arg(0))
	if err != nil {
		log.Fatalf("failed to load weights: %v", err)
	}

	net, err := network.New(w)
	if err != nil {
		log.Fatalf("failed to build network: %v", err)
	}

	fmt.Printf("format version:   %d\n", w.Version)
	fmt.Printf("input channels:   %d\n", net.InputChannels())
	fmt.Printf("tower channels:   %d\n", net.Channels())
	fmt.Printf("residual blocks:  %d\n", net.ResidualBlocks())
	fmt.Printf("policy outputs:   %d\n", net.PolicyOutputs())
}
