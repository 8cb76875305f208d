package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime/pprof"

	"github.com/lczerogo/engine/internal/accelerator"
	"github.com/lczerogo/engine/internal/network"
	"github.com/lczerogo/engine/internal/planes"
	"github.com/lczerogo/engine/internal/search"
	"github.com/lczerogo/engine/internal/uci"
	"github.com/lczerogo/engine/internal/weightfile"
)

// defaultWeightsFile is the weight file name this binary looks for
// alongside an explicit -weights flag, the same auto-discovery role
// nn-*.nnue file names used to play for the NNUE-era binary.
const defaultWeightsFile = "weights.txt.gz"

var (
	cpuprofile  = flag.String("cpuprofile", "", "write cpu profile to file")
	weightsPath = flag.String("weights", "", "path to the network weights file")
	selfCheck   = flag.Bool("selfcheck", true, "periodically cross-check the fast evaluator against the reference path")
)

func main() {
	flag.Parse()

	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
		log.Printf("CPU profiling enabled, writing to %s", profilePath)
	}

	path := *weightsPath
	if path == "" {
		path = findWeightsFile()
	}
	if path == "" {
		log.Fatal("no weights file found; pass -weights <path>")
	}

	w, err := weightfile.Load(path)
	if err != nil {
		log.Fatalf("failed to load weights from %s: %v", path, err)
	}
	net, err := network.New(w)
	if err != nil {
		log.Fatalf("failed to build network from %s: %v", path, err)
	}
	if net.InputChannels() != planes.NumChannels {
		err := &weightfile.LoadError{
			File: path,
			Message: fmt.Sprintf("network expects %d input planes, but this engine always generates %d (version/format mismatch)",
				net.InputChannels(), planes.NumChannels),
		}
		log.Fatal(err)
	}
	log.Printf("loaded network: %s (%d channels, %d residual blocks)", path, net.Channels(), net.ResidualBlocks())

	cfg := search.DefaultConfig()
	var evaluator accelerator.Evaluator = &accelerator.NetEvaluator{Net: net, Temp: cfg.SoftmaxTemperature}
	if *selfCheck {
		evaluator = accelerator.NewSelfChecking(evaluator, &accelerator.ReferenceEvaluator{Net: net, Temp: cfg.SoftmaxTemperature}, 1)
	}

	driver := search.NewDriver(evaluator, cfg)

	protocol := uci.New(driver)
	protocol.Run()
}

// findWeightsFile searches the same kind of standard locations the
// NNUE-era binary searched for its network files, now looking for a
// single text (optionally gzip) weights file instead of a pair of
// binary NNUE files.
func findWeightsFile() string {
	searchPaths := []string{
		getAppSupportDir(),
		filepath.Join(getHomeDir(), ".lczerogo", "weights"),
		"./weights",
		".",
	}

	for _, dir := range searchPaths {
		for _, name := range []string{defaultWeightsFile, "weights.txt"} {
			p := filepath.Join(dir, name)
			if fileExists(p) {
				return p
			}
		}
	}
	return ""
}

func getAppSupportDir() string {
	home := getHomeDir()
	return filepath.Join(home, "Library", "Application Support", "lczerogo", "weights")
}

func getHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
