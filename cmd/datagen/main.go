package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/vanshika/fraudstream/internal/broker"
	"github.com/vanshika/fraudstream/internal/events"
	"github.com/vanshika/fraudstream/internal/generator"
	"github.com/vanshika/fraudstream/internal/sampling"
)

func main() {
	var (
		rows        = flag.Int("rows", 1000, "number of transactions to generate")
		fraudRate   = flag.Float64("fraud-rate", 0.001727, "probability that a row is fraudulent")
		seed        = flag.Int64("seed", 42, "random seed for deterministic generation")
		modelPath   = flag.String("model", "", "generator model YAML (built-in model when empty)")
		shuffle     = flag.Bool("shuffle", true, "shuffle rows so class order is not positional")
		outputDir   = flag.String("output-dir", "data", "directory to write events.json")
		writeStdout = flag.Bool("stdout", false, "write events to stdout instead of a file")
		dryRun      = flag.Bool("dry-run", false, "run the events through an in-memory publisher and report key/size stats")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	gen, err := generator.Load(*modelPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load model: %v\n", err)
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(*seed))
	sampler := sampling.New(sampling.WithShuffle(*shuffle))
	batch, err := sampler.Sample(ctx, gen, *rows, *fraudRate, rng)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sampling failed: %v\n", err)
		os.Exit(1)
	}

	evs, err := events.NewBuilder(gen.Name()).Build(batch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building events failed: %v\n", err)
		os.Exit(1)
	}
	legit, fraud := batch.Counts()

	switch {
	case *dryRun:
		pub := broker.NewMemoryPublisher()
		if err := pub.Publish(ctx, evs); err != nil {
			fmt.Fprintf(os.Stderr, "publish failed: %v\n", err)
			os.Exit(1)
		}
		bytes := 0
		for _, msg := range pub.Messages() {
			bytes += len(msg.Value)
		}
		fmt.Fprintf(os.Stdout, "Published %d events (%d legit, %d fraud, %d bytes) to memory\n", len(pub.Messages()), legit, fraud, bytes)
	case *writeStdout:
		if err := json.NewEncoder(os.Stdout).Encode(evs); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write events to stdout: %v\n", err)
			os.Exit(1)
		}
	default:
		path, err := events.WriteBatch(evs, *outputDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to write events: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stdout, "Generated %d events (%d legit, %d fraud) into %s\n", len(evs), legit, fraud, path)
	}
}
