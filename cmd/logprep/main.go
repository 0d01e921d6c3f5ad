// Command logprep runs the Pseudonymizer and Clusterer processors over a
// stream of newline-delimited JSON events.
//
// Each line on stdin is one event document; it is run through the
// Clusterer (if configured) and then the Pseudonymizer (if configured),
// and the resulting event is written to stdout as one JSON line. Any
// Pseudonym Records emitted on the side channel are written to stderr as
// their own JSON lines, tagged with the configured topic.
//
// Configuration is layered: built-in defaults, an optional JSON file
// (first CLI argument or CONFIG_FILE env var), then environment
// variables. See internal/config for the schema.
//
// Usage:
//
//	./logprep config.json
//	CONFIG_FILE=config.json ./logprep
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"logprep-go/internal/clusterer"
	"logprep-go/internal/config"
	"logprep-go/internal/event"
	"logprep-go/internal/logger"
	"logprep-go/internal/management"
	"logprep-go/internal/metrics"
	"logprep-go/internal/processor"
	"logprep-go/internal/pseudonymizer"
)

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "[CONFIG] %v\n", err)
		os.Exit(1)
	}

	log := logger.New("CONFIG", cfg.LogLevel)
	m := metrics.New()
	mgmt := management.New(cfg, m)

	var pseudo *pseudonymizer.Pseudonymizer
	if len(cfg.Pseudonymizer.SpecificRules) > 0 || len(cfg.Pseudonymizer.GenericRules) > 0 {
		pseudo = pseudonymizer.New(pseudonymizer.Config{
			PseudonymsTopic:     cfg.Pseudonymizer.PseudonymsTopic,
			PubkeyAnalyst:       cfg.Pseudonymizer.PubkeyAnalyst,
			PubkeyDepseudo:      cfg.Pseudonymizer.PubkeyDepseudo,
			HashSalt:            cfg.Pseudonymizer.HashSalt,
			SpecificRules:       cfg.Pseudonymizer.SpecificRules,
			GenericRules:        cfg.Pseudonymizer.GenericRules,
			RegexMapping:        cfg.Pseudonymizer.RegexMapping,
			MaxCachedPseudonyms: cfg.Pseudonymizer.MaxCachedPseudonyms,
			MaxCachingDays:      cfg.Pseudonymizer.MaxCachingDays,
			TLDListPath:         cfg.Pseudonymizer.TLDList,
		})
		if err := pseudo.Setup(); err != nil {
			log.Fatalf("setup", "pseudonymizer: %v", err)
		}
		mgmt.Register("pseudonymizer", pseudo)
		log.Infof("setup", "pseudonymizer ready: %s", pseudo.Describe())
	}

	var clust *clusterer.Clusterer
	if len(cfg.Clusterer.SpecificRules) > 0 || len(cfg.Clusterer.GenericRules) > 0 {
		clust = clusterer.New(clusterer.Config{
			RuleDirs:     append(append([]string{}, cfg.Clusterer.SpecificRules...), cfg.Clusterer.GenericRules...),
			RegexMapping: cfg.Clusterer.RegexMapping,
			OutputField:  cfg.Clusterer.OutputField,
		})
		if err := clust.Setup(); err != nil {
			log.Fatalf("setup", "clusterer: %v", err)
		}
		mgmt.Register("clusterer", clust)
		log.Infof("setup", "clusterer ready: %s", clust.Describe())
	}

	go func() {
		if err := mgmt.ListenAndServe(); err != nil {
			log.Fatalf("management", "%v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Infof("shutdown", "signal received, draining")
		cancel()
	}()

	runPipeline(ctx, log, m, clust, pseudo, os.Stdin, os.Stdout, os.Stderr)

	if pseudo != nil {
		pseudo.ShutDown()
	}
	if clust != nil {
		clust.ShutDown()
	}
}

func configPath() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	return os.Getenv("CONFIG_FILE")
}

// runPipeline implements the data flow of SPEC_FULL.md §2: for each
// incoming event, run the Clusterer gate/rewrite, then the Pseudonymizer,
// writing the mutated event and any emitted records to their respective
// outputs. A line that fails to decode is a ProcessingError: logged,
// counted and skipped. ProcessingErrors reported by the Pseudonymizer are
// logged and counted, and the event is still written. Neither is fatal
// (SPEC_FULL.md §7).
func runPipeline(ctx context.Context, log *logger.Logger, m *metrics.Metrics, clust *clusterer.Clusterer, pseudo *pseudonymizer.Pseudonymizer, in io.Reader, out, sideChannel io.Writer) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	enc := json.NewEncoder(out)
	sideEnc := json.NewEncoder(sideChannel)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var root map[string]any
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := json.Unmarshal(line, &root); err != nil {
			perr := &processor.ProcessingError{Field: "<line>", Cause: err}
			m.ProcessingErrors.Add(1)
			log.Warnf("decode", "skipping malformed event: %v", perr)
			continue
		}

		processEvent(root, clust, pseudo, m, enc, sideEnc, log)
	}
}

func processEvent(root map[string]any, clust *clusterer.Clusterer, pseudo *pseudonymizer.Pseudonymizer, m *metrics.Metrics, enc, sideEnc *json.Encoder, log *logger.Logger) {
	e := event.New(root)

	if clust != nil {
		start := time.Now()
		_, _, _ = clust.Process(processor.Event(e))
		m.RecordClusterLatency(time.Since(start))
		m.ClustererEvents.Add(1)
		m.RecordClusterable(clusterer.IsClusterable(processor.Event(e)))
	}

	if pseudo != nil {
		start := time.Now()
		records, topic, ok := pseudo.Process(processor.Event(e))
		m.RecordPseudonymizeLatency(time.Since(start))
		m.PseudonymizerEvents.Add(1)
		if ok {
			m.PseudonymsEmitted.Add(int64(len(records)))
			for _, rec := range records {
				if err := sideEnc.Encode(map[string]any{"topic": topic, "record": rec}); err != nil {
					log.Warnf("emit", "record encode failed: %v", err)
				}
			}
		}
		hits, misses := pseudo.CacheStats()
		m.CacheHits.Add(int64(hits))
		m.CacheMisses.Add(int64(misses))
		for _, perr := range pseudo.Errors() {
			m.ProcessingErrors.Add(1)
			log.Warnf("process", "%v", perr)
		}
	}

	if err := enc.Encode(root); err != nil {
		log.Warnf("emit", "event encode failed: %v", err)
	}
}
