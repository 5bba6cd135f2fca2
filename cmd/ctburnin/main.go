package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"time"

	"ctburnin/internal/logging"
	"ctburnin/pkg/burnin"
	"ctburnin/pkg/config"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing the CT slices and the RT structure set")
	outputDir := flag.String("output", "", "Base directory for the burned series (default: the input directory)")
	configPath := flag.String("config", "ctburnin.yaml", "YAML configuration listing the ROI overrides")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file to -config and exit")
	mode := flag.String("mode", "", "Output mode: combined or separate (overrides the configuration)")
	name := flag.String("name", "", "Series description in combined mode (overrides the configuration)")
	pattern := flag.String("pattern", "", "File pattern for candidate input files (overrides the configuration)")
	preview := flag.Bool("preview", false, "Also render TIFF previews of every written slice")
	verbose := flag.Bool("verbose", false, "Log per-slice detail")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default configuration: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}
	if *outputDir == "" {
		*outputDir = *inputDir
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *mode != "" {
		cfg.Output.Mode = *mode
	}
	if *name != "" {
		cfg.Output.ImageSetName = *name
	}
	if *pattern != "" {
		cfg.Input.Pattern = *pattern
	}
	cfg.Output.Preview = cfg.Output.Preview || *preview
	cfg.Output.Verbose = cfg.Output.Verbose || *verbose
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	level := slog.LevelInfo
	if cfg.Output.Verbose {
		level = slog.LevelDebug
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	runs, err := burnin.PlanRuns(cfg.Overrides(), burnin.PlanOptions{
		Mode:         burnin.Mode(cfg.Output.Mode),
		ImageSetName: cfg.Output.ImageSetName,
		OutputDir:    *outputDir,
		Timestamped:  cfg.Output.TimestampedParent,
		Now:          time.Now(),
	})
	if err != nil {
		log.Fatalf("Failed to plan burn-in: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("CT ROI BURN-IN")
	fmt.Println("================================")
	fmt.Printf("Source: %s\n", *inputDir)
	fmt.Printf("Mode: %s, %d run(s)\n\n", cfg.Output.Mode, len(runs))

	startTime := time.Now()
	summaries, err := burnin.Execute(runs, burnin.Params{
		SourceDir:  *inputDir,
		Pattern:    cfg.Input.Pattern,
		MaxSegment: cfg.Processing.MaxSegmentMM,
		Preview:    cfg.Output.Preview,
	})
	if err != nil {
		log.Fatalf("Burn-in failed: %v", err)
	}
	processingTime := time.Since(startTime)

	fmt.Printf("\nBurn-in completed successfully in %.2f seconds!\n", processingTime.Seconds())
	for i, s := range summaries {
		fmt.Printf("\nSeries %q\n", s.Identity.SeriesDescription)
		fmt.Println("=======================================")
		fmt.Printf("Output directory: %s\n", runs[i].Dir)
		fmt.Printf("Slices written: %d\n", len(s.Files))
		fmt.Printf("Series UID: %s\n", s.Identity.SeriesUID)
		for _, st := range s.Stats {
			fmt.Printf("- %s: %d slice(s), %d pixel(s) written", st.ROI, st.Slices, st.Pixels)
			if !math.IsNaN(st.MeanReplaced) {
				fmt.Printf(", mean replaced value %.1f", st.MeanReplaced)
			}
			if st.Dropped > 0 {
				fmt.Printf(", %d contour(s) without a slice", st.Dropped)
			}
			fmt.Println()
		}
		if len(s.Previews) > 0 {
			fmt.Printf("Previews: %d TIFF image(s)\n", len(s.Previews))
		}
	}
}
