package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"polrecon/pkg/config"
	"polrecon/pkg/logging"
	"polrecon/pkg/reconstruction"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "config.yml", "YAML configuration file")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file to -config and exit")
	dataDir := flag.String("data", "", "Folder holding the sample and background acquisitions (overrides config)")
	processedDir := flag.String("output", "", "Folder receiving the reconstructed samples (overrides config)")
	samples := flag.String("samples", "", "Comma separated sample folder names (overrides config)")
	bgName := flag.String("background", "", "Background folder name (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn or error (overrides config)")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dataDir != "" {
		cfg.Dataset.DataDir = *dataDir
	}
	if *processedDir != "" {
		cfg.Dataset.ProcessedDir = *processedDir
	}
	if *samples != "" {
		cfg.Dataset.Samples = strings.Split(*samples, ",")
	}
	if *bgName != "" {
		cfg.Dataset.Background = *bgName
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(1)
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger := logging.New(logging.Options{
		Name:      "polrecon",
		Level:     level,
		File:      cfg.Logging.File,
		NoColor:   cfg.Logging.NoColor,
		JSON:      cfg.Logging.JSON,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
	})

	params, err := reconstruction.ParamsFromConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("POLARIZATION MICROSCOPY BIREFRINGENCE RECONSTRUCTION")
	fmt.Println("================================")

	reconstructor := reconstruction.NewReconstructor(params, logger)

	// Run the reconstruction pipeline
	startTime := time.Now()
	if err := reconstructor.Process(); err != nil {
		logger.Error("reconstruction failed: %v", err)
		os.Exit(1)
	}
	processingTime := time.Since(startTime)

	fmt.Printf("\nReconstruction completed successfully in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Run ID: %s\n\n", reconstructor.RunID())
	for _, m := range reconstructor.GetMetrics() {
		fmt.Printf("%s -> %s\n", m.Sample, m.OutputDir)
		fmt.Printf("- Positions: %d, coordinates: %d, files written: %d\n", m.Positions, m.Leaves, m.Written)
		fmt.Printf("- Mean retardance: %.3f nm (std %.3f nm)\n", m.MeanRetardance, m.StdRetardance)
		fmt.Printf("- Time: %.2f seconds\n", m.Duration.Seconds())
	}
}
