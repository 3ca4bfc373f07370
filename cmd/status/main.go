package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"bbbpartner/internal/config"
	"bbbpartner/internal/export"
	"bbbpartner/internal/region"
	"bbbpartner/internal/status"
)

func main() {
	asJSON := flag.Bool("json", false, "Print the report as JSON")
	program := flag.String("program", "export", "Command name used in the suggested commands")
	flag.Parse()

	config.LoadEnvFiles()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	rep, err := status.Check(region.NewLoader(cfg.RegionsFile, cfg.ZipsDir), export.NewWriter(cfg.ResultsDir))
	if err != nil {
		log.Fatalf("status check failed: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			log.Fatalf("encode report: %v", err)
		}
		return
	}
	if err := rep.WriteText(os.Stdout, *program); err != nil {
		log.Fatalf("write report: %v", err)
	}
}
