// Command cvimport updates config/portfolio.yaml from a CV document. The CV
// may be a local plain-text file or an HTTP(S) URL; fields missing from the
// CV are left untouched.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/michaeltmk/portfolio/internal/portfolio"
)

func main() {
	configPath := flag.String("config", "config/portfolio.yaml", "portfolio config to update")
	dryRun := flag.Bool("dry-run", false, "show what would change without writing")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: cvimport [flags] <cv-file-or-url>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	source := flag.Arg(0)

	cfg, err := portfolio.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	text, err := fetchCV(source)
	if err != nil {
		log.Fatalf("fetch CV: %v", err)
	}

	extracted := portfolio.ParseCV(text, source)
	updated := cfg.MergeCV(extracted)
	if len(updated) == 0 {
		fmt.Println("No fields were updated (data may be the same)")
		return
	}

	fmt.Println("Updated fields:")
	for _, field := range updated {
		fmt.Printf("  - %s\n", field)
	}
	if *dryRun {
		fmt.Println("Dry run, nothing written")
		return
	}
	if err := cfg.Save(*configPath); err != nil {
		log.Fatalf("save config: %v", err)
	}
	fmt.Printf("Portfolio updated: %s\n", *configPath)
}

func fetchCV(source string) (string, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		client := &http.Client{Timeout: 30 * time.Second}
		resp, err := client.Get(source)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, source)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "text/") {
			return "", fmt.Errorf("unsupported content type %q; only plain-text CVs are supported", ct)
		}
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	raw, err := os.ReadFile(source)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
