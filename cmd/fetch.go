package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Fetch implements the "fetch" subcommand: download the per-region files of
// an indicator into its data directory.
func Fetch(args []string) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	cf := addCommonFlags(fs, "Brechas de Ingresos")
	base := fs.String("base", "", "base URL the files live under (default $FETCH_BASE_URL)")
	codes := fs.String("codes", "1-16", "region codes to fetch, e.g. 1-16 or 5,13")
	ext := fs.String("ext", ".xlsx", "file extension")
	force := fs.Bool("force", false, "download even if the file exists")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: indicadores fetch [-base url] [-codes 1-16] [-ext .xlsx]\n\nFiles are named <prefix><code><ext>, e.g. Region_13.xlsx.\n\n")
		fs.PrintDefaults()
	}
	fs.Parse(reorderArgs(args))

	list, err := parseIntList(*codes, "region code")
	if err != nil {
		fail(err)
	}
	s, err := openSession(cf)
	if err != nil {
		fail(err)
	}
	if *base == "" {
		*base = s.cfg.FetchBaseURL
	}
	if *base == "" {
		fail(errors.New("no base URL; pass --base or set FETCH_BASE_URL"))
	}
	if !strings.HasPrefix(*ext, ".") {
		*ext = "." + *ext
	}
	if err := os.MkdirAll(s.schema.Dir, 0755); err != nil {
		fail(fmt.Errorf("creating output directory: %w", err))
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	var downloaded, skipped, failed int
	for _, code := range list {
		name := s.schema.FileName(code, *ext)
		outPath := filepath.Join(s.schema.Dir, name)

		if _, err := os.Stat(outPath); err == nil && !*force {
			fmt.Fprintf(os.Stderr, "skip %s (already exists)\n", name)
			skipped++
			continue
		}

		fullURL := strings.TrimSuffix(*base, "/") + "/" + name
		fmt.Fprintf(os.Stderr, "downloading %s -> %s\n", fullURL, outPath)

		if err := downloadFile(context.Background(), client, fullURL, outPath); err != nil {
			fmt.Fprintf(os.Stderr, "error downloading %s: %v\n", fullURL, err)
			failed++
			continue
		}
		// Cached records of a replaced file are stale.
		s.loader.Invalidate(s.schema, code)
		downloaded++
	}

	fmt.Fprintf(os.Stderr, "Done: %d downloaded, %d skipped, %d failed\n", downloaded, skipped, failed)
}

// downloadFile writes url to dest through a temporary file, so a failed
// transfer never leaves a truncated file that later looks valid.
func downloadFile(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".fetch-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
