package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/banshee-data/edfreplay/internal/inspect"
)

func handleInspect(args []string, e env, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	recording := fs.String("recording", "", "EDF recording to inspect")
	records := fs.Int("records", inspect.DefaultRecords, "Number of data records to summarise")
	asJSON := fs.Bool("json", false, "Print the channel summaries as JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *recording == "" {
		fmt.Fprintln(stderr, "inspect: a recording is required (-recording)")
		return 1
	}

	rec, err := inspect.Load(e.fsys, *recording, *records)
	if err != nil {
		fmt.Fprintf(stderr, "inspect: %v\n", err)
		return 1
	}
	sums := inspect.Summarize(rec)

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(sums)
	} else {
		err = inspect.WriteReport(stdout, rec, sums)
	}
	if err != nil {
		fmt.Fprintf(stderr, "inspect: %v\n", err)
		return 1
	}
	return 0
}

func handlePreview(args []string, e env, stderr io.Writer) int {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	fs.SetOutput(stderr)
	recording := fs.String("recording", "", "EDF recording to preview")
	out := fs.String("out", "preview.png", "Output file; .png renders an image, .html an interactive chart")
	records := fs.Int("records", inspect.DefaultRecords, "Number of data records to plot")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *recording == "" {
		fmt.Fprintln(stderr, "preview: a recording is required (-recording)")
		return 1
	}

	render := inspect.RenderPNG
	switch ext := strings.ToLower(filepath.Ext(*out)); ext {
	case ".png":
	case ".html", ".htm":
		render = inspect.RenderHTML
	default:
		fmt.Fprintf(stderr, "preview: unsupported output format %q (want .png or .html)\n", ext)
		return 1
	}

	rec, err := inspect.Load(e.fsys, *recording, *records)
	if err != nil {
		fmt.Fprintf(stderr, "preview: %v\n", err)
		return 1
	}
	var buf bytes.Buffer
	if err := render(&buf, rec); err != nil {
		fmt.Fprintf(stderr, "preview: %v\n", err)
		return 1
	}
	if err := e.fsys.WriteFile(*out, buf.Bytes(), 0644); err != nil {
		fmt.Fprintf(stderr, "preview: %v\n", err)
		return 1
	}
	fmt.Fprintf(stderr, "wrote %s (%d records, %d channels)\n", *out, rec.Records, len(rec.Streamed()))
	return 0
}
