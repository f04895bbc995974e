// import_catalog converts a CSV export of characters and action cards into a
// catalogue YAML file. Characters get a normal attack; the rest of their
// kit is written by hand afterwards.
//
// CSV columns: kind,id,name,element_or_type,max_health,max_energy,cost,tags
// where kind is "character" or "card" and tags are separated by "|".
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gi-tcg/gitcg-server-go/internal/catalog"
)

func main() {
	var (
		in      = flag.String("in", "data/catalog_export.csv", "CSV file to import")
		out     = flag.String("out", "", "YAML output file, stdout when empty")
		version = flag.String("version", "", "catalogue version to write")
	)
	flag.Parse()
	if *version == "" {
		log.Fatal("-version is required")
	}

	f, err := os.Open(*in)
	if err != nil {
		log.Fatalf("Failed to open CSV: %v", err)
	}
	defer f.Close()

	file, err := importCSV(f, *version)
	if err != nil {
		log.Fatalf("Failed to import: %v", err)
	}
	raw, err := yaml.Marshal(file)
	if err != nil {
		log.Fatalf("Failed to encode YAML: %v", err)
	}

	// The output must load like any other catalogue.
	parsed, err := catalog.Parse(raw)
	if err != nil {
		log.Fatalf("Generated catalogue is invalid: %v", err)
	}
	if _, err := catalog.Compile(parsed); err != nil {
		log.Fatalf("Generated catalogue does not compile: %v", err)
	}

	if *out == "" {
		_, _ = os.Stdout.Write(raw)
		return
	}
	if err := os.WriteFile(*out, raw, 0o644); err != nil {
		log.Fatalf("Failed to write %s: %v", *out, err)
	}
	fmt.Fprintf(os.Stderr, "Imported %d characters and %d cards into %s\n", len(file.Characters), len(file.Cards), *out)
}

func importCSV(r io.Reader, version string) (*catalog.File, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 8
	cr.TrimLeadingSpace = true

	file := &catalog.File{Version: version}
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && rec[0] == "kind" {
			continue
		}
		id, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: id: %w", line, err)
		}
		var tags []string
		if rec[7] != "" {
			tags = strings.Split(rec[7], "|")
		}

		switch rec[0] {
		case "character":
			health, err := strconv.Atoi(rec[4])
			if err != nil {
				return nil, fmt.Errorf("line %d: max_health: %w", line, err)
			}
			energy, err := strconv.Atoi(rec[5])
			if err != nil {
				return nil, fmt.Errorf("line %d: max_energy: %w", line, err)
			}
			file.Characters = append(file.Characters, catalog.CharacterSpec{
				ID:        id,
				Name:      rec[2],
				Element:   rec[3],
				MaxHealth: health,
				MaxEnergy: energy,
				Tags:      tags,
				Skills: []catalog.SkillSpec{{
					ID:   id*10 + 1,
					Name: "Normal Attack",
					Type: "normal",
					Cost: rec[6],
					Ops:  []catalog.OpSpec{{Op: "damage", Type: "Physical", Value: 2}},
				}},
			})
		case "card":
			file.Cards = append(file.Cards, catalog.CardSpec{
				ID:   id,
				Name: rec[2],
				Type: rec[3],
				Cost: rec[6],
				Tags: tags,
			})
		default:
			return nil, fmt.Errorf("line %d: unknown kind %q", line, rec[0])
		}
	}
	return file, nil
}
