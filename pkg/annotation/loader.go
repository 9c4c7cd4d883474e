package annotation

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cyclopcam/logs"
)

// LoadStats describes what happened while reading an annotation file
type LoadStats struct {
	Records        int // Records returned
	SkippedLines   int // Lines that were not valid JSON records
	DroppedObjects int // Objects whose box was invalid
}

// Load reads a newline-delimited JSON annotation file
func Load(log logs.Log, filename string, registry *Registry) ([]Record, LoadStats, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, LoadStats{}, err
	}
	defer f.Close()
	log.Infof("Loading annotations from %v", filename)
	records, stats, err := Read(log, f, registry)
	if err != nil {
		return nil, stats, fmt.Errorf("Error reading %v: %w", filename, err)
	}
	return records, stats, nil
}

// Read parses one Record per line. Blank lines are ignored.
// Lines that are not valid JSON, and objects with invalid boxes, are logged and skipped.
// Every valid object's category is registered, in the order that it is encountered.
func Read(log logs.Log, r io.Reader, registry *Registry) ([]Record, LoadStats, error) {
	stats := LoadStats{}
	records := []Record{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		rec := Record{}
		if err := json.Unmarshal(line, &rec); err != nil {
			log.Warnf("Skipping annotation line %v: %v", lineNo, err)
			stats.SkippedLines++
			continue
		}
		valid := rec.Objects[:0]
		for _, obj := range rec.Objects {
			if err := obj.Validate(); err != nil {
				log.Warnf("Dropping object %v (%v) in record %v: %v", obj.ObjectID, obj.Key(), rec.DataID, err)
				stats.DroppedObjects++
				continue
			}
			registry.Register(obj.Category, obj.Subcategory)
			valid = append(valid, obj)
		}
		rec.Objects = valid
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, err
	}
	stats.Records = len(records)
	log.Infof("Loaded %v annotation records, %v categories", len(records), registry.Len())
	return records, stats, nil
}
