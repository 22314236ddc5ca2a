package words

import (
	"bufio"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

//go:embed default_words.txt
var embeddedWords string

// Default returns the embedded word list.
func Default() []string {
	out, _ := parseLines(strings.NewReader(embeddedWords))
	return out
}

// Load reads a catalogue from disk. CSV files contribute the first column of
// each record; any other file is read one word per line with '#' comments.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word file: %w", err)
	}
	defer f.Close()

	var out []string
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		out, err = parseCSV(f)
	} else {
		out, err = parseLines(f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse word file %s: %w", path, err)
	}
	if len(Normalize(out)) == 0 {
		return nil, ErrEmptyCatalogue
	}
	return out, nil
}

func parseLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

func parseCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []string
	for i := 0; ; i++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) == 0 {
			continue
		}
		w := strings.TrimSpace(record[0])
		if i == 0 && strings.EqualFold(w, "word") {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}
