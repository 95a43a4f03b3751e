package bdc

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/couchcryptid/broadband-data-etl/internal/domain"
	"github.com/couchcryptid/broadband-data-etl/internal/frame"
)

// Columns read from each availability CSV. Everything else in the file is
// ignored.
var (
	stringColumns   = []string{domain.ColCellRes8, domain.ColBusinessResidential}
	providerColumns = []string{domain.ColProvider}
	speedColumns    = []string{domain.ColMaxDownload, domain.ColMaxUpload}
)

// decodeZippedCSV opens the archive member named csvName (or the only CSV in
// the archive) and decodes it.
func decodeZippedCSV(data []byte, csvName, technology string) (*frame.Frame, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	var member *zip.File
	for _, f := range zr.File {
		if f.Name == csvName {
			member = f
			break
		}
		if member == nil && strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			member = f
		}
	}
	if member == nil {
		return nil, fmt.Errorf("zip has no CSV member %q", csvName)
	}

	rc, err := member.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", member.Name, err)
	}
	defer rc.Close()
	return decodeCSV(rc, technology)
}

// decodeCSV reads an availability CSV into a frame and adds technology as a
// constant technology_name column.
func decodeCSV(r io.Reader, technology string) (*frame.Frame, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", domain.ErrSchema)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	pos := make(map[string]int, len(header))
	for i, name := range header {
		pos[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	wanted := append(append(append([]string{}, stringColumns...), providerColumns...), speedColumns...)
	for _, name := range wanted {
		if _, ok := pos[name]; !ok {
			return nil, fmt.Errorf("%w: %w: %s", domain.ErrSchema, frame.ErrMissingColumn, name)
		}
	}

	text := make(map[string][]string, len(stringColumns)+len(providerColumns))
	ints := make(map[string][]int64, len(speedColumns))
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		for _, name := range stringColumns {
			text[name] = append(text[name], rec[pos[name]])
		}
		for _, name := range providerColumns {
			text[name] = append(text[name], rec[pos[name]])
		}
		for _, name := range speedColumns {
			v, err := strconv.ParseInt(strings.TrimSpace(rec[pos[name]]), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d %s: %w", line, name, err)
			}
			ints[name] = append(ints[name], v)
		}
	}

	rows := line - 1
	techs := make([]string, rows)
	for i := range techs {
		techs[i] = technology
	}

	f := frame.New()
	for _, name := range stringColumns {
		if err := f.Add(name, frame.Strings(text[name])); err != nil {
			return nil, err
		}
	}
	for _, name := range providerColumns {
		if err := f.Add(name, frame.NewCategorical(text[name])); err != nil {
			return nil, err
		}
	}
	for _, name := range speedColumns {
		if err := f.Add(name, frame.Ints(ints[name])); err != nil {
			return nil, err
		}
	}
	if err := f.Add(domain.ColTechnology, frame.NewCategorical(techs)); err != nil {
		return nil, err
	}
	return f, nil
}

// DecodeFile decodes a zipped availability CSV as downloaded from the API,
// tagging every row with technology.
func DecodeFile(data []byte, technology string) (*frame.Frame, error) {
	return decodeZippedCSV(data, "", technology)
}
