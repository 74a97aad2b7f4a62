// Copyright 2025 Tomas Machalek <tomas.machalek@gmail.com>
// Copyright 2025 Department of Linguistics,
// Faculty of Arts, Charles University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataimport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/czcorpus/attrisim/risk"
	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
)

type RecordProcessor interface {
	ProcessRecord(rec risk.EmployeeRecord) error
	SetStats(numProcessed, numFailed int)
}

// ReadEmployeesFile reads employee records either from a CSV file
// (with a header line using the JSON field names) or from a JSONL file
// and calls the processor for each of them. Records the processor
// refuses are logged and skipped.
func ReadEmployeesFile(ctx context.Context, filePath string, processor RecordProcessor) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv":
		return ReadEmployeesCSV(ctx, file, processor)
	case ".jsonl", ".ndjson":
		return ReadEmployeesJSONL(ctx, file, processor)
	default:
		return fmt.Errorf("unsupported file type %s", filepath.Ext(filePath))
	}
}

func ReadEmployeesCSV(ctx context.Context, src io.Reader, processor RecordProcessor) error {
	var records []*risk.EmployeeRecord
	if err := gocsv.Unmarshal(src, &records); err != nil {
		return fmt.Errorf("failed to parse CSV: %w", err)
	}
	numProc := 0
	numFailed := 0
	for i, rec := range records {
		select {
		case <-ctx.Done():
			log.Warn().Msg("interrupting employees file processing")
			processor.SetStats(numProc, numFailed)
			return nil
		default:
		}
		if err := processor.ProcessRecord(*rec); err != nil {
			log.Error().
				Err(err).
				Int("id", rec.ID).
				Int("line", i+2).
				Msg("failed to process employee record, skipping")
			numFailed++
			continue
		}
		numProc++
	}
	processor.SetStats(numProc, numFailed)
	return nil
}

func ReadEmployeesJSONL(ctx context.Context, src io.Reader, processor RecordProcessor) error {
	scanner := bufio.NewScanner(src)
	lineNum := 0
	numProc := 0
	numFailed := 0
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			log.Warn().Msg("interrupting employees file processing")
			processor.SetStats(numProc, numFailed)
			return nil
		default:
		}
		lineNum++
		line := scanner.Bytes()

		if len(line) == 0 {
			continue
		}

		var record risk.EmployeeRecord
		if err := json.Unmarshal(line, &record); err != nil {
			log.Error().Err(err).Int("line", lineNum).Msg("failed to parse JSON, skipping")
			numFailed++
			continue
		}

		if err := processor.ProcessRecord(record); err != nil {
			log.Error().
				Err(err).
				Int("id", record.ID).
				Int("line", lineNum).
				Msg("failed to process employee record, skipping")
			numFailed++
			continue
		}
		numProc++
	}
	processor.SetStats(numProc, numFailed)
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}
	return nil
}

// ----------------------------

// ValidatingCollector collects records passing validation
type ValidatingCollector struct {
	Records      []risk.EmployeeRecord
	NumProcessed int
	NumFailed    int
}

func (c *ValidatingCollector) ProcessRecord(rec risk.EmployeeRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	c.Records = append(c.Records, rec)
	return nil
}

func (c *ValidatingCollector) SetStats(numProcessed, numFailed int) {
	c.NumProcessed = numProcessed
	c.NumFailed = numFailed
}
