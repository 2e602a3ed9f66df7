/*
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package server

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/apache/incubator-horaedb-qpsindex/pkg/log"
	"github.com/apache/incubator-horaedb-qpsindex/server/index"
	"go.uber.org/zap"
)

const commitTimeLayout = "20060102150405"

// JobResult sums up one run of the index job.
type JobResult struct {
	Updated  int           `json:"updated"`
	Deleted  int           `json:"deleted"`
	Found    int           `json:"found"`
	Duration time.Duration `json:"duration"`
}

// ParseRecords reads one record per line: `key,partition,file-id`. A line with the key only removes the record.
func ParseRecords(in io.Reader, commitTime string) ([]index.Record, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.Comment = '#'
	reader.TrimLeadingSpace = true

	var records []index.Record
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, ErrLoadRecords.WithCause(err)
		}

		key := strings.TrimSpace(fields[0])
		if key == "" {
			line, _ := reader.FieldPos(0)
			return nil, ErrLoadRecords.WithMessagef("empty key, line:%d", line)
		}
		switch len(fields) {
		case 1:
			records = append(records, index.Record{Key: key})
		case 3:
			records = append(records, index.Record{Key: key, Location: &index.Location{
				CommitTime:    commitTime,
				PartitionPath: strings.TrimSpace(fields[1]),
				FileID:        strings.TrimSpace(fields[2]),
			}})
		default:
			line, _ := reader.FieldPos(0)
			return nil, ErrLoadRecords.WithMessagef("expect 1 or 3 fields, got:%d, line:%d", len(fields), line)
		}
	}
}

// GenerateRecords makes n records spread over a few partitions and files.
func GenerateRecords(n int, commitTime string) []index.Record {
	records := make([]index.Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, index.Record{
			Key: fmt.Sprintf("record-%08d", i),
			Location: &index.Location{
				CommitTime:    commitTime,
				PartitionPath: fmt.Sprintf("partition-%02d", i%16),
				FileID:        fmt.Sprintf("file-%04d", i%128),
			},
		})
	}
	return records
}

// LoadRecords reads the records of path, or generates n of them when path is empty.
func LoadRecords(path string, n int, commitTime string) ([]index.Record, error) {
	if path == "" {
		return GenerateRecords(n, commitTime), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, ErrLoadRecords.WithCausef(err, "path:%s", path)
	}
	defer f.Close()
	return ParseRecords(f, commitTime)
}

// RunJob updates the index with records and looks every key up again to check the update.
func RunJob(ctx context.Context, idx *index.Index, records []index.Record) (JobResult, error) {
	start := time.Now()
	if err := idx.Update(ctx, records); err != nil {
		return JobResult{}, ErrRunJob.WithCausef(err, "update, records:%d", len(records))
	}

	// The last record of a key wins.
	latest := make(map[string]*index.Location, len(records))
	keys := make([]string, 0, len(records))
	for _, r := range records {
		if _, ok := latest[r.Key]; !ok {
			keys = append(keys, r.Key)
		}
		latest[r.Key] = r.Location
	}

	found, err := idx.Lookup(ctx, keys)
	if err != nil {
		return JobResult{}, ErrRunJob.WithCausef(err, "lookup, keys:%d", len(keys))
	}

	result := JobResult{Found: len(found), Duration: time.Since(start)}
	for key, expected := range latest {
		got, ok := found[key]
		switch {
		case expected == nil && ok:
			return result, ErrJobIncorrect.WithMessagef("deleted key is found, key:%s", key)
		case expected == nil:
			result.Deleted++
		case !ok || got != *expected:
			return result, ErrJobIncorrect.WithMessagef("key:%s, expected:%+v, got:%+v", key, *expected, got)
		default:
			result.Updated++
		}
	}

	log.Info("index job finished", zap.Int("updated", result.Updated), zap.Int("deleted", result.Deleted),
		zap.Duration("duration", result.Duration), zap.String("allocator", idx.AllocatorName()))
	return result, nil
}
