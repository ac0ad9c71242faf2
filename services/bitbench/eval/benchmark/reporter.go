// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package benchmark

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// TableHeader is the first line written by TableReporter.
const TableHeader = "name iterations elapsed_ns ops_per_sec"

// Reporter writes benchmark results.
type Reporter interface {
	// Report writes a single result.
	Report(result *Result) error

	// ReportAll writes results in order.
	ReportAll(results []*Result) error
}

// -----------------------------------------------------------------------------
// Table
// -----------------------------------------------------------------------------

// TableReporter writes one whitespace-separated record per line, preceded
// by TableHeader on first use.
//
// Thread Safety: Not safe for concurrent use.
type TableReporter struct {
	out         io.Writer
	wroteHeader bool
}

// NewTableReporter creates a table reporter writing to out.
func NewTableReporter(out io.Writer) *TableReporter {
	return &TableReporter{out: out}
}

// Report writes the header if needed and one record.
func (t *TableReporter) Report(result *Result) error {
	if err := t.header(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(t.out, "%s %d %d %s\n",
		result.Name,
		result.Iterations,
		result.Elapsed.Nanoseconds(),
		strconv.FormatFloat(result.Throughput.OpsPerSecond, 'f', 0, 64),
	)
	return err
}

// ReportAll writes the header and one record per result. An empty slice
// still produces the header.
func (t *TableReporter) ReportAll(results []*Result) error {
	if err := t.header(); err != nil {
		return err
	}
	for _, r := range results {
		if err := t.Report(r); err != nil {
			return err
		}
	}
	return nil
}

func (t *TableReporter) header() error {
	if t.wroteHeader {
		return nil
	}
	t.wroteHeader = true
	_, err := fmt.Fprintln(t.out, TableHeader)
	return err
}

// -----------------------------------------------------------------------------
// JSON
// -----------------------------------------------------------------------------

// JSONReporter writes results as JSON documents, one per call.
type JSONReporter struct {
	out    io.Writer
	pretty bool
}

// NewJSONReporter creates a JSON reporter. pretty enables indentation.
func NewJSONReporter(out io.Writer, pretty bool) *JSONReporter {
	return &JSONReporter{out: out, pretty: pretty}
}

type jsonLatency struct {
	MinNs    int64 `json:"min_ns"`
	MaxNs    int64 `json:"max_ns"`
	MeanNs   int64 `json:"mean_ns"`
	MedianNs int64 `json:"median_ns"`
	StdDevNs int64 `json:"stddev_ns"`
	P90Ns    int64 `json:"p90_ns"`
	P99Ns    int64 `json:"p99_ns"`
}

type jsonResult struct {
	Name         string      `json:"name"`
	Op           string      `json:"op"`
	Seed         uint64      `json:"seed"`
	Iterations   int64       `json:"iterations"`
	Doublings    int         `json:"doublings,omitempty"`
	ElapsedNs    int64       `json:"elapsed_ns"`
	OpsPerSecond float64     `json:"ops_per_sec"`
	NsPerOp      float64     `json:"ns_per_op"`
	Samples      int         `json:"samples"`
	Latency      jsonLatency `json:"latency"`
	Checksum     string      `json:"checksum"`
	Timestamp    int64       `json:"timestamp"`
}

type jsonComparison struct {
	Ranking     []string `json:"ranking"`
	Fastest     string   `json:"fastest"`
	Slowest     string   `json:"slowest"`
	Speedup     float64  `json:"speedup"`
	Significant bool     `json:"significant"`
	PValue      float64  `json:"p_value"`
	EffectSize  float64  `json:"effect_size"`
	EffectClass string   `json:"effect_size_category"`

	ConfidenceLevel float64                 `json:"confidence_level"`
	Intervals       map[string]jsonInterval `json:"confidence_intervals,omitempty"`
}

// jsonInterval bounds the mean time of normalizedOps operations.
type jsonInterval struct {
	LowerNs int64 `json:"lower_ns"`
	UpperNs int64 `json:"upper_ns"`
}

type jsonReport struct {
	Results    []jsonResult    `json:"results"`
	Comparison *jsonComparison `json:"comparison,omitempty"`
}

func toJSONResult(r *Result) jsonResult {
	return jsonResult{
		Name:         r.Name,
		Op:           r.Op.String(),
		Seed:         r.Seed,
		Iterations:   r.Iterations,
		Doublings:    r.Doublings,
		ElapsedNs:    r.Elapsed.Nanoseconds(),
		OpsPerSecond: r.Throughput.OpsPerSecond,
		NsPerOp:      r.Throughput.NsPerOp,
		Samples:      len(r.Samples),
		Latency: jsonLatency{
			MinNs:    int64(r.Latency.Min),
			MaxNs:    int64(r.Latency.Max),
			MeanNs:   int64(r.Latency.Mean),
			MedianNs: int64(r.Latency.Median),
			StdDevNs: int64(r.Latency.StdDev),
			P90Ns:    int64(r.Latency.P90),
			P99Ns:    int64(r.Latency.P99),
		},
		Checksum:  fmt.Sprintf("0x%016x", r.Checksum),
		Timestamp: r.Timestamp,
	}
}

func toJSONComparison(c *ComparisonResult) *jsonComparison {
	if c == nil {
		return nil
	}
	return &jsonComparison{
		Ranking:     c.Ranking,
		Fastest:     c.Fastest,
		Slowest:     c.Slowest,
		Speedup:     c.Speedup,
		Significant: c.Significant,
		PValue:      c.PValue,
		EffectSize:  c.EffectSize,
		EffectClass: c.EffectSizeCategory.String(),

		ConfidenceLevel: c.ConfidenceLevel,
		Intervals:       toJSONIntervals(c.Intervals),
	}
}

func toJSONIntervals(in map[string]Interval) map[string]jsonInterval {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]jsonInterval, len(in))
	for name, iv := range in {
		out[name] = jsonInterval{LowerNs: iv.Lower.Nanoseconds(), UpperNs: iv.Upper.Nanoseconds()}
	}
	return out
}

// Report writes one result object.
func (j *JSONReporter) Report(result *Result) error {
	return j.encode(toJSONResult(result))
}

// ReportAll writes a single document holding every result.
func (j *JSONReporter) ReportAll(results []*Result) error {
	return j.ReportWithComparison(results, nil)
}

// ReportWithComparison writes every result plus the comparison, if any.
func (j *JSONReporter) ReportWithComparison(results []*Result, comparison *ComparisonResult) error {
	doc := jsonReport{Results: make([]jsonResult, 0, len(results))}
	for _, r := range results {
		doc.Results = append(doc.Results, toJSONResult(r))
	}
	doc.Comparison = toJSONComparison(comparison)
	return j.encode(doc)
}

func (j *JSONReporter) encode(v any) error {
	enc := json.NewEncoder(j.out)
	if j.pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding benchmark report: %w", err)
	}
	return nil
}
