// Load generator for the Heron claim intake API.
//
// Usage:
//
//	go run ./cmd/loadgen -csv claims.csv -url http://localhost:8080
//
// The CSV header must name the columns policyNumber, claimType, incidentDate,
// claimAmount and documents. documents is a semicolon-separated list of file
// names; a small synthetic file is uploaded for each. An optional expectFlagged
// column (true/false) enables the fraud confusion matrix when -verify is set.
//
// This tool:
//  1. Submits each row as a multipart claim from a pool of workers
//  2. Optionally reads each accepted claim back to see its fraud verdict
//  3. Reports the status breakdown, latency percentiles and throughput
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ClaimRow is one claim to submit.
type ClaimRow struct {
	Line          int
	PolicyNumber  string
	ClaimType     string
	IncidentDate  string
	ClaimAmount   string
	Documents     []string
	ExpectFlagged *bool
}

// SubmitResponse is the body of a successful submission.
type SubmitResponse struct {
	ReferenceID string `json:"referenceId"`
}

// ClaimResponse is the subset of GET /claims/{id} the verifier reads.
type ClaimResponse struct {
	Data struct {
		ClaimNumber string `json:"claimNumber"`
		FraudScore  int    `json:"fraudScore"`
		Flagged     bool   `json:"flagged"`
		Status      string `json:"status"`
	} `json:"data"`
}

// Metrics tracks run results.
type Metrics struct {
	mu        sync.Mutex
	statuses  map[int]int64
	latencies []time.Duration

	TotalSubmitted int64
	TotalErrors    int64

	Flagged    int64
	NotFlagged int64

	TruePositives  int64
	FalsePositives int64
	TrueNegatives  int64
	FalseNegatives int64
}

func newMetrics() *Metrics {
	return &Metrics{statuses: make(map[int]int64)}
}

func (m *Metrics) record(status int, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[status]++
	m.latencies = append(m.latencies, elapsed)
}

func main() {
	csvPath := flag.String("csv", "", "Path to the claims CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Heron base URL")
	limit := flag.Int("limit", 0, "Maximum claims to submit (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verify := flag.Bool("verify", false, "Read each accepted claim back and tally fraud verdicts")
	verbose := flag.Bool("verbose", false, "Print each submission result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: loadgen -csv claims.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║              HERON LOADGEN - Claim Submission                 ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:   %s\n", *csvPath)
	fmt.Printf("Heron URL:  %s\n", *baseURL)
	fmt.Printf("Workers:    %d\n", *workers)
	fmt.Printf("Limit:      %d\n", *limit)
	fmt.Printf("Verify:     %v\n", *verify)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Heron not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Heron is running:")
		fmt.Println("  go run ./cmd/heron serve")
		os.Exit(1)
	}
	fmt.Println("✓ Heron is healthy")

	file, err := os.Open(*csvPath)
	if err != nil {
		fmt.Printf("ERROR: Failed to open CSV: %v\n", err)
		os.Exit(1)
	}
	rows, skipped, err := readClaimsCSV(file, *limit)
	file.Close()
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d claims (%d malformed rows skipped)\n", len(rows), skipped)

	fmt.Printf("\nSubmitting with %d workers...\n", *workers)
	start := time.Now()
	m := run(rows, *baseURL, *workers, *verify, *verbose)
	printResults(m, time.Since(start), *verify)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

var requiredColumns = []string{"policynumber", "claimtype", "incidentdate", "claimamount", "documents"}

// readClaimsCSV parses claim rows. Rows with the wrong field count are skipped and counted.
func readClaimsCSV(r io.Reader, limit int) ([]ClaimRow, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			return nil, 0, fmt.Errorf("missing column %q", col)
		}
	}
	expectCol, hasExpect := colIndex["expectflagged"]

	var (
		rows    []ClaimRow
		skipped int
		line    = 1
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil || len(record) < len(header) {
			skipped++
			continue
		}

		row := ClaimRow{
			Line:         line,
			PolicyNumber: record[colIndex["policynumber"]],
			ClaimType:    record[colIndex["claimtype"]],
			IncidentDate: record[colIndex["incidentdate"]],
			ClaimAmount:  record[colIndex["claimamount"]],
		}
		for _, doc := range strings.Split(record[colIndex["documents"]], ";") {
			if doc = strings.TrimSpace(doc); doc != "" {
				row.Documents = append(row.Documents, doc)
			}
		}
		if hasExpect {
			if v, err := strconv.ParseBool(strings.TrimSpace(record[expectCol])); err == nil {
				row.ExpectFlagged = &v
			}
		}

		rows = append(rows, row)
		if limit > 0 && len(rows) >= limit {
			break
		}
	}
	return rows, skipped, nil
}

func run(rows []ClaimRow, baseURL string, numWorkers int, verify, verbose bool) *Metrics {
	m := newMetrics()

	work := make(chan ClaimRow, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 30 * time.Second}

			for row := range work {
				start := time.Now()
				status, ref, err := submitClaim(client, baseURL, row)
				elapsed := time.Since(start)

				atomic.AddInt64(&m.TotalSubmitted, 1)
				if err != nil {
					atomic.AddInt64(&m.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: line %d -> %v\n", row.Line, err)
					}
					continue
				}
				m.record(status, elapsed)

				if verbose {
					fmt.Printf("line %-5d | %-14s | %-10s | %10s | %d %s (%s)\n",
						row.Line, row.PolicyNumber, row.ClaimType, row.ClaimAmount, status, ref, elapsed.Round(time.Millisecond))
				}
				if !verify || ref == "" {
					continue
				}

				claim, err := fetchClaim(client, baseURL, ref)
				if err != nil {
					atomic.AddInt64(&m.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: read back %s -> %v\n", ref, err)
					}
					continue
				}
				tally(m, row, claim)
			}
		}()
	}

	for _, row := range rows {
		work <- row
	}
	close(work)

	wg.Wait()
	return m
}

func tally(m *Metrics, row ClaimRow, claim *ClaimResponse) {
	predicted := claim.Data.Flagged
	if predicted {
		atomic.AddInt64(&m.Flagged, 1)
	} else {
		atomic.AddInt64(&m.NotFlagged, 1)
	}
	if row.ExpectFlagged == nil {
		return
	}

	actual := *row.ExpectFlagged
	switch {
	case predicted && actual:
		atomic.AddInt64(&m.TruePositives, 1)
	case predicted && !actual:
		atomic.AddInt64(&m.FalsePositives, 1)
	case !predicted && !actual:
		atomic.AddInt64(&m.TrueNegatives, 1)
	default:
		atomic.AddInt64(&m.FalseNegatives, 1)
	}
}

// buildForm renders row as the multipart body POST /claims expects.
func buildForm(row ClaimRow) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"policyNumber":     row.PolicyNumber,
		"claimantName":     "Load Generator",
		"claimantEmail":    "loadgen@example.com",
		"incidentDate":     row.IncidentDate,
		"incidentTime":     "12:00",
		"incidentLocation": "Synthetic load test",
		"claimType":        row.ClaimType,
		"description":      fmt.Sprintf("Generated from CSV line %d.", row.Line),
		"claimAmount":      row.ClaimAmount,
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}

	for _, name := range row.Documents {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="supportingDocuments"; filename=%q`, name))
		h.Set("Content-Type", contentTypeFor(name))
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := fmt.Fprintf(part, "synthetic document %s for line %d", name, row.Line); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// submitClaim returns the response status and, on 201, the claim reference.
func submitClaim(client *http.Client, baseURL string, row ClaimRow) (int, string, error) {
	body, contentType, err := buildForm(row)
	if err != nil {
		return 0, "", err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/claims", body)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, "", nil
	}

	var result SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, result.ReferenceID, nil
}

func fetchClaim(client *http.Client, baseURL, ref string) (*ClaimResponse, error) {
	resp, err := client.Get(baseURL + "/claims/" + ref)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ClaimResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// percentile returns the p-th percentile (0-100) of sorted.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p / 100)
	return sorted[idx]
}

func printResults(m *Metrics, duration time.Duration, verify bool) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                        LOAD RESULTS                           ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 SUBMISSIONS\n")
	fmt.Printf("   Total Submitted:  %d\n", m.TotalSubmitted)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	codes := make([]int, 0, len(m.statuses))
	for code := range m.statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	fmt.Printf("\n📋 STATUS BREAKDOWN\n")
	for _, code := range codes {
		fmt.Printf("   %d %-22s %d\n", code, http.StatusText(code), m.statuses[code])
	}

	sort.Slice(m.latencies, func(i, j int) bool { return m.latencies[i] < m.latencies[j] })
	fmt.Printf("\n⏱  LATENCY\n")
	fmt.Printf("   p50:  %v\n", percentile(m.latencies, 50).Round(time.Millisecond))
	fmt.Printf("   p95:  %v\n", percentile(m.latencies, 95).Round(time.Millisecond))
	fmt.Printf("   p99:  %v\n", percentile(m.latencies, 99).Round(time.Millisecond))
	if n := len(m.latencies); n > 0 {
		fmt.Printf("   max:  %v\n", m.latencies[n-1].Round(time.Millisecond))
	}

	fmt.Printf("\n🚀 THROUGHPUT\n")
	fmt.Printf("   Duration:    %v\n", duration.Round(time.Millisecond))
	if duration > 0 {
		fmt.Printf("   Claims/sec:  %.1f\n", float64(m.TotalSubmitted)/duration.Seconds())
	}

	if !verify {
		fmt.Println()
		return
	}

	fmt.Printf("\n🔎 FRAUD VERDICTS\n")
	fmt.Printf("   Flagged:      %d\n", m.Flagged)
	fmt.Printf("   Not flagged:  %d\n", m.NotFlagged)

	labelled := m.TruePositives + m.FalsePositives + m.TrueNegatives + m.FalseNegatives
	if labelled == 0 {
		fmt.Println()
		return
	}

	fmt.Printf("\n📈 CONFUSION MATRIX (%d labelled)\n", labelled)
	fmt.Printf("                      Predicted\n")
	fmt.Printf("                   Flagged   Clear\n")
	fmt.Printf("   Actual Flagged  %7d  %6d\n", m.TruePositives, m.FalseNegatives)
	fmt.Printf("   Actual Clear    %7d  %6d\n", m.FalsePositives, m.TrueNegatives)

	precision := ratio(m.TruePositives, m.TruePositives+m.FalsePositives)
	recall := ratio(m.TruePositives, m.TruePositives+m.FalseNegatives)
	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	fmt.Printf("\n   Precision:  %.3f\n", precision)
	fmt.Printf("   Recall:     %.3f\n", recall)
	fmt.Printf("   F1:         %.3f\n", f1)
	fmt.Println()
}

func ratio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
