package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `PolicyNumber,ClaimType,IncidentDate,ClaimAmount,Documents,ExpectFlagged
POL-1,Collision,2026-09-01,1200.50,report.pdf;photo.jpg,false
POL-2,Theft,2026-09-02,48000,,true
POL-3,Collision
POL-4,Fire,2026-09-03,900,estimate.png,maybe
`

func TestReadClaimsCSV(t *testing.T) {
	rows, skipped, err := readClaimsCSV(strings.NewReader(sampleCSV), 0)
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, 1, skipped)

	assert.Equal(t, "POL-1", rows[0].PolicyNumber)
	assert.Equal(t, []string{"report.pdf", "photo.jpg"}, rows[0].Documents)
	require.NotNil(t, rows[0].ExpectFlagged)
	assert.False(t, *rows[0].ExpectFlagged)

	assert.Empty(t, rows[1].Documents)
	require.NotNil(t, rows[1].ExpectFlagged)
	assert.True(t, *rows[1].ExpectFlagged)

	assert.Nil(t, rows[2].ExpectFlagged, "unparseable label is left unset")
	assert.Equal(t, 5, rows[2].Line)
}

func TestReadClaimsCSVLimit(t *testing.T) {
	rows, _, err := readClaimsCSV(strings.NewReader(sampleCSV), 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestReadClaimsCSVMissingColumn(t *testing.T) {
	_, _, err := readClaimsCSV(strings.NewReader("policyNumber,claimType\nPOL-1,Theft\n"), 0)
	assert.ErrorContains(t, err, "incidentdate")
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/pdf", contentTypeFor("a.PDF"))
	assert.Equal(t, "image/jpeg", contentTypeFor("a.jpeg"))
	assert.Equal(t, "image/png", contentTypeFor("a.png"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("a.exe"))
}

func TestPercentile(t *testing.T) {
	var sorted []time.Duration
	for i := 1; i <= 100; i++ {
		sorted = append(sorted, time.Duration(i)*time.Millisecond)
	}
	assert.Equal(t, 50*time.Millisecond, percentile(sorted, 50))
	assert.Equal(t, 100*time.Millisecond, percentile(sorted, 100))
	assert.Zero(t, percentile(nil, 95))
}

func TestSubmitAndVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/claims":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if r.FormValue("policyNumber") != "POL-1" || len(r.MultipartForm.File["supportingDocuments"]) != 2 {
				w.WriteHeader(http.StatusConflict)
				return
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"referenceId": "CLM-1"})
		case r.Method == http.MethodGet && r.URL.Path == "/claims/CLM-1":
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"claimNumber": "CLM-1", "fraudScore": 70, "flagged": true},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	rows, _, err := readClaimsCSV(strings.NewReader(sampleCSV), 2)
	require.NoError(t, err)

	m := run(rows, srv.URL, 2, true, false)

	assert.EqualValues(t, 2, m.TotalSubmitted)
	assert.EqualValues(t, 0, m.TotalErrors)
	assert.EqualValues(t, 1, m.statuses[http.StatusCreated])
	assert.EqualValues(t, 1, m.statuses[http.StatusConflict])
	assert.Len(t, m.latencies, 2)

	assert.EqualValues(t, 1, m.Flagged)
	assert.EqualValues(t, 1, m.FalsePositives, "POL-1 was expected clear")
}
