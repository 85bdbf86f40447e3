package claims

import (
	"io"
	"strings"

	"github.com/opensource-finance/heron/internal/attachments"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/shopspring/decimal"
)

// Field messages returned to the claimant.
const (
	MsgRequired      = "This field is required."
	MsgInvalidEmail  = "Enter a valid email address."
	MsgInvalidAmount = "Enter a valid claim amount."
)

// File is one uploaded supporting document.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// Submission is a claim form as received from the portal.
type Submission struct {
	PolicyNumber     string
	ClaimantName     string
	ClaimantEmail    string
	IncidentDate     string
	IncidentTime     string
	IncidentLocation string
	ClaimType        string
	Description      string
	ClaimAmount      string
	AdditionalNotes  string

	Files []File
}

func (s *Submission) trim() {
	for _, f := range []*string{
		&s.PolicyNumber, &s.ClaimantName, &s.ClaimantEmail, &s.IncidentDate, &s.IncidentTime,
		&s.IncidentLocation, &s.ClaimType, &s.Description, &s.ClaimAmount, &s.AdditionalNotes,
	} {
		*f = strings.TrimSpace(*f)
	}
}

// Validate checks the form fields in order: required fields, then email, then amount.
// The first failing stage is reported.
func (s *Submission) Validate() (decimal.Decimal, error) {
	required := []struct {
		name  string
		value string
	}{
		{"policyNumber", s.PolicyNumber},
		{"claimantName", s.ClaimantName},
		{"claimantEmail", s.ClaimantEmail},
		{"incidentDate", s.IncidentDate},
		{"incidentTime", s.IncidentTime},
		{"incidentLocation", s.IncidentLocation},
		{"claimType", s.ClaimType},
		{"description", s.Description},
		{"claimAmount", s.ClaimAmount},
	}
	missing := map[string]string{}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing[f.name] = MsgRequired
		}
	}
	if len(missing) > 0 {
		return decimal.Zero, &ValidationError{Errors: missing}
	}

	if !domain.ValidEmail(strings.TrimSpace(s.ClaimantEmail)) {
		return decimal.Zero, &ValidationError{Errors: map[string]string{"claimantEmail": MsgInvalidEmail}}
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(s.ClaimAmount))
	if err != nil || !domain.ValidAmount(amount) {
		return decimal.Zero, &ValidationError{Errors: map[string]string{"claimAmount": MsgInvalidAmount}}
	}
	return amount, nil
}

// ValidateFiles checks every upload's MIME type and size.
func ValidateFiles(files []File, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = attachments.DefaultMaxBytes
	}
	var verr FileValidationError
	for _, f := range files {
		if !attachments.AllowedTypes[mediaType(f.ContentType)] {
			verr.InvalidTypes = append(verr.InvalidTypes, f.Name)
		}
		if f.Size > maxBytes {
			verr.TooLarge = append(verr.TooLarge, f.Name)
		}
	}
	if len(verr.InvalidTypes) == 0 && len(verr.TooLarge) == 0 {
		return nil
	}
	if verr.InvalidTypes == nil {
		verr.InvalidTypes = []string{}
	}
	if verr.TooLarge == nil {
		verr.TooLarge = []string{}
	}
	return &verr
}

func mediaType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
