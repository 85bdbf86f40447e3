package cache

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/opensource-finance/heron/internal/domain"
)

// policyKey normalizes a policy number so lookups ignore case.
func policyKey(policyNumber string) string {
	return strings.ToLower(strings.TrimSpace(policyNumber))
}

func clonePolicy(p *domain.Policy) *domain.Policy {
	cp := *p
	cp.CoveredClaimTypes = slices.Clone(p.CoveredClaimTypes)
	if p.MaxClaimsPerYear != nil {
		n := *p.MaxClaimsPerYear
		cp.MaxClaimsPerYear = &n
	}
	if p.ApprovedAt != nil {
		t := *p.ApprovedAt
		cp.ApprovedAt = &t
	}
	return &cp
}

func encodePolicy(p *domain.Policy) ([]byte, error) {
	return json.Marshal(p)
}

func decodePolicy(data []byte) (*domain.Policy, error) {
	var p domain.Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
