package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/heron/internal/assignment"
	"github.com/opensource-finance/heron/internal/attachments"
	"github.com/opensource-finance/heron/internal/bus"
	"github.com/opensource-finance/heron/internal/cache"
	"github.com/opensource-finance/heron/internal/claims"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/eligibility"
	"github.com/opensource-finance/heron/internal/fraud"
	"github.com/opensource-finance/heron/internal/notify"
	"github.com/opensource-finance/heron/internal/policy"
	"github.com/opensource-finance/heron/internal/renewal"
	"github.com/opensource-finance/heron/internal/repository"
	"github.com/opensource-finance/heron/internal/rules"
	"github.com/opensource-finance/heron/internal/sla"
	"github.com/opensource-finance/heron/internal/velocity"
	"github.com/opensource-finance/heron/internal/workflow"
	"github.com/shopspring/decimal"
)

type testEnv struct {
	server *Server
	repo   *repository.SQLRepository
	events *bus.ChannelBus
}

// createTestServer wires every service over a temp-file SQLite store.
func createTestServer(t *testing.T) *testEnv {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "api-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	lru := cache.NewLRUCache(100)
	t.Cleanup(func() { lru.Close() })
	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	engine, err := rules.NewEngine(velocity.NewService(repo).GetVelocityGetter(), 5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if _, err := fraud.SyncRules(context.Background(), repo, engine); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}
	scorer := fraud.NewScorer(engine, nil, fraud.DefaultWindow)

	files, err := attachments.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create attachment store: %v", err)
	}

	policies := eligibility.NewCachedStore(repo, lru, time.Minute)
	assigner := assignment.NewRoundRobin(repo, lru)
	notifier := notify.NewService(repo, eventBus)
	tracker := sla.NewTracker(repo)

	svc := Services{
		Repo:  repo,
		Cache: lru,
		Bus:   eventBus,
		Claims: claims.NewService(claims.Deps{
			Claims:      repo,
			Policies:    policies,
			Eligibility: eligibility.NewEvaluator(policies),
			Scorer:      scorer,
			Assigner:    assigner,
			Attachments: files,
			Notifier:    notifier,
			SLA:         tracker,
			Bus:         eventBus,
		}, domain.ClaimsConfig{}),
		Policies: policy.NewService(policy.Deps{
			Policies: repo,
			Assigner: assigner,
			Notifier: notifier,
			SLA:      tracker,
			Cache:    lru,
			Bus:      eventBus,
		}, domain.PoliciesConfig{}),
		SLA:       tracker,
		Renewals:  renewal.NewService(repo, repo, notifier, domain.RenewalsConfig{}),
		Notifier:  notifier,
		Workflows: workflow.NewService(repo),
		Scorer:    scorer,
	}

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}
	return &testEnv{server: NewServer(cfg, svc, "test-v1"), repo: repo, events: eventBus}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rr := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) saveUser(t *testing.T, id string, role domain.Role) {
	t.Helper()
	u := &domain.User{ID: id, Email: id + "@example.com", Name: id, Role: role, CreatedAt: time.Now().UTC()}
	if err := e.repo.SaveUser(context.Background(), u); err != nil {
		t.Fatalf("failed to save user: %v", err)
	}
}

func (e *testEnv) savePolicy(t *testing.T, number, customer string) {
	t.Helper()
	today := time.Now().UTC().Truncate(24 * time.Hour)
	p := &domain.Policy{
		ID:             "id-" + number,
		PolicyNumber:   number,
		CustomerID:     customer,
		Type:           "Auto",
		Status:         domain.PolicyActive,
		CoverageAmount: decimal.NewFromInt(50000),
		Premium:        decimal.NewFromInt(900),
		CoverageStart:  today.AddDate(0, 0, -30),
		CoverageEnd:    today.AddDate(0, 0, 300),
		CreatedAt:      time.Now().UTC().AddDate(0, 0, -30),
	}
	if err := e.repo.SavePolicy(context.Background(), p); err != nil {
		t.Fatalf("failed to save policy: %v", err)
	}
}

type upload struct {
	name        string
	contentType string
	data        []byte
}

func claimForm(t *testing.T, fields map[string]string, files ...upload) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="supportingDocuments"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("failed to create part: %v", err)
		}
		part.Write(f.data)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func validClaimFields(policyNumber string) map[string]string {
	return map[string]string{
		"policyNumber":     policyNumber,
		"claimantName":     "Cara Diaz",
		"claimantEmail":    "cara@example.com",
		"incidentDate":     time.Now().UTC().AddDate(0, 0, -1).Format(domain.DateFormat),
		"incidentTime":     "14:30",
		"incidentLocation": "Main St & 3rd Ave",
		"claimType":        "Collision",
		"description":      "Rear-ended at a light.",
		"claimAmount":      "1200.50",
	}
}

func (e *testEnv) submit(t *testing.T, fields map[string]string, files ...upload) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := claimForm(t, fields, files...)
	req := httptest.NewRequest(http.MethodPost, "/claims", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
	}
}

var twoPDFs = []upload{
	{name: "police report.pdf", contentType: "application/pdf", data: []byte("%PDF-1.4 report")},
	{name: "photo.png", contentType: "image/png", data: []byte("png")},
}

func TestHealthEndpoints(t *testing.T) {
	env := createTestServer(t)

	rr := env.do(t, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var health map[string]string
	decode(t, rr, &health)
	if health["status"] != "healthy" {
		t.Errorf("expected healthy, got %s", health["status"])
	}
	if health["version"] != "test-v1" {
		t.Errorf("expected version test-v1, got %s", health["version"])
	}

	rr = env.do(t, http.MethodGet, "/ready", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "heron_http_requests_total") {
		t.Error("expected heron_http_requests_total in metrics output")
	}

	env.events.Close()
	rr = env.do(t, http.MethodGet, "/health", nil)
	decode(t, rr, &health)
	if health["status"] != "degraded" {
		t.Errorf("expected degraded with the bus closed, got %s", health["status"])
	}
}

func TestSubmitClaimEndpoint(t *testing.T) {
	env := createTestServer(t)
	env.saveUser(t, "adjuster-1", domain.RoleAdjuster)
	env.savePolicy(t, "POL-100", "cust-1")

	t.Run("Created", func(t *testing.T) {
		rr := env.submit(t, validClaimFields("pol-100"), twoPDFs...)
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp map[string]string
		decode(t, rr, &resp)
		if !strings.HasPrefix(resp["referenceId"], "CLM-") {
			t.Errorf("expected CLM- reference, got %q", resp["referenceId"])
		}
	})

	t.Run("MissingFields", func(t *testing.T) {
		fields := validClaimFields("POL-100")
		delete(fields, "claimantName")
		fields["description"] = "   "

		rr := env.submit(t, fields)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rr.Code)
		}
		var resp struct {
			Message string            `json:"message"`
			Errors  map[string]string `json:"errors"`
		}
		decode(t, rr, &resp)
		if resp.Message != "Validation failed." {
			t.Errorf("unexpected message %q", resp.Message)
		}
		for _, field := range []string{"claimantName", "description"} {
			if resp.Errors[field] != "This field is required." {
				t.Errorf("expected required error for %s, got %q", field, resp.Errors[field])
			}
		}
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		fields := validClaimFields("POL-100")
		fields["claimAmount"] = "-5"

		rr := env.submit(t, fields)
		var resp struct {
			Errors map[string]string `json:"errors"`
		}
		decode(t, rr, &resp)
		if rr.Code != http.StatusBadRequest || resp.Errors["claimAmount"] != "Enter a valid claim amount." {
			t.Errorf("expected amount error, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("RejectedFileType", func(t *testing.T) {
		rr := env.submit(t, validClaimFields("POL-100"),
			upload{name: "notes.txt", contentType: "text/plain", data: []byte("hi")})
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rr.Code)
		}
		var resp struct {
			Message string `json:"message"`
			Errors  struct {
				InvalidTypes []string `json:"invalidTypes"`
			} `json:"errors"`
		}
		decode(t, rr, &resp)
		if resp.Message != "File validation failed." {
			t.Errorf("unexpected message %q", resp.Message)
		}
		if len(resp.Errors.InvalidTypes) != 1 || resp.Errors.InvalidTypes[0] != "notes.txt" {
			t.Errorf("expected notes.txt rejected, got %v", resp.Errors.InvalidTypes)
		}
	})

	t.Run("Ineligible", func(t *testing.T) {
		rr := env.submit(t, validClaimFields("POL-404"))
		if rr.Code != http.StatusConflict {
			t.Fatalf("expected status 409, got %d", rr.Code)
		}
		var resp struct {
			Message string   `json:"message"`
			Reasons []string `json:"reasons"`
		}
		decode(t, rr, &resp)
		if resp.Message != "Claim is not eligible for submission." {
			t.Errorf("unexpected message %q", resp.Message)
		}
		if len(resp.Reasons) != 1 || resp.Reasons[0] != eligibility.ReasonPolicyNotFound {
			t.Errorf("unexpected reasons %v", resp.Reasons)
		}
	})

	t.Run("MalformedBody", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/claims", strings.NewReader("--broken"))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
		rr := httptest.NewRecorder()
		env.server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestClaimReadsAndDecisions(t *testing.T) {
	env := createTestServer(t)
	env.saveUser(t, "adjuster-1", domain.RoleAdjuster)
	env.savePolicy(t, "POL-200", "cust-2")

	rr := env.submit(t, validClaimFields("POL-200"), twoPDFs...)
	if rr.Code != http.StatusCreated {
		t.Fatalf("submission failed: %d %s", rr.Code, rr.Body.String())
	}
	var created map[string]string
	decode(t, rr, &created)
	ref := created["referenceId"]

	t.Run("GetByNumber", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/claims/"+ref, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var resp struct {
			Data domain.Claim `json:"data"`
		}
		decode(t, rr, &resp)
		if resp.Data.Status != domain.ClaimUnderReview {
			t.Errorf("expected under_review, got %s", resp.Data.Status)
		}
		if resp.Data.AssignedTo != "adjuster-1" {
			t.Errorf("expected adjuster-1, got %s", resp.Data.AssignedTo)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/claims/CLM-missing", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
		if strings.TrimSpace(rr.Body.String()) != `{"error":"not found"}` {
			t.Errorf("unexpected body %s", rr.Body.String())
		}
	})

	t.Run("ListScopedToAssignee", func(t *testing.T) {
		var resp struct {
			Data []domain.Claim `json:"data"`
		}

		rr := env.do(t, http.MethodGet, "/claims", nil, UserIDHeader, "adjuster-1", UserRoleHeader, "adjuster")
		decode(t, rr, &resp)
		if len(resp.Data) != 1 {
			t.Errorf("expected 1 claim for adjuster-1, got %d", len(resp.Data))
		}

		rr = env.do(t, http.MethodGet, "/claims?role=adjuster&userId=adjuster-9", nil)
		decode(t, rr, &resp)
		if len(resp.Data) != 0 {
			t.Errorf("expected no claims for adjuster-9, got %d", len(resp.Data))
		}
	})

	t.Run("InvalidAction", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/claims/"+ref+"/decision", DecisionRequest{Action: "escalate"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ApproveThenPay", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/claims/"+ref+"/decision", DecisionRequest{Action: "approve"},
			UserIDHeader, "adjuster-1")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		rr = env.do(t, http.MethodPost, "/claims/"+ref+"/decision", DecisionRequest{Action: "reject"})
		if rr.Code != http.StatusConflict {
			t.Errorf("expected status 409 for approved to rejected, got %d", rr.Code)
		}

		rr = env.do(t, http.MethodPost, "/claims/"+ref+"/decision", DecisionRequest{Action: "pay"})
		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		rr = env.do(t, http.MethodGet, "/notifications", nil, UserIDHeader, "cust-2")
		var resp struct {
			Notifications []domain.Notification `json:"notifications"`
		}
		decode(t, rr, &resp)
		titles := map[string]bool{}
		for _, n := range resp.Notifications {
			titles[n.Title] = true
		}
		if !titles["Claim Approved"] || !titles["Claim Paid"] {
			t.Errorf("expected approval and payment notifications, got %v", titles)
		}
	})

	t.Run("Eligibility", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/eligibility", domain.EligibilityRequest{
			PolicyNumber: "POL-200",
			ClaimType:    "Collision",
			IncidentDate: time.Now().UTC().Format(domain.DateFormat),
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var resp domain.EligibilityDecision
		decode(t, rr, &resp)
		if resp.Eligible {
			t.Error("expected the earlier collision claim to block as a duplicate")
		}
		if len(resp.Reasons) != 1 || resp.Reasons[0] != eligibility.ReasonPossibleDuplicate {
			t.Errorf("unexpected reasons %v", resp.Reasons)
		}
	})
}

func TestPolicyEndpoints(t *testing.T) {
	env := createTestServer(t)
	env.saveUser(t, "uw-1", domain.RoleUnderwriter)

	today := time.Now().UTC()
	apply := map[string]any{
		"customerId":        "cust-9",
		"type":              "Home",
		"coverageAmount":    250000,
		"premium":           "1200.00",
		"startDate":         today.Format(domain.DateFormat),
		"endDate":           today.AddDate(1, 0, 0).Format(domain.DateFormat),
		"coveredClaimTypes": []string{"Fire", "Flood"},
	}

	rr := env.do(t, http.MethodPost, "/policies", apply, UserIDHeader, "cust-9")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created map[string]string
	decode(t, rr, &created)
	if !strings.HasPrefix(created["policyNumber"], "POL-") || created["policyId"] == "" {
		t.Fatalf("unexpected response %v", created)
	}

	t.Run("EndBeforeStart", func(t *testing.T) {
		bad := map[string]any{}
		for k, v := range apply {
			bad[k] = v
		}
		bad["endDate"] = today.AddDate(0, 0, -1).Format(domain.DateFormat)

		rr := env.do(t, http.MethodPost, "/policies", bad)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("UnderwritingQueue", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/underwriting", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}

		rr = env.do(t, http.MethodGet, "/underwriting?underwriterId=uw-1", nil)
		var resp struct {
			Data []domain.Policy `json:"data"`
		}
		decode(t, rr, &resp)
		if len(resp.Data) != 1 || resp.Data[0].PolicyNumber != created["policyNumber"] {
			t.Errorf("expected the new application in uw-1's queue, got %v", resp.Data)
		}
	})

	t.Run("ListForCustomer", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/policies?role=customer&userId=cust-9", nil)
		var resp struct {
			Policies []domain.Policy `json:"policies"`
		}
		decode(t, rr, &resp)
		if len(resp.Policies) != 1 {
			t.Errorf("expected 1 policy, got %d", len(resp.Policies))
		}
	})

	t.Run("StatusChanges", func(t *testing.T) {
		path := "/policies/" + created["policyId"]

		rr := env.do(t, http.MethodPatch, path, PolicyStatusRequest{Status: "bogus"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}

		rr = env.do(t, http.MethodPatch, path, PolicyStatusRequest{Status: "expired"})
		if rr.Code != http.StatusConflict {
			t.Errorf("expected status 409 for pending to expired, got %d", rr.Code)
		}

		rr = env.do(t, http.MethodPatch, path, PolicyStatusRequest{Status: "approved"}, UserIDHeader, "uw-1")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		rr = env.do(t, http.MethodGet, "/policies/"+created["policyNumber"], nil)
		var resp struct {
			Data domain.Policy `json:"data"`
		}
		decode(t, rr, &resp)
		if resp.Data.Status != domain.PolicyApproved || resp.Data.ApprovedAt == nil {
			t.Errorf("expected approved policy with approvedAt, got %s", resp.Data.Status)
		}
	})
}

func TestNotificationEndpoints(t *testing.T) {
	env := createTestServer(t)

	rr := env.do(t, http.MethodGet, "/notifications", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"error":"Unauthorized"}` {
		t.Errorf("unexpected body %s", rr.Body.String())
	}

	n, err := env.server.Handler().svc.Notifier.Notify(context.Background(), "user-1", "Hello", "World", domain.NotificationClaim)
	if err != nil {
		t.Fatalf("failed to notify: %v", err)
	}

	rr = env.do(t, http.MethodGet, "/notifications?userId=user-1", nil)
	var resp struct {
		Notifications []domain.Notification `json:"notifications"`
	}
	decode(t, rr, &resp)
	if len(resp.Notifications) != 1 || resp.Notifications[0].Read {
		t.Fatalf("expected one unread notification, got %+v", resp.Notifications)
	}

	rr = env.do(t, http.MethodPatch, "/notifications", MarkReadRequest{ID: n.ID})
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != `{"success":true}` {
		t.Errorf("expected success, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPatch, "/notifications", MarkReadRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestRenewalEndpoints(t *testing.T) {
	env := createTestServer(t)

	t.Run("Validation", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/renewals", map[string]string{
			"policyNumber":  "POL-1",
			"customerEmail": "not-an-email",
			"expiryDate":    "someday",
		})
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rr.Code)
		}
		var resp struct {
			Message string            `json:"message"`
			Errors  map[string]string `json:"errors"`
		}
		decode(t, rr, &resp)
		want := map[string]string{
			"customerName":  "Customer name is required.",
			"customerEmail": "Enter a valid email address.",
			"expiryDate":    "Invalid expiry date.",
		}
		for field, msg := range want {
			if resp.Errors[field] != msg {
				t.Errorf("%s: expected %q, got %q", field, msg, resp.Errors[field])
			}
		}
	})

	t.Run("Schedule", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/renewals", map[string]any{
			"policyNumber":  "POL-1",
			"customerName":  "Dee",
			"customerEmail": "dee@example.com",
			"expiryDate":    time.Now().UTC().AddDate(0, 0, 60).Format(domain.DateFormat),
			"leadTimes":     "30, 7",
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp struct {
			Reminder domain.RenewalRecord `json:"reminder"`
		}
		decode(t, rr, &resp)
		if !strings.HasPrefix(resp.Reminder.ID, "RNW-") {
			t.Errorf("unexpected id %q", resp.Reminder.ID)
		}
		if len(resp.Reminder.Reminders) != 2 {
			t.Errorf("expected 2 reminders, got %d", len(resp.Reminder.Reminders))
		}

		rr = env.do(t, http.MethodGet, "/renewals", nil)
		var list struct {
			Reminders []domain.RenewalRecord `json:"reminders"`
		}
		decode(t, rr, &list)
		if len(list.Reminders) != 1 {
			t.Errorf("expected 1 record, got %d", len(list.Reminders))
		}
	})

	t.Run("Sweep", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/renewals/sweep", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var resp renewal.SweepResult
		decode(t, rr, &resp)
		if resp.PoliciesDue != 0 || resp.RemindersSent != 0 {
			t.Errorf("expected empty sweep, got %+v", resp)
		}
	})
}

func TestSLAEndpoint(t *testing.T) {
	env := createTestServer(t)
	env.saveUser(t, "adjuster-1", domain.RoleAdjuster)
	env.savePolicy(t, "POL-300", "cust-3")

	if rr := env.submit(t, validClaimFields("POL-300"), twoPDFs...); rr.Code != http.StatusCreated {
		t.Fatalf("submission failed: %d", rr.Code)
	}

	rr := env.do(t, http.MethodGet, "/sla", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp struct {
		SLAData []domain.SLASummary `json:"slaData"`
	}
	decode(t, rr, &resp)
	if len(resp.SLAData) != 1 || resp.SLAData[0].EntityType != domain.EntityClaim || resp.SLAData[0].Total != 1 {
		t.Errorf("unexpected summary %+v", resp.SLAData)
	}
}

func TestWorkflowEndpoints(t *testing.T) {
	env := createTestServer(t)

	rr := env.do(t, http.MethodPost, "/workflows", CreateWorkflowRequest{Key: "NOPE"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for unknown template, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/workflows", CreateWorkflowRequest{Key: "CLAIM"}, UserIDHeader, "admin-1")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created struct {
		Data domain.Workflow `json:"data"`
	}
	decode(t, rr, &created)
	path := "/workflows/" + created.Data.ID

	rr = env.do(t, http.MethodPatch, path, map[string]any{"name": "Claims fast track", "active": false})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var updated struct {
		Data domain.Workflow `json:"data"`
	}
	decode(t, rr, &updated)
	if updated.Data.Name != "Claims fast track" || updated.Data.Active {
		t.Errorf("patch not applied: %+v", updated.Data)
	}
	if updated.Data.Version != created.Data.Version+1 {
		t.Errorf("expected version %d, got %d", created.Data.Version+1, updated.Data.Version)
	}

	rr = env.do(t, http.MethodGet, "/workflows", nil)
	var list struct {
		Data []domain.Workflow `json:"data"`
	}
	decode(t, rr, &list)
	if len(list.Data) != 1 {
		t.Errorf("expected 1 workflow, got %d", len(list.Data))
	}

	rr = env.do(t, http.MethodDelete, path, nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, path, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestRuleEndpoints(t *testing.T) {
	env := createTestServer(t)

	rr := env.do(t, http.MethodGet, "/rules", nil)
	var listed struct {
		Count int `json:"count"`
	}
	decode(t, rr, &listed)
	if listed.Count != 3 {
		t.Fatalf("expected 3 built-in rules, got %d", listed.Count)
	}

	t.Run("MissingFields", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/rules", CreateRuleRequest{ID: "x", Points: -1})
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rr.Code)
		}
		var resp struct {
			Errors map[string]string `json:"errors"`
		}
		decode(t, rr, &resp)
		if resp.Errors["expression"] != "This field is required." || resp.Errors["points"] != "Must not be negative." {
			t.Errorf("unexpected errors %v", resp.Errors)
		}
	})

	t.Run("InvalidExpression", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/rules", CreateRuleRequest{
			ID: "bad", Name: "Bad", Expression: "amount_cents >", Points: 10, Reason: "bad",
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("CreateAndReload", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/rules", CreateRuleRequest{
			ID:         "large-theft",
			Name:       "Large theft",
			Expression: `claim_type == "Theft" && amount_cents > 1000000`,
			Points:     25,
			Reason:     "Large theft claim.",
			Priority:   40,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		rr = env.do(t, http.MethodPost, "/rules/reload", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		rr = env.do(t, http.MethodGet, "/rules", nil)
		decode(t, rr, &listed)
		if listed.Count != 4 {
			t.Errorf("expected 4 rules after reload, got %d", listed.Count)
		}
	})
}

func TestUserAndAuditEndpoints(t *testing.T) {
	env := createTestServer(t)

	rr := env.do(t, http.MethodPost, "/users", CreateUserRequest{Email: "nope", Role: "pilot"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var invalid struct {
		Errors map[string]string `json:"errors"`
	}
	decode(t, rr, &invalid)
	want := map[string]string{
		"email": "Enter a valid email address.",
		"name":  "This field is required.",
		"role":  "Unknown role.",
	}
	for field, msg := range want {
		if invalid.Errors[field] != msg {
			t.Errorf("%s: expected %q, got %q", field, msg, invalid.Errors[field])
		}
	}

	rr = env.do(t, http.MethodPost, "/users", CreateUserRequest{Email: "ann@example.com", Name: "Ann", Role: "Analyst"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/users", CreateUserRequest{Email: "ann@example.com", Name: "Ann B", Role: "Adjuster"})
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate email: expected status 409, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/users?role=analyst", nil)
	var users struct {
		Users []domain.User `json:"users"`
	}
	decode(t, rr, &users)
	if len(users.Users) != 1 || users.Users[0].Role != domain.RoleAnalyst {
		t.Errorf("unexpected users %+v", users.Users)
	}

	rr = env.do(t, http.MethodGet, "/users?role=pilot", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/audit?limit=zero", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/audit", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
}

func TestMiddleware(t *testing.T) {
	env := createTestServer(t)

	t.Run("Preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/claims", nil)
		req.Header.Set("Origin", "https://portal.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rr := httptest.NewRecorder()
		env.server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Errorf("expected status 204, got %d", rr.Code)
		}
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://portal.example.com" {
			t.Errorf("unexpected allow-origin %q", got)
		}
	})

	t.Run("RequestID", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/health", nil, RequestIDHeader, "req-123")
		if rr.Header().Get(RequestIDHeader) != "req-123" {
			t.Errorf("expected request id echoed, got %q", rr.Header().Get(RequestIDHeader))
		}
		if rr.Header().Get(TraceIDHeader) == "" {
			t.Error("expected trace id header")
		}
	})

	t.Run("NoOriginNoCORS", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/health", nil)
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("expected no CORS headers without Origin, got %q", got)
		}
	})

	t.Run("GeneratedRequestID", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/health", nil)
		if rr.Header().Get(RequestIDHeader) == "" {
			t.Error("expected a generated request id")
		}
	})

	t.Run("Recover", func(t *testing.T) {
		h := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/claims", nil))

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "An unexpected error occurred.") {
			t.Errorf("unexpected body %s", rr.Body.String())
		}
	})

	t.Run("Actor", func(t *testing.T) {
		var got Actor
		h := ActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = GetActor(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/claims?userId=q-user&role=manager", nil)
		req.Header.Set(UserIDHeader, "h-user")
		h.ServeHTTP(httptest.NewRecorder(), req)

		if got.UserID != "h-user" || got.Role != domain.RoleManager {
			t.Errorf("unexpected actor %+v", got)
		}
	})
}
