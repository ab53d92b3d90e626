package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"poagent/internal/catalog"
	"poagent/internal/nlu"
)

var fixedNow = time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)

// fakeGateway is an in-memory Gateway with a small, fixed catalog.
type fakeGateway struct {
	suppliers []catalog.Supplier
	materials []catalog.Material
	orgs      []catalog.Entry
	plants    []catalog.Entry
	groups    []catalog.Entry

	createRes catalog.CreateResult
	createErr error
	created   map[string]interface{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		suppliers: []catalog.Supplier{{VendorID: "10", SAPCode: "S1", Name: "Tata Steel"}},
		materials: []catalog.Material{{ID: 100, Name: "Laptop", Price: 45000, UnitID: 3, MaterialGroupID: 7, TaxCode: 118}},
		orgs:      []catalog.Entry{{ID: 1, Name: "Mumbai Region"}, {ID: 2, Name: "Delhi Region"}},
		plants:    []catalog.Entry{{ID: 5, Name: "Indore Plant", Code: "IP09"}},
		groups:    []catalog.Entry{{ID: 9, Name: "Raw Materials"}},
		createRes: catalog.CreateResult{OK: true, PONumber: "PO-123"},
	}
}

func (f *fakeGateway) POSubTypes() []string {
	return []string{"Regular Purchase", "Service", "Asset"}
}

func (f *fakeGateway) SearchSuppliers(_ context.Context, query string, limit int) ([]catalog.Supplier, error) {
	var out []catalog.Supplier
	for _, s := range f.suppliers {
		if query == "" || strings.Contains(strings.ToLower(s.Name), strings.ToLower(query)) {
			out = append(out, s)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeGateway) AlternateContact(context.Context, string) (catalog.AlternateContact, error) {
	return catalog.AlternateContact{Name: "Ravi", Email: "ravi@example.com", ContactNumber: "9999999999"}, nil
}

func (f *fakeGateway) Currencies(context.Context) ([]string, error) {
	return []string{"INR"}, nil
}

func (f *fakeGateway) PurchaseOrgs(context.Context) ([]catalog.Entry, error) {
	return f.orgs, nil
}

func (f *fakeGateway) Plants(context.Context, []int64) ([]catalog.Entry, error) {
	return f.plants, nil
}

func (f *fakeGateway) PurchaseGroups(context.Context, []int64) ([]catalog.Entry, error) {
	return f.groups, nil
}

func (f *fakeGateway) Projects(context.Context) ([]catalog.Project, error) {
	return []catalog.Project{{Code: "P1", Name: "Project One"}}, nil
}

func (f *fakeGateway) PaymentTerms(context.Context) ([]catalog.Entry, error) {
	return []catalog.Entry{{ID: 3, Name: "Net 30"}}, nil
}

func (f *fakeGateway) Incoterms(context.Context) ([]catalog.Entry, error) {
	return []catalog.Entry{{ID: 4, Name: "FOB"}}, nil
}

func (f *fakeGateway) Materials(_ context.Context, query string) ([]catalog.Material, error) {
	var out []catalog.Material
	for _, m := range f.materials {
		if query == "" || strings.Contains(strings.ToLower(m.Name), strings.TrimSuffix(strings.ToLower(query), "s")) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeGateway) CreatePO(_ context.Context, payload map[string]interface{}) (catalog.CreateResult, error) {
	f.created = payload
	return f.createRes, f.createErr
}

func newTestAgent(gw catalog.Gateway, analyzer nlu.Analyzer) *Agent {
	a := New(gw, analyzer)
	a.now = func() time.Time { return fixedNow }
	return a
}

func TestHappyPathRegularPurchase(t *testing.T) {
	gw := newFakeGateway()
	a := newTestAgent(gw, nil)
	s := NewSession("t1")
	ctx := context.Background()

	// Turn 1: PO type and supplier in one utterance.
	resp := a.Advance(ctx, "Regular purchase for Tata Steel", s)
	if s.Step != StepSupplierDetails {
		t.Fatalf("step = %s, want %s", s.Step, StepSupplierDetails)
	}
	if s.Draft.POType != POTypeRegular {
		t.Errorf("POType = %q", s.Draft.POType)
	}
	if s.Draft.VendorID != "10" {
		t.Errorf("VendorID = %q", s.Draft.VendorID)
	}
	if s.Draft.AlternateSupplierName != "Ravi" {
		t.Errorf("AlternateSupplierName = %q", s.Draft.AlternateSupplierName)
	}
	if !strings.Contains(resp, "Tata Steel") {
		t.Errorf("response missing supplier: %q", resp)
	}

	// Turn 2: dates.
	resp = a.Advance(ctx, "PO date 25 December 2025", s)
	if s.Step != StepOrgDetails {
		t.Fatalf("step = %s, want %s", s.Step, StepOrgDetails)
	}
	if s.Draft.PODate != "2025-12-25" || s.Draft.ValidityEnd != "2026-01-24" {
		t.Errorf("dates = %s / %s", s.Draft.PODate, s.Draft.ValidityEnd)
	}
	if !strings.Contains(resp, "Could not identify Purchase Organization") {
		t.Errorf("response missing org guidance: %q", resp)
	}

	// Turn 3: purchase org alone; plant and group still missing.
	resp = a.Advance(ctx, "Mumbai Region", s)
	if s.Step != StepOrgDetails {
		t.Fatalf("step = %s, want %s", s.Step, StepOrgDetails)
	}
	if s.Draft.PurchaseOrgID != 1 {
		t.Errorf("PurchaseOrgID = %d", s.Draft.PurchaseOrgID)
	}
	if !strings.Contains(resp, "Could not confidently match: Plant, Purchase Group") {
		t.Errorf("response missing partial-match note: %q", resp)
	}

	// Turn 4: plant by code plus group. Commercials auto-fill behind it.
	resp = a.Advance(ctx, "plant IP09 raw materials group", s)
	if s.Step != StepLineItems {
		t.Fatalf("step = %s, want %s", s.Step, StepLineItems)
	}
	if s.Draft.PurchaseOrgID != 1 || s.Draft.PlantID != 5 || s.Draft.PurchaseGroupID != 9 {
		t.Errorf("org details = %d/%d/%d", s.Draft.PurchaseOrgID, s.Draft.PlantID, s.Draft.PurchaseGroupID)
	}
	if s.Draft.PaymentTermsID != 3 || s.Draft.IncotermsID != 4 {
		t.Errorf("commercials = %d/%d", s.Draft.PaymentTermsID, s.Draft.IncotermsID)
	}
	if len(s.Draft.Projects) == 0 || s.Draft.Projects[0].Code != "P1" {
		t.Errorf("projects = %+v", s.Draft.Projects)
	}
	if !strings.Contains(resp, "What items") {
		t.Errorf("response missing line item prompt: %q", resp)
	}

	// Turn 5: line item resolved against the material catalog.
	resp = a.Advance(ctx, "2 laptops at ₹50000 each", s)
	if s.Step != StepConfirm {
		t.Fatalf("step = %s, want %s", s.Step, StepConfirm)
	}
	if len(s.Draft.LineItems) != 1 {
		t.Fatalf("line items = %d, want 1", len(s.Draft.LineItems))
	}
	item := s.Draft.LineItems[0]
	if item.ShortText != "Laptop" || item.Quantity != 2 || item.Price != 50000 {
		t.Errorf("item = %+v", item)
	}
	if item.SubTotal != 100000 || item.Tax != lineItemTax || item.TotalValue != 100012 {
		t.Errorf("item totals = %v/%v/%v", item.SubTotal, item.Tax, item.TotalValue)
	}
	if item.DeliveryDate != "2026-01-01" {
		t.Errorf("DeliveryDate = %s, want PO date + 7d", item.DeliveryDate)
	}
	if item.MaterialID != 100 || item.UnitID != 3 || item.TaxCode != 118 {
		t.Errorf("material fields = %+v", item)
	}
	if !strings.Contains(resp, "Grand Total:** ₹100000") {
		t.Errorf("response missing grand total: %q", resp)
	}

	// Turn 6: finalize.
	resp = a.Advance(ctx, "create PO", s)
	if s.Step != StepDone {
		t.Fatalf("step = %s, want %s", s.Step, StepDone)
	}
	if s.Draft.PONumber != "PO-123" {
		t.Errorf("PONumber = %q", s.Draft.PONumber)
	}
	if !strings.Contains(resp, "PO-123") || !strings.Contains(resp, "₹100000") {
		t.Errorf("response = %q", resp)
	}

	if gw.created == nil {
		t.Fatal("CreatePO never called")
	}
	if gw.created["po_type"] != "regularPurchase" {
		t.Errorf("payload po_type = %v", gw.created["po_type"])
	}
	if gw.created["total"] != float64(100000) {
		t.Errorf("payload total = %v", gw.created["total"])
	}
}

func TestFinalizeWithoutItemsRefused(t *testing.T) {
	a := newTestAgent(newFakeGateway(), nil)
	s := NewSession("t2")

	resp := a.Advance(context.Background(), "create PO", s)
	if !strings.Contains(resp, "at least one line item") {
		t.Errorf("response = %q", resp)
	}
	if s.Step != StepPOType {
		t.Errorf("step = %s, want unchanged", s.Step)
	}
}

func TestSupplierMissIsTerminalForTurn(t *testing.T) {
	a := newTestAgent(newFakeGateway(), nil)
	s := NewSession("t3")
	s.Step = StepSupplier

	resp := a.Advance(context.Background(), "order from Unknown Vendor", s)
	if !strings.Contains(resp, "Could not find supplier 'Unknown Vendor'") {
		t.Errorf("response = %q", resp)
	}
	if s.Step != StepSupplier || s.Draft.VendorID != "" {
		t.Errorf("session mutated: step=%s vendor=%q", s.Step, s.Draft.VendorID)
	}
}

func TestMaterialMissIsTerminalForTurn(t *testing.T) {
	a := newTestAgent(newFakeGateway(), nil)
	s := NewSession("t4")
	s.Step = StepLineItems
	s.Draft.POType = POTypeRegular
	s.Draft.PODate = "2025-12-25"

	resp := a.Advance(context.Background(), "3 printers at ₹8000 each", s)
	if !strings.Contains(resp, "Could not find material 'printers'") {
		t.Errorf("response = %q", resp)
	}
	if s.Step != StepLineItems || len(s.Draft.LineItems) != 0 {
		t.Errorf("session mutated: step=%s items=%d", s.Step, len(s.Draft.LineItems))
	}
}

func TestServiceLineItemSkipsMaterialLookup(t *testing.T) {
	a := newTestAgent(newFakeGateway(), nil)
	s := NewSession("t5")
	s.Step = StepLineItems
	s.Draft.POType = POTypeService
	s.Draft.PODate = "2025-12-25"

	a.Advance(context.Background(), "2 cleaning services at ₹5000 each", s)
	if len(s.Draft.LineItems) != 1 {
		t.Fatalf("line items = %d, want 1", len(s.Draft.LineItems))
	}
	item := s.Draft.LineItems[0]
	if item.ShortText != "Cleaning Services" {
		t.Errorf("ShortText = %q", item.ShortText)
	}
	if item.MaterialID != 0 {
		t.Errorf("MaterialID = %d, want 0 for service", item.MaterialID)
	}
	if item.DeliveryDate != "2025-12-25" {
		t.Errorf("DeliveryDate = %s, want PO date", item.DeliveryDate)
	}
	if item.TotalValue != 10012 {
		t.Errorf("TotalValue = %v", item.TotalValue)
	}
	if s.Step != StepConfirm {
		t.Errorf("step = %s", s.Step)
	}
}

func TestOrgSelectionIsSticky(t *testing.T) {
	a := newTestAgent(newFakeGateway(), nil)
	s := NewSession("t6")
	s.Step = StepOrgDetails
	s.Draft.PurchaseOrgID = 1
	s.Draft.PurchaseOrgName = "Mumbai Region"

	resp := a.Advance(context.Background(), "completely unrelated gibberish", s)
	if s.Draft.PurchaseOrgID != 1 {
		t.Errorf("org cleared by failed match: %d", s.Draft.PurchaseOrgID)
	}
	if !strings.Contains(resp, "Could not confidently match: Plant, Purchase Group") {
		t.Errorf("response = %q", resp)
	}
	if s.Step != StepOrgDetails {
		t.Errorf("step = %s", s.Step)
	}
}

func TestStepRePrompts(t *testing.T) {
	a := newTestAgent(newFakeGateway(), nil)

	tests := []struct {
		step Step
		want string
	}{
		{StepSupplier, "supplier name"},
		{StepSupplierDetails, "PO date and validity"},
		{StepOrgDetails, "Purchase Organization"},
		{StepLineItems, "line items"},
	}
	for _, tt := range tests {
		s := NewSession("t7")
		s.Step = tt.step
		resp := a.Advance(context.Background(), "hmm", s)
		if !strings.Contains(resp, tt.want) {
			t.Errorf("step %s: response %q missing %q", tt.step, resp, tt.want)
		}
	}
}

func TestAdditionalItemsFromConfirm(t *testing.T) {
	// CONFIRM accepts finalize; other text leaves the session untouched.
	a := newTestAgent(newFakeGateway(), nil)
	s := NewSession("t8")
	s.Step = StepConfirm
	s.Draft.LineItems = []LineItem{{ShortText: "Laptop", Quantity: 1, Price: 100, SubTotal: 100}}

	a.Advance(context.Background(), "looks good but wait", s)
	if s.Step != StepConfirm || len(s.Draft.LineItems) != 1 {
		t.Errorf("session mutated: step=%s items=%d", s.Step, len(s.Draft.LineItems))
	}
}

func TestCreateFailureKeepsSession(t *testing.T) {
	gw := newFakeGateway()
	gw.createRes = catalog.CreateResult{OK: false, Message: "vendor blocked", Details: `{"code":17}`}
	a := newTestAgent(gw, nil)

	s := NewSession("t9")
	s.Step = StepConfirm
	s.Draft.LineItems = []LineItem{{ShortText: "Laptop", Quantity: 1, Price: 100, SubTotal: 100}}

	resp := a.Advance(context.Background(), "submit", s)
	if s.Step == StepDone {
		t.Error("step advanced to DONE on failure")
	}
	if !strings.Contains(resp, "vendor blocked") || !strings.Contains(resp, `{"code":17}`) {
		t.Errorf("response = %q", resp)
	}
}

func TestCreateTransportErrorKeepsSession(t *testing.T) {
	gw := newFakeGateway()
	gw.createErr = errors.New("connection refused")
	a := newTestAgent(gw, nil)

	s := NewSession("t10")
	s.Step = StepConfirm
	s.Draft.LineItems = []LineItem{{ShortText: "Laptop", Quantity: 1, Price: 100, SubTotal: 100}}

	resp := a.Advance(context.Background(), "finalize", s)
	if s.Step == StepDone {
		t.Error("step advanced to DONE on transport error")
	}
	if !strings.Contains(resp, "connection refused") {
		t.Errorf("response = %q", resp)
	}
}

// stubAnalyzer feeds fixed advisory entities into the turn.
type stubAnalyzer struct {
	res nlu.Result
	err error
}

func (s stubAnalyzer) Analyze(context.Context, string, string) (nlu.Result, error) {
	return s.res, s.err
}

func TestAdvisoryEntitiesDriveSupplierStep(t *testing.T) {
	analyzer := stubAnalyzer{res: nlu.Result{Entities: nlu.Entities{"supplier_name": "Tata Steel"}}}
	a := newTestAgent(newFakeGateway(), analyzer)

	s := NewSession("t11")
	s.Step = StepSupplier

	// No extractable marker in the text; the advisory entity carries it.
	a.Advance(context.Background(), "the usual steel people please", s)
	if s.Draft.VendorID != "10" {
		t.Errorf("VendorID = %q, want 10", s.Draft.VendorID)
	}
	if s.Step != StepSupplierDetails {
		t.Errorf("step = %s", s.Step)
	}
}

func TestAdvisoryFailureDegradesToPatterns(t *testing.T) {
	analyzer := stubAnalyzer{err: errors.New("model unavailable")}
	a := newTestAgent(newFakeGateway(), analyzer)

	s := NewSession("t12")
	s.Step = StepSupplier

	a.Advance(context.Background(), "order from Tata Steel", s)
	if s.Draft.VendorID != "10" {
		t.Errorf("VendorID = %q, want 10 via pattern fallback", s.Draft.VendorID)
	}
}

func TestGrandTotalSumsSubtotals(t *testing.T) {
	d := OrderDraft{LineItems: []LineItem{
		{SubTotal: 100000},
		{SubTotal: 2500.5},
	}}
	if got := d.GrandTotal(); got != 102500.5 {
		t.Errorf("GrandTotal = %v", got)
	}
}

func TestPOTypeCode(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"Regular Purchase", POTypeRegular},
		{"service", POTypeService},
		{"Asset", POTypeAsset},
		{"Network Service", POTypeRegular},
	}
	for _, tt := range tests {
		if got := poTypeCode(tt.label); got != tt.want {
			t.Errorf("poTypeCode(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}
