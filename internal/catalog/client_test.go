package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		BaseURL:    srv.URL,
		APIToken:   "test-token",
		SessionKey: "test-session",
	})
}

func jsonResponse(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func TestPurchaseOrgsEnvelopeShapes(t *testing.T) {
	want := []Entry{
		{ID: 1, Name: "Mumbai Region"},
		{ID: 2, Name: "Delhi Region"},
	}

	shapes := map[string]string{
		"bare list":    `[{"id":1,"name":"Mumbai Region"},{"id":2,"name":"Delhi Region"}]`,
		"data list":    `{"data":[{"id":1,"name":"Mumbai Region"},{"id":2,"name":"Delhi Region"}]}`,
		"data rows":    `{"data":{"rows":[{"id":1,"name":"Mumbai Region"},{"id":2,"name":"Delhi Region"}],"total":2}}`,
		"string ids":   `{"data":[{"id":"1","name":"Mumbai Region"},{"id":"2","name":"Delhi Region"}]}`,
		"descriptions": `{"data":[{"id":1,"description":"Mumbai Region"},{"id":2,"description":"Delhi Region"}]}`,
	}

	for name, body := range shapes {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, jsonResponse(body))
			got, err := c.PurchaseOrgs(context.Background())
			if err != nil {
				t.Fatalf("PurchaseOrgs: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("entries mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSearchSuppliersAppliesLimitAndAuth(t *testing.T) {
	var gotAuth, gotSession string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotSession = r.Header.Get("x-session-key")
		w.Write([]byte(`{"data":[
			{"id":10,"sap_code":"S1","supplier_name":"Tata Steel"},
			{"id":11,"sap_code":"S2","supplier_name":"Tata Motors"},
			{"id":12,"sap_code":"S3","supplier_name":"Tata Power"}
		]}`))
	})

	got, err := c.SearchSuppliers(context.Background(), "tata", 2)
	if err != nil {
		t.Fatalf("SearchSuppliers: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d suppliers, want 2", len(got))
	}
	if got[0].VendorID != "10" || got[0].Name != "Tata Steel" {
		t.Errorf("first supplier = %+v", got[0])
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotSession != "test-session" {
		t.Errorf("x-session-key = %q", gotSession)
	}
}

func TestCurrenciesShapes(t *testing.T) {
	t.Run("objects", func(t *testing.T) {
		c := newTestClient(t, jsonResponse(`{"data":[{"currencyCode":"INR"},{"currencyCode":"USD"}]}`))
		got, err := c.Currencies(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"INR", "USD"}, got); diff != "" {
			t.Error(diff)
		}
	})
	t.Run("bare strings", func(t *testing.T) {
		c := newTestClient(t, jsonResponse(`["INR","EUR"]`))
		got, err := c.Currencies(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"INR", "EUR"}, got); diff != "" {
			t.Error(diff)
		}
	})
	t.Run("empty falls back to INR", func(t *testing.T) {
		c := newTestClient(t, jsonResponse(`{"data":[]}`))
		got, err := c.Currencies(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0] != "INR" {
			t.Errorf("got %v, want [INR]", got)
		}
	})
}

func TestMaterialsDefaults(t *testing.T) {
	c := newTestClient(t, jsonResponse(`{"data":[
		{"id":100,"name":"Laptop","price":"45000.50","unit":{"id":3},"material_group":{"id":7}},
		{"id":101,"name":"Mouse","price":500}
	]}`))

	got, err := c.Materials(context.Background(), "lap")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d materials, want 2", len(got))
	}
	if got[0].Price != 45000.50 || got[0].UnitID != 3 || got[0].MaterialGroupID != 7 {
		t.Errorf("first material = %+v", got[0])
	}
	if got[0].TaxCode != defaultTaxCode {
		t.Errorf("TaxCode = %d, want %d", got[0].TaxCode, defaultTaxCode)
	}
	// Missing group falls back to the default.
	if got[1].MaterialGroupID != defaultMaterialGroupID {
		t.Errorf("MaterialGroupID = %d, want %d", got[1].MaterialGroupID, defaultMaterialGroupID)
	}
}

func TestAlternateContact(t *testing.T) {
	c := newTestClient(t, jsonResponse(`{"data":[{
		"alternate_supplier_name":"Ravi",
		"alternate_supplier_email":"ravi@example.com",
		"alternate_supplier_contact_number":"9999999999"
	}]}`))

	got, err := c.AlternateContact(context.Background(), "10")
	if err != nil {
		t.Fatal(err)
	}
	want := AlternateContact{Name: "Ravi", Email: "ravi@example.com", ContactNumber: "9999999999"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Error(diff)
	}
}

func TestCreatePOResultNormalization(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantOK  bool
		wantPO  string
		wantMsg string
	}{
		{"explicit success", `{"success":true,"po_number":"PO-123"}`, true, "PO-123", ""},
		{"error false counts as success", `{"error":false,"message":"queued"}`, true, "Unknown", "queued"},
		{"po number nested in data", `{"success":true,"data":{"po_number":"PO-456"}}`, true, "PO-456", ""},
		{"numeric po number", `{"success":true,"data":{"po_number":789}}`, true, "789", ""},
		{"explicit error", `{"error":true,"message":"vendor blocked"}`, false, "", "vendor blocked"},
		{"no flags at all", `{"message":"huh"}`, false, "", "huh"},
		{"error with no message", `{"error":true}`, false, "", "Unknown error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := normalizeCreateResult([]byte(tt.body), 200)
			if err != nil {
				t.Fatal(err)
			}
			if res.OK != tt.wantOK || res.PONumber != tt.wantPO || res.Message != tt.wantMsg {
				t.Errorf("got %+v, want ok=%v po=%q msg=%q", res, tt.wantOK, tt.wantPO, tt.wantMsg)
			}
		})
	}
}

func TestCreatePOUnparseableBody(t *testing.T) {
	if _, err := normalizeCreateResult([]byte("<html>gateway timeout</html>"), 504); err == nil {
		t.Error("expected an error for unparseable body")
	}
}

func TestCreatePOSendsFlattenedMultipart(t *testing.T) {
	var fields map[string][]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("expected multipart form: %v", err)
		}
		fields = r.MultipartForm.Value
		w.Write([]byte(`{"success":true,"po_number":"PO-1"}`))
	})

	payload := map[string]interface{}{
		"po_type":            "regularPurchase",
		"is_epcg_applicable": false,
		"total":              float64(50012),
		"datasupplier":       nil,
		"line_items": []interface{}{
			map[string]interface{}{"price": float64(25000), "quantity": float64(2)},
		},
	}
	res, err := c.CreatePO(context.Background(), payload)
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK || res.PONumber != "PO-1" {
		t.Fatalf("result = %+v", res)
	}

	want := map[string]string{
		"po_type":                "regularPurchase",
		"is_epcg_applicable":     "false",
		"total":                  "50012",
		"datasupplier":           "",
		"line_items[0].price":    "25000",
		"line_items[0].quantity": "2",
	}
	for k, v := range want {
		got, ok := fields[k]
		if !ok || len(got) != 1 || got[0] != v {
			t.Errorf("field %s = %v, want %q", k, got, v)
		}
	}
}

func TestDecodeRowsUnknownShape(t *testing.T) {
	if rows := decodeRows([]byte(`{"status":"weird"}`)); rows != nil {
		t.Errorf("got %v, want nil", rows)
	}
	if rows := decodeRows([]byte(`not json`)); rows != nil {
		t.Errorf("got %v, want nil", rows)
	}
}

func TestFetchOrgContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		json.NewDecoder(r.Body).Decode(&payload)
		if _, ok := payload["purchase_org_id"]; !ok {
			t.Errorf("%s missing purchase_org_id scope", r.URL.Path)
		}
		switch r.URL.Path {
		case "/api/v1/admin/plants/list":
			w.Write([]byte(`{"data":[{"id":5,"name":"Indore Plant","code":"IP09"}]}`))
		case "/api/v1/admin/purchaseGroup/list":
			w.Write([]byte(`{"data":[{"id":9,"name":"Raw Materials"}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	octx, err := FetchOrgContext(context.Background(), c, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(octx.Plants) != 1 || octx.Plants[0].Code != "IP09" {
		t.Errorf("plants = %+v", octx.Plants)
	}
	if len(octx.Groups) != 1 || octx.Groups[0].Name != "Raw Materials" {
		t.Errorf("groups = %+v", octx.Groups)
	}
}

func TestErrorStatusSurfaces(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	})
	if _, err := c.PurchaseOrgs(context.Background()); err == nil {
		t.Error("expected an error on 401")
	}
}
