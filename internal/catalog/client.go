package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"poagent/internal/logging"
)

// ClientConfig holds configuration for the SupplierX HTTP client.
type ClientConfig struct {
	BaseURL    string
	APIToken   string
	SessionKey string
	Timeout    time.Duration
}

// DefaultClientConfig returns sensible defaults for the dev environment.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL: "https://dev.api.supplierx.aeonx.digital",
		Timeout: 30 * time.Second,
	}
}

// Client implements Gateway over the SupplierX HTTP API.
type Client struct {
	baseURL    string
	apiToken   string
	sessionKey string
	httpClient *http.Client
	log        *logging.Logger
}

// NewClient creates a SupplierX API client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiToken:   cfg.APIToken,
		sessionKey: cfg.SessionKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        logging.Get(logging.CategoryCatalog),
	}
}

// POSubTypes returns the static PO sub-type vocabulary.
func (c *Client) POSubTypes() []string {
	out := make([]string, len(poSubTypes))
	copy(out, poSubTypes)
	return out
}

// SearchSuppliers queries SAP-registered vendors by name fragment.
func (c *Client) SearchSuppliers(ctx context.Context, query string, limit int) ([]Supplier, error) {
	payload := map[string]interface{}{}
	if query != "" {
		payload["search"] = query
	}
	rows, err := c.postRows(ctx, "/api/v1/supplier/supplier/sapRegisteredVendorsList", payload)
	if err != nil {
		return nil, err
	}

	var out []Supplier
	for _, raw := range rows {
		var row struct {
			ID      flexInt    `json:"id"`
			SAPCode flexString `json:"sap_code"`
			Name    string     `json:"supplier_name"`
		}
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		out = append(out, Supplier{
			VendorID: strconv.FormatInt(int64(row.ID), 10),
			SAPCode:  string(row.SAPCode),
			Name:     row.Name,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// AlternateContact fetches the alternate-supplier contact fields for a vendor.
func (c *Client) AlternateContact(ctx context.Context, vendorID string) (AlternateContact, error) {
	body, err := c.get(ctx, "/api/v1/supplier/supplier/additional-supplier-details/"+vendorID)
	if err != nil {
		return AlternateContact{}, err
	}

	var env struct {
		Data []struct {
			Name          string `json:"alternate_supplier_name"`
			Email         string `json:"alternate_supplier_email"`
			ContactNumber string `json:"alternate_supplier_contact_number"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Data) == 0 {
		return AlternateContact{}, nil
	}
	return AlternateContact{
		Name:          env.Data[0].Name,
		Email:         env.Data[0].Email,
		ContactNumber: env.Data[0].ContactNumber,
	}, nil
}

// Currencies returns the currency codes, first entry first. The upstream
// responds with either a list of objects or a list of bare strings.
func (c *Client) Currencies(ctx context.Context) ([]string, error) {
	rows, err := c.postRows(ctx, "/api/v1/admin/currency/getWithoutSlug", nil)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, raw := range rows {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			out = append(out, s)
			continue
		}
		var row struct {
			CurrencyCode string `json:"currencyCode"`
		}
		if err := json.Unmarshal(raw, &row); err == nil && row.CurrencyCode != "" {
			out = append(out, row.CurrencyCode)
		}
	}
	if len(out) == 0 {
		out = []string{"INR"}
	}
	return out, nil
}

// PurchaseOrgs lists purchase organizations.
func (c *Client) PurchaseOrgs(ctx context.Context) ([]Entry, error) {
	rows, err := c.postRows(ctx, "/api/v1/supplier/purchaseOrg/listing", nil)
	if err != nil {
		return nil, err
	}
	return decodeEntries(rows), nil
}

// Plants lists plants, scoped to the given purchase orgs when provided.
func (c *Client) Plants(ctx context.Context, orgIDs []int64) ([]Entry, error) {
	rows, err := c.postRows(ctx, "/api/v1/admin/plants/list", scopedPayload(orgIDs))
	if err != nil {
		return nil, err
	}
	return decodeEntries(rows), nil
}

// PurchaseGroups lists purchase groups, scoped to the given purchase orgs.
func (c *Client) PurchaseGroups(ctx context.Context, orgIDs []int64) ([]Entry, error) {
	rows, err := c.postRows(ctx, "/api/v1/admin/purchaseGroup/list", scopedPayload(orgIDs))
	if err != nil {
		return nil, err
	}
	return decodeEntries(rows), nil
}

// Projects lists project code/name pairs.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	rows, err := c.postRows(ctx, "/api/v1/supplier/purchase-order/list-project", nil)
	if err != nil {
		return nil, err
	}

	var out []Project
	for _, raw := range rows {
		var row struct {
			Code string `json:"projectCode"`
			Name string `json:"projectName"`
		}
		if err := json.Unmarshal(raw, &row); err == nil {
			out = append(out, Project{Code: row.Code, Name: row.Name})
		}
	}
	return out, nil
}

// PaymentTerms lists payment terms.
func (c *Client) PaymentTerms(ctx context.Context) ([]Entry, error) {
	rows, err := c.postRows(ctx, "/api/admin/paymentTerms/list", nil)
	if err != nil {
		return nil, err
	}
	return decodeEntries(rows), nil
}

// Incoterms lists incoterms.
func (c *Client) Incoterms(ctx context.Context) ([]Entry, error) {
	rows, err := c.postRows(ctx, "/api/admin/IncoTerm/list", nil)
	if err != nil {
		return nil, err
	}
	return decodeEntries(rows), nil
}

// defaultMaterialGroupID is applied when the upstream omits the group.
const defaultMaterialGroupID = 520

// defaultTaxCode is the flat GST tax code applied to materials.
const defaultTaxCode = 118

// Materials lists materials, optionally filtered by a search query.
func (c *Client) Materials(ctx context.Context, query string) ([]Material, error) {
	payload := map[string]interface{}{}
	if query != "" {
		payload["search"] = query
	}
	rows, err := c.postRows(ctx, "/api/v1/supplier/materials/list", payload)
	if err != nil {
		return nil, err
	}

	var out []Material
	for _, raw := range rows {
		var row struct {
			ID    flexInt   `json:"id"`
			Name  string    `json:"name"`
			Price flexFloat `json:"price"`
			Unit  struct {
				ID flexInt `json:"id"`
			} `json:"unit"`
			MaterialGroup struct {
				ID flexInt `json:"id"`
			} `json:"material_group"`
		}
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		m := Material{
			ID:              int64(row.ID),
			Name:            row.Name,
			Price:           float64(row.Price),
			UnitID:          int64(row.Unit.ID),
			MaterialGroupID: int64(row.MaterialGroup.ID),
			TaxCode:         defaultTaxCode,
		}
		if m.MaterialGroupID == 0 {
			m.MaterialGroupID = defaultMaterialGroupID
		}
		out = append(out, m)
	}
	return out, nil
}

// CreatePO submits the composed order. The payload is flattened to dotted
// multipart form fields (line_items[0].price=...) as the upstream expects.
// Transport errors with a parseable JSON body are normalized like any other
// response so the upstream's own message survives verbatim.
func (c *Client) CreatePO(ctx context.Context, payload map[string]interface{}) (CreateResult, error) {
	flat := map[string]string{}
	flattenInto("", payload, flat)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, flat[k]); err != nil {
			return CreateResult{}, fmt.Errorf("failed to encode form field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return CreateResult{}, fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/supplier/purchase-order/create", &buf)
	if err != nil {
		return CreateResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	c.setAuth(req)
	req.Header.Set("Content-Type", w.FormDataContentType())

	c.log.Info("POST /api/v1/supplier/purchase-order/create (%d fields)", len(flat))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CreateResult{}, fmt.Errorf("create PO request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CreateResult{}, fmt.Errorf("failed to read create PO response: %w", err)
	}
	return normalizeCreateResult(body, resp.StatusCode)
}

// normalizeCreateResult folds the upstream's inconsistent response shapes
// into one canonical result. Success is an explicit success flag OR an
// explicit error=false; a bare error flag carries the message/details.
func normalizeCreateResult(body []byte, status int) (CreateResult, error) {
	var env struct {
		Success  *bool           `json:"success"`
		ErrFlag  *bool           `json:"error"`
		Message  string          `json:"message"`
		PONumber string          `json:"po_number"`
		Data     json.RawMessage `json:"data"`
		Details  json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return CreateResult{}, fmt.Errorf("create PO returned status %d with unparseable body: %s", status, truncate(string(body), 200))
	}

	res := CreateResult{
		OK:       (env.Success != nil && *env.Success) || (env.ErrFlag != nil && !*env.ErrFlag),
		Message:  env.Message,
		PONumber: env.PONumber,
	}
	if res.PONumber == "" && len(env.Data) > 0 {
		var data struct {
			PONumber flexString `json:"po_number"`
		}
		if err := json.Unmarshal(env.Data, &data); err == nil {
			res.PONumber = string(data.PONumber)
		}
	}
	if res.OK && res.PONumber == "" {
		res.PONumber = "Unknown"
	}
	if len(env.Details) > 0 && string(env.Details) != "null" {
		res.Details = string(env.Details)
	}
	if res.Message == "" && !res.OK {
		res.Message = "Unknown error"
	}
	return res, nil
}

// FetchOrgContext loads the plants and purchase groups scoped to one
// purchase organization, in parallel.
func FetchOrgContext(ctx context.Context, gw Gateway, orgID int64) (OrgContext, error) {
	g, ctx := errgroup.WithContext(ctx)
	var octx OrgContext
	g.Go(func() error {
		plants, err := gw.Plants(ctx, []int64{orgID})
		octx.Plants = plants
		return err
	})
	g.Go(func() error {
		groups, err := gw.PurchaseGroups(ctx, []int64{orgID})
		octx.Groups = groups
		return err
	})
	if err := g.Wait(); err != nil {
		return octx, err
	}
	return octx, nil
}

// ---- transport plumbing ----

func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("x-session-key", c.sessionKey)
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setAuth(req)
	return c.do(req, endpoint)
}

func (c *Client) postRows(ctx context.Context, endpoint string, payload map[string]interface{}) ([]json.RawMessage, error) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setAuth(req)
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req, endpoint)
	if err != nil {
		return nil, err
	}
	return decodeRows(body), nil
}

func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("%s %s failed: %v", req.Method, endpoint, err)
		return nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("%s %s returned status %d", req.Method, endpoint, resp.StatusCode)
		return nil, fmt.Errorf("%s returned status %d: %s", endpoint, resp.StatusCode, truncate(string(body), 200))
	}
	c.log.Debug("%s %s -> %d bytes", req.Method, endpoint, len(body))
	return body, nil
}

// decodeRows normalizes the three upstream envelope shapes to a flat row
// list: a bare array, {"data": [...]}, and {"data": {"rows": [...]}}.
func decodeRows(body []byte) []json.RawMessage {
	var list []json.RawMessage
	if err := json.Unmarshal(body, &list); err == nil {
		return list
	}

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, &list); err == nil {
		return list
	}

	var inner struct {
		Rows []json.RawMessage `json:"rows"`
	}
	if err := json.Unmarshal(env.Data, &inner); err == nil {
		return inner.Rows
	}
	return nil
}

// decodeEntries decodes generic id/name rows; the upstream uses either
// "name" or "description" for the label depending on the endpoint.
func decodeEntries(rows []json.RawMessage) []Entry {
	var out []Entry
	for _, raw := range rows {
		var row struct {
			ID          flexInt `json:"id"`
			Name        string  `json:"name"`
			Description string  `json:"description"`
			Code        string  `json:"code"`
		}
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		name := row.Name
		if name == "" {
			name = row.Description
		}
		out = append(out, Entry{ID: int64(row.ID), Name: name, Code: row.Code})
	}
	return out
}

func scopedPayload(orgIDs []int64) map[string]interface{} {
	payload := map[string]interface{}{"dropdown": "0"}
	if len(orgIDs) > 0 {
		payload["purchase_org_id"] = orgIDs
	}
	return payload
}

// flattenInto converts nested maps/slices to dotted form-field keys:
// {"line_items": [{"price": 5}]} -> "line_items[0].price" = "5".
// Booleans serialize lowercase; nil serializes as the empty string.
func flattenInto(prefix string, v interface{}, out map[string]string) {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, inner := range val {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenInto(key, inner, out)
		}
	case []interface{}:
		for i, inner := range val {
			flattenInto(fmt.Sprintf("%s[%d]", prefix, i), inner, out)
		}
	case nil:
		out[prefix] = ""
	case bool:
		out[prefix] = strconv.FormatBool(val)
	case string:
		out[prefix] = val
	case float64:
		out[prefix] = strconv.FormatFloat(val, 'f', -1, 64)
	default:
		out[prefix] = fmt.Sprintf("%v", val)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// flexInt tolerates upstream ids arriving as numbers or strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Some ids arrive as floats.
		fv, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return err
		}
		*f = flexInt(int64(fv))
		return nil
	}
	*f = flexInt(v)
	return nil
}

// flexFloat tolerates prices arriving as numbers or strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// flexString tolerates values arriving as strings or numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	*f = flexString(strings.Trim(string(data), `"`))
	return nil
}
