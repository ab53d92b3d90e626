// Package agent implements the dialogue state machine that walks a user
// through composing a purchase order. Each turn takes one utterance plus
// the mutable session and advances through as many slot-filling steps as
// the utterance supports, merging advisory NLU entities with local
// pattern extraction at every step.
package agent

import (
	"encoding/json"
	"fmt"
)

// Step is the current slot-filling stage. Progression is strictly
// forward within a turn; no backward transition exists.
type Step string

const (
	StepPOType          Step = "PO_TYPE"
	StepSupplier        Step = "SUPPLIER"
	StepSupplierDetails Step = "SUPPLIER_DETAILS"
	StepOrgDetails      Step = "ORG_DETAILS"
	StepCommercials     Step = "COMMERCIALS"
	StepLineItems       Step = "LINE_ITEM_DETAILS"
	StepConfirm         Step = "CONFIRM"
	StepDone            Step = "DONE"
)

// Internal PO type codes mapped from the user-facing sub-type labels.
const (
	POTypeRegular = "regularPurchase"
	POTypeService = "service"
	POTypeAsset   = "asset"
)

// poTypeCode maps a spoken sub-type label to the wire code. Unrecognized
// labels default leniently to regular purchase rather than failing.
func poTypeCode(label string) string {
	switch lowered(label) {
	case "regular purchase":
		return POTypeRegular
	case "service":
		return POTypeService
	case "asset":
		return POTypeAsset
	default:
		return POTypeRegular
	}
}

// Session is the per-conversation state: the current step, the order
// draft under construction, and scratch data. Owned exclusively by one
// conversation and mutated only by the turn currently processing it.
type Session struct {
	ID      string                 `json:"id"`
	Step    Step                   `json:"current_step"`
	Draft   OrderDraft             `json:"payload"`
	Scratch map[string]interface{} `json:"temp_data"`
}

// NewSession creates a fresh session positioned at the PO-type step with
// the draft defaults the procurement API expects.
func NewSession(id string) *Session {
	return &Session{
		ID:   id,
		Step: StepPOType,
		Draft: OrderDraft{
			Currency:  "INR",
			NOC:       "No",
			Projects:  []ProjectRef{{}},
			LineItems: []LineItem{},
		},
		Scratch: map[string]interface{}{},
	}
}

// ProjectRef is the project code/name pair carried on the draft.
type ProjectRef struct {
	Code string `json:"project_code"`
	Name string `json:"project_name"`
}

// OrderDraft is the purchase order under construction. JSON tags follow
// the procurement API's field names so the draft serializes directly
// into the creation payload.
type OrderDraft struct {
	POType   string `json:"po_type,omitempty"`
	VendorID string `json:"vendor_id,omitempty"`

	AlternateSupplierName    string `json:"alternate_supplier_name"`
	AlternateSupplierEmail   string `json:"alternate_supplier_email"`
	AlternateSupplierContact string `json:"alternate_supplier_contact_number"`

	Currency    string `json:"currency"`
	PODate      string `json:"po_date,omitempty"`
	ValidityEnd string `json:"validityEnd"`

	PurchaseOrgID   int64  `json:"purchase_org_id,omitempty"`
	PurchaseOrgName string `json:"purchase_org_name,omitempty"`
	PlantID         int64  `json:"plant_id,omitempty"`
	PurchaseGroupID int64  `json:"purchase_grp_id,omitempty"`

	PaymentTermsID   int64        `json:"payment_terms,omitempty"`
	IncotermsID      int64        `json:"inco_terms,omitempty"`
	PaymentTermsDesc string       `json:"payment_terms_description"`
	IncotermsDesc    string       `json:"inco_terms_description"`
	Projects         []ProjectRef `json:"projects"`
	Remarks          string       `json:"remarks"`

	IsEPCGApplicable bool   `json:"is_epcg_applicable"`
	IsPRBased        bool   `json:"is_pr_based"`
	IsRFQBased       bool   `json:"is_rfq_based"`
	NOC              string `json:"noc"`
	DataSupplier     string `json:"datasupplier"`

	LineItems []LineItem `json:"line_items"`

	// Populated at submission time.
	Total    float64 `json:"total,omitempty"`
	PONumber string  `json:"po_number,omitempty"`
}

// lineItemTax is the flat tax addend applied to every line item.
const lineItemTax = 12

// LineItem is one order line. Items are immutable once appended;
// corrections require adding a new item.
type LineItem struct {
	ShortText       string  `json:"short_text"`
	ShortDesc       string  `json:"short_desc"`
	Quantity        int     `json:"quantity"`
	UnitID          int64   `json:"unit_id,omitempty"`
	Price           float64 `json:"price"`
	SubTotal        float64 `json:"sub_total"`
	Tax             float64 `json:"tax"`
	TotalValue      float64 `json:"total_value"`
	DeliveryDate    string  `json:"delivery_date"`
	MaterialID      int64   `json:"material_id,omitempty"`
	MaterialGroupID int64   `json:"material_group_id,omitempty"`
	TaxCode         int64   `json:"tax_code,omitempty"`
	SubServices     string  `json:"subServices"`
	ControlCode     string  `json:"control_code"`
}

// GrandTotal sums the line item subtotals (tax excluded, matching the
// upstream total contract).
func (d *OrderDraft) GrandTotal() float64 {
	var total float64
	for _, item := range d.LineItems {
		total += item.SubTotal
	}
	return total
}

// Payload converts the draft to the generic map shape the gateway
// flattens onto the wire.
func (d *OrderDraft) Payload() (map[string]interface{}, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize draft: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to shape draft payload: %w", err)
	}
	return out, nil
}
