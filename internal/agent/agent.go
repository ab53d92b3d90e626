package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"poagent/internal/catalog"
	"poagent/internal/extract"
	"poagent/internal/fuzzy"
	"poagent/internal/logging"
	"poagent/internal/nlu"
)

// Fuzzy-match acceptance thresholds. Comparisons are strict, so a score
// exactly at the threshold is rejected.
const (
	orgScoreThreshold   = 0.4
	plantScoreThreshold = 0.3
	groupScoreThreshold = 0.3
)

// supplierSearchLimit caps how many candidates the supplier search pulls;
// only the first result is used.
const supplierSearchLimit = 5

// deliveryLeadDays is added to the PO date for material delivery dates.
const deliveryLeadDays = 7

const defaultRemarks = "Created via AI Agent"

// Agent drives the slot-filling dialogue. It consumes the catalog
// gateway and the advisory analyzer through their interfaces; every
// external failure degrades to "nothing extracted" and the turn always
// produces a response string.
type Agent struct {
	gateway  catalog.Gateway
	analyzer nlu.Analyzer
	now      func() time.Time
	log      *logging.Logger
}

// New creates an Agent. analyzer may be nil, in which case only local
// pattern extraction drives the dialogue.
func New(gateway catalog.Gateway, analyzer nlu.Analyzer) *Agent {
	return &Agent{
		gateway:  gateway,
		analyzer: analyzer,
		now:      time.Now,
		log:      logging.Get(logging.CategoryAgent),
	}
}

// Advance processes one utterance against the session, mutating it in
// place, and returns the user-facing response. A single utterance may
// satisfy several consecutive steps; the loop runs until a step's
// required fields cannot be resolved from this turn's text.
func (a *Agent) Advance(ctx context.Context, text string, s *Session) string {
	if resp, handled := a.tryListing(ctx, text, &s.Draft); handled {
		return resp
	}

	entities := a.advisory(ctx, text, s.Step)

	// Global finalize trigger: fires regardless of the current step.
	if extract.IsFinalize(text) {
		if len(s.Draft.LineItems) == 0 {
			return "❌ Please add at least one line item before creating the PO."
		}
		return a.submit(ctx, s)
	}

	var parts []string
	progressed := true
	for progressed {
		progressed = false

		switch s.Step {
		case StepPOType:
			progressed = a.stepPOType(text, entities, s, &parts)

		case StepSupplier:
			var early string
			progressed, early = a.stepSupplier(ctx, text, entities, s, &parts)
			if early != "" {
				return early
			}

		case StepSupplierDetails:
			progressed = a.stepSupplierDetails(text, s, &parts)

		case StepOrgDetails:
			var early string
			progressed, early = a.stepOrgDetails(ctx, text, s, &parts)
			if early != "" {
				return early
			}

		case StepCommercials:
			progressed = a.stepCommercials(ctx, s, &parts)

		case StepLineItems:
			var early string
			progressed, early = a.stepLineItem(ctx, text, s, &parts)
			if early != "" {
				return early
			}
		}

		if progressed {
			a.log.Debug("session %s advanced to %s", s.ID, s.Step)
		}
	}

	return a.assemble(s, parts)
}

// advisory runs the analyzer chain; any failure degrades to an empty
// entity map and never blocks the turn.
func (a *Agent) advisory(ctx context.Context, text string, step Step) nlu.Entities {
	if a.analyzer == nil {
		return nlu.Entities{}
	}
	res, err := a.analyzer.Analyze(ctx, text, string(step))
	if err != nil {
		a.log.Warn("advisory extraction failed at %s: %v", step, err)
		return nlu.Entities{}
	}
	if res.Entities == nil {
		return nlu.Entities{}
	}
	return res.Entities
}

// stepPOType matches the utterance against the PO sub-type vocabulary.
func (a *Agent) stepPOType(text string, entities nlu.Entities, s *Session, parts *[]string) bool {
	label := entities.String("po_sub_type")
	if label == "" {
		lower := strings.ToLower(text)
		for _, subType := range a.gateway.POSubTypes() {
			if strings.Contains(lower, strings.ToLower(subType)) {
				label = subType
				break
			}
		}
	}
	if label == "" {
		return false
	}

	s.Draft.POType = poTypeCode(label)
	s.Step = StepSupplier
	*parts = append(*parts, fmt.Sprintf("Selected **%s**.", label))
	return true
}

// stepSupplier resolves a supplier name to a catalog vendor. The first
// search result wins; a miss is terminal for the turn with a guidance
// message.
func (a *Agent) stepSupplier(ctx context.Context, text string, entities nlu.Entities, s *Session, parts *[]string) (bool, string) {
	name := entities.String("supplier_name")
	if name == "" {
		name, _ = extract.SupplierName(text)
	}
	if name == "" {
		return false, ""
	}

	results, err := a.gateway.SearchSuppliers(ctx, name, supplierSearchLimit)
	if err != nil {
		a.log.Warn("supplier search failed: %v", err)
		results = nil
	}
	if len(results) == 0 {
		return false, fmt.Sprintf("Could not find supplier '%s'. Try 'list suppliers' to see available ones.", name)
	}

	sup := results[0]
	s.Draft.VendorID = sup.VendorID

	if alt, err := a.gateway.AlternateContact(ctx, sup.VendorID); err != nil {
		a.log.Warn("alternate contact lookup failed: %v", err)
	} else {
		s.Draft.AlternateSupplierName = alt.Name
		s.Draft.AlternateSupplierEmail = alt.Email
		s.Draft.AlternateSupplierContact = alt.ContactNumber
	}

	if currencies, err := a.gateway.Currencies(ctx); err == nil && len(currencies) > 0 {
		s.Draft.Currency = currencies[0]
	}

	s.Step = StepSupplierDetails
	*parts = append(*parts, fmt.Sprintf("Supplier selected: **%s**.", sup.Name))
	return true, ""
}

// stepSupplierDetails extracts the PO date and validity end from up to
// two calendar dates in the utterance.
func (a *Agent) stepSupplierDetails(text string, s *Session, parts *[]string) bool {
	poDate, validity, ok := extract.DatePair(text, a.now())
	if !ok {
		return false
	}

	s.Draft.PODate = poDate.Format("2006-01-02")
	s.Draft.ValidityEnd = validity.Format("2006-01-02")
	s.Step = StepOrgDetails
	*parts = append(*parts, fmt.Sprintf("PO Date: **%s**, Validity until: **%s**.", s.Draft.PODate, s.Draft.ValidityEnd))
	return true
}

// stepOrgDetails runs three independent fuzzy matches: purchase org,
// plant (short code first), and purchase group. The org is sticky: a
// failed match never clears a previously chosen org, and until an org
// is chosen nothing else in this step is evaluated.
func (a *Agent) stepOrgDetails(ctx context.Context, text string, s *Session, parts *[]string) (bool, string) {
	orgs, err := a.gateway.PurchaseOrgs(ctx)
	if err != nil {
		a.log.Warn("purchase org listing failed: %v", err)
	}

	if idx, score := fuzzy.BestIndex(catalog.Names(orgs), text); idx >= 0 && score > orgScoreThreshold {
		s.Draft.PurchaseOrgID = orgs[idx].ID
		s.Draft.PurchaseOrgName = orgs[idx].Name
		*parts = append(*parts, fmt.Sprintf("✅ Purchase Org: **%s**", orgs[idx].Name))
	} else if s.Draft.PurchaseOrgID == 0 {
		*parts = append(*parts, "Could not identify Purchase Organization. Try 'list purchase organizations' to see exact names.")
		return false, strings.Join(*parts, "\n")
	}

	octx, err := catalog.FetchOrgContext(ctx, a.gateway, s.Draft.PurchaseOrgID)
	if err != nil {
		a.log.Warn("org context fetch failed: %v", err)
	}

	// Plant: exact short code beats fuzzy name matching.
	var plant *catalog.Entry
	if code, ok := extract.PlantCode(text); ok {
		for i := range octx.Plants {
			if octx.Plants[i].Code == code {
				plant = &octx.Plants[i]
				break
			}
		}
	}
	if plant == nil {
		if idx, score := fuzzy.BestIndex(catalog.Names(octx.Plants), text); idx >= 0 && score > plantScoreThreshold {
			plant = &octx.Plants[idx]
		}
	}
	if plant != nil {
		s.Draft.PlantID = plant.ID
		code := plant.Code
		if code == "" {
			code = "N/A"
		}
		*parts = append(*parts, fmt.Sprintf("✅ Plant: **%s** (Code: %s)", plant.Name, code))
	}

	if idx, score := fuzzy.BestIndex(catalog.Names(octx.Groups), text); idx >= 0 && score > groupScoreThreshold {
		s.Draft.PurchaseGroupID = octx.Groups[idx].ID
		*parts = append(*parts, fmt.Sprintf("✅ Purchase Group: **%s**", octx.Groups[idx].Name))
	}

	var missing []string
	if s.Draft.PurchaseOrgID == 0 {
		missing = append(missing, "Purchase Org")
	}
	if s.Draft.PlantID == 0 {
		missing = append(missing, "Plant")
	}
	if s.Draft.PurchaseGroupID == 0 {
		missing = append(missing, "Purchase Group")
	}

	if len(missing) == 0 {
		s.Step = StepCommercials
		return true, ""
	}
	*parts = append(*parts, fmt.Sprintf("ℹ️ Could not confidently match: %s. You can say 'list plants' or 'list groups' to see options.", strings.Join(missing, ", ")))
	return false, ""
}

// stepCommercials auto-fills commercial terms from the catalog defaults
// and always advances.
func (a *Agent) stepCommercials(ctx context.Context, s *Session, parts *[]string) bool {
	if projects, err := a.gateway.Projects(ctx); err == nil && len(projects) > 0 {
		if len(s.Draft.Projects) == 0 {
			s.Draft.Projects = []ProjectRef{{}}
		}
		s.Draft.Projects[0] = ProjectRef{Code: projects[0].Code, Name: projects[0].Name}
	}
	if terms, err := a.gateway.PaymentTerms(ctx); err == nil && len(terms) > 0 {
		s.Draft.PaymentTermsID = terms[0].ID
	}
	if terms, err := a.gateway.Incoterms(ctx); err == nil && len(terms) > 0 {
		s.Draft.IncotermsID = terms[0].ID
	}
	s.Draft.Remarks = defaultRemarks
	s.Scratch["new_item"] = map[string]interface{}{}

	s.Step = StepLineItems
	*parts = append(*parts, "Commercials configured.")
	return true
}

// stepLineItem recognizes one (quantity, description, unit price) triple
// per turn. Regular-purchase drafts resolve the description against the
// material catalog; other PO types build a service item directly.
func (a *Agent) stepLineItem(ctx context.Context, text string, s *Session, parts *[]string) (bool, string) {
	triple, ok := extract.LineItem(text)
	if !ok {
		return false, ""
	}

	subTotal := float64(triple.Quantity) * triple.Price

	if s.Draft.POType == POTypeRegular {
		materials, err := a.gateway.Materials(ctx, triple.Name)
		if err != nil {
			a.log.Warn("material search failed: %v", err)
			materials = nil
		}
		if len(materials) == 0 {
			return false, fmt.Sprintf("Could not find material '%s'. Try 'list materials' or a different name.", triple.Name)
		}

		m := materials[0]
		unitID := m.UnitID
		if unitID == 0 {
			unitID = 1
		}
		item := LineItem{
			ShortText:       m.Name,
			ShortDesc:       m.Name,
			Quantity:        triple.Quantity,
			UnitID:          unitID,
			Price:           triple.Price,
			SubTotal:        subTotal,
			Tax:             lineItemTax,
			TotalValue:      subTotal + lineItemTax,
			DeliveryDate:    a.deliveryDate(s),
			MaterialID:      m.ID,
			MaterialGroupID: m.MaterialGroupID,
			TaxCode:         m.TaxCode,
		}
		s.Draft.LineItems = append(s.Draft.LineItems, item)
		*parts = append(*parts, fmt.Sprintf("Added **%d × %s** at ₹%s each (Subtotal: ₹%s)",
			triple.Quantity, m.Name, fmtAmount(triple.Price), fmtAmount(subTotal)))
	} else {
		title := titleCase(triple.Name)
		item := LineItem{
			ShortText:    title,
			ShortDesc:    title,
			Quantity:     triple.Quantity,
			Price:        triple.Price,
			SubTotal:     subTotal,
			Tax:          lineItemTax,
			TotalValue:   subTotal + lineItemTax,
			DeliveryDate: a.poDateOrToday(s),
		}
		s.Draft.LineItems = append(s.Draft.LineItems, item)
		*parts = append(*parts, fmt.Sprintf("Added service: **%d × %s** at ₹%s each.",
			triple.Quantity, title, fmtAmount(triple.Price)))
	}

	s.Step = StepConfirm
	return true, ""
}

// submit composes the final payload and calls the creation endpoint.
// Failure leaves the step and draft untouched and surfaces the upstream
// message verbatim.
func (a *Agent) submit(ctx context.Context, s *Session) string {
	total := s.Draft.GrandTotal()
	s.Draft.Total = total

	// Per-item scratch fields are always sent empty.
	for i := range s.Draft.LineItems {
		s.Draft.LineItems[i].SubServices = ""
		s.Draft.LineItems[i].ControlCode = ""
	}

	payload, err := s.Draft.Payload()
	if err != nil {
		return fmt.Sprintf("❌ Failed to create PO.\n\nError: %v", err)
	}

	result, err := a.gateway.CreatePO(ctx, payload)
	if err != nil {
		a.log.Error("PO creation failed for session %s: %v", s.ID, err)
		return fmt.Sprintf("❌ Failed to create PO.\n\nError: %v", err)
	}
	if !result.OK {
		msg := result.Message
		if result.Details != "" {
			msg += " | " + result.Details
		}
		return fmt.Sprintf("❌ Failed to create PO.\n\nError: %s", msg)
	}

	s.Step = StepDone
	s.Draft.PONumber = result.PONumber
	logging.Session("session %s created PO %s (total %s)", s.ID, result.PONumber, fmtAmount(total))
	return fmt.Sprintf("✅ **Purchase Order Created Successfully!**\n\n**PO Number:** %s\n**Total Value:** ₹%s",
		result.PONumber, fmtAmount(total))
}

// assemble builds the turn response from the accumulated confirmation
// fragments, or falls back to the step-specific re-prompt when nothing
// progressed.
func (a *Agent) assemble(s *Session, parts []string) string {
	if len(parts) > 0 {
		resp := strings.Join(parts, "\n")
		switch s.Step {
		case StepConfirm:
			var b strings.Builder
			b.WriteString(resp)
			b.WriteString("\n\n**Order Summary:**\n")
			for i, item := range s.Draft.LineItems {
				fmt.Fprintf(&b, "%d. %s: %d × ₹%s = ₹%s\n",
					i+1, item.ShortText, item.Quantity, fmtAmount(item.Price), fmtAmount(item.SubTotal))
			}
			fmt.Fprintf(&b, "\n**Grand Total:** ₹%s\n\nReady to **create the PO**? Say 'create PO' or add more items.",
				fmtAmount(s.Draft.GrandTotal()))
			return b.String()
		case StepLineItems:
			return resp + "\n\nWhat items would you like to purchase? (e.g., '2 laptops at ₹50000 each')"
		}
		return resp
	}

	switch s.Step {
	case StepSupplier:
		return "Please provide the supplier name."
	case StepSupplierDetails:
		return "Please provide the PO date and validity."
	case StepOrgDetails:
		return "Please provide the purchase organization, plant, and group."
	case StepLineItems:
		return "Please provide the line items (material/service, quantity, price)."
	default:
		return "Please provide the next detail."
	}
}

// deliveryDate is the PO date plus the delivery lead time.
func (a *Agent) deliveryDate(s *Session) string {
	base, err := time.Parse("2006-01-02", s.Draft.PODate)
	if err != nil {
		base = a.now()
	}
	return base.AddDate(0, 0, deliveryLeadDays).Format("2006-01-02")
}

// poDateOrToday returns the draft's PO date, or today when unset.
func (a *Agent) poDateOrToday(s *Session) string {
	if s.Draft.PODate != "" {
		return s.Draft.PODate
	}
	return a.now().Format("2006-01-02")
}

// fmtAmount renders a money amount without a trailing ".0" for whole
// values.
func fmtAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func lowered(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
