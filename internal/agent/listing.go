package agent

import (
	"context"
	"fmt"
	"strings"

	"poagent/internal/catalog"
	"poagent/internal/fuzzy"
	"poagent/internal/logging"
)

// listingPrefixes gate the listing shortcut. Only utterances starting
// with one of these are treated as catalog queries; the rest flow into
// the state machine untouched.
var listingPrefixes = []string{
	"list ",
	"show ",
	"what are ",
	"give me ",
	"display ",
	"tell me the ",
}

// listingRule maps trigger phrases to a catalog fetch. Rules are checked
// in order and the first phrase match wins, so narrower phrases must
// precede broader ones.
type listingRule struct {
	tag     string
	phrases []string
	limit   int
	fetch   func(ctx context.Context, a *Agent, draft *OrderDraft) (title string, names []string, err error)
}

var listingRules = []listingRule{
	{
		tag:     "purchase_orgs",
		phrases: []string{"purchase org", "purchase organization", "purchase organisations", "orgs", "purchasing org"},
		limit:   25,
		fetch: func(ctx context.Context, a *Agent, _ *OrderDraft) (string, []string, error) {
			orgs, err := a.gateway.PurchaseOrgs(ctx)
			return "Purchase Organizations", catalog.Names(orgs), err
		},
	},
	{
		tag:     "plants",
		phrases: []string{"plant"},
		limit:   20,
		fetch: func(ctx context.Context, a *Agent, draft *OrderDraft) (string, []string, error) {
			octx, err := a.orgScope(ctx, draft)
			if err != nil {
				return "Plants", nil, err
			}
			names := make([]string, 0, len(octx.Plants))
			for _, p := range octx.Plants {
				if p.Code != "" {
					names = append(names, fmt.Sprintf("%s (%s)", p.Name, p.Code))
				} else {
					names = append(names, p.Name)
				}
			}
			return "Plants", names, nil
		},
	},
	{
		tag:     "purchase_groups",
		phrases: []string{"purchase group", "group", "purchasing group"},
		limit:   25,
		fetch: func(ctx context.Context, a *Agent, draft *OrderDraft) (string, []string, error) {
			octx, err := a.orgScope(ctx, draft)
			if err != nil {
				return "Purchase Groups", nil, err
			}
			return "Purchase Groups", catalog.Names(octx.Groups), nil
		},
	},
	{
		tag:     "suppliers",
		phrases: []string{"supplier", "vendors"},
		limit:   30,
		fetch: func(ctx context.Context, a *Agent, _ *OrderDraft) (string, []string, error) {
			suppliers, err := a.gateway.SearchSuppliers(ctx, "", 0)
			names := make([]string, 0, len(suppliers))
			for _, s := range suppliers {
				names = append(names, s.Name)
			}
			return "Suppliers", names, err
		},
	},
	{
		tag:     "projects",
		phrases: []string{"project"},
		limit:   25,
		fetch: func(ctx context.Context, a *Agent, _ *OrderDraft) (string, []string, error) {
			projects, err := a.gateway.Projects(ctx)
			names := make([]string, 0, len(projects))
			for _, p := range projects {
				names = append(names, fmt.Sprintf("%s (%s)", p.Name, p.Code))
			}
			return "Projects", names, err
		},
	},
	{
		tag:     "payment_terms",
		phrases: []string{"payment term", "payment"},
		limit:   20,
		fetch: func(ctx context.Context, a *Agent, _ *OrderDraft) (string, []string, error) {
			terms, err := a.gateway.PaymentTerms(ctx)
			return "Payment Terms", catalog.Names(terms), err
		},
	},
	{
		tag:     "incoterms",
		phrases: []string{"incoterm", "inco term", "inco"},
		limit:   20,
		fetch: func(ctx context.Context, a *Agent, _ *OrderDraft) (string, []string, error) {
			terms, err := a.gateway.Incoterms(ctx)
			return "Incoterms", catalog.Names(terms), err
		},
	},
	{
		tag:     "po_types",
		phrases: []string{"po type", "po sub type", "po types"},
		limit:   0,
		fetch: func(_ context.Context, a *Agent, _ *OrderDraft) (string, []string, error) {
			return "PO Sub-Types", a.gateway.POSubTypes(), nil
		},
	},
	{
		tag:     "materials",
		phrases: []string{"material", "item"},
		limit:   25,
		fetch: func(ctx context.Context, a *Agent, _ *OrderDraft) (string, []string, error) {
			materials, err := a.gateway.Materials(ctx, "")
			names := make([]string, 0, len(materials))
			for _, m := range materials {
				names = append(names, m.Name)
			}
			return "Materials", names, err
		},
	},
}

// errNoOrgScope marks a plant/group listing attempted before a purchase
// org is known.
var errNoOrgScope = fmt.Errorf("no purchase organization in scope")

// tryListing handles catalog listing queries. It returns the formatted
// listing and true when the utterance was a listing request; it never
// mutates the session.
func (a *Agent) tryListing(ctx context.Context, text string, draft *OrderDraft) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))

	matched := false
	for _, prefix := range listingPrefixes {
		if strings.HasPrefix(lower, prefix) {
			matched = true
			break
		}
	}
	if !matched {
		return "", false
	}

	for _, rule := range listingRules {
		if !containsAny(lower, rule.phrases) {
			continue
		}
		logging.Listing("listing query %q matched %s", text, rule.tag)

		title, names, err := rule.fetch(ctx, a, draft)
		if err == errNoOrgScope {
			return "Please select a Purchase Organization first, or try 'list purchase organizations'.", true
		}
		if err != nil {
			a.log.Warn("listing %s failed: %v", rule.tag, err)
			return fmt.Sprintf("Could not fetch %s right now. Please try again.", title), true
		}
		if len(names) == 0 {
			return fmt.Sprintf("No %s found.", title), true
		}
		return formatListing(title, names, rule.limit), true
	}

	return "", false
}

// orgScope resolves the purchase org used to scope plant and group
// listings: the draft's org when chosen, otherwise a fuzzy match of the
// draft's org name against the catalog.
func (a *Agent) orgScope(ctx context.Context, draft *OrderDraft) (catalog.OrgContext, error) {
	orgID := draft.PurchaseOrgID
	if orgID == 0 && draft.PurchaseOrgName != "" {
		orgs, err := a.gateway.PurchaseOrgs(ctx)
		if err != nil {
			return catalog.OrgContext{}, err
		}
		if idx, score := fuzzy.BestIndex(catalog.Names(orgs), draft.PurchaseOrgName); idx >= 0 && score > orgScoreThreshold {
			orgID = orgs[idx].ID
		}
	}
	if orgID == 0 {
		return catalog.OrgContext{}, errNoOrgScope
	}
	return catalog.FetchOrgContext(ctx, a.gateway, orgID)
}

// formatListing renders a numbered markdown listing, truncated at limit
// with a remainder note.
func formatListing(title string, names []string, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s:**\n", title)

	shown := names
	if limit > 0 && len(names) > limit {
		shown = names[:limit]
	}
	for i, name := range shown {
		fmt.Fprintf(&b, "%d. %s\n", i+1, name)
	}
	if len(shown) < len(names) {
		fmt.Fprintf(&b, "...and %d more.", len(names)-len(shown))
	}
	return strings.TrimRight(b.String(), "\n")
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
