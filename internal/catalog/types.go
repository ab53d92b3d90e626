// Package catalog provides read-only lookups against the SupplierX
// procurement API (purchase orgs, plants, groups, suppliers, materials,
// payment terms, incoterms, projects, currencies) and the PO-creation
// call. Upstream responses come in several envelope shapes; the client
// normalizes all of them to the canonical types below so the dialogue
// engine never branches on raw shape variance.
package catalog

import "context"

// Entry is a generic catalog record (purchase org, plant, purchase group,
// payment term, incoterm). Code is only populated for plants.
type Entry struct {
	ID   int64
	Name string
	Code string
}

// Supplier is a SAP-registered vendor.
type Supplier struct {
	VendorID string
	SAPCode  string
	Name     string
}

// AlternateContact holds the denormalized alternate-supplier contact
// fields copied onto the order draft once a supplier is chosen.
type AlternateContact struct {
	Name          string
	Email         string
	ContactNumber string
}

// Project is a project code/name pair.
type Project struct {
	Code string
	Name string
}

// Material is a purchasable material with its pricing defaults.
type Material struct {
	ID              int64
	Name            string
	Price           float64
	UnitID          int64
	MaterialGroupID int64
	TaxCode         int64
}

// CreateResult is the normalized outcome of a PO creation call.
// OK follows the deliberately permissive upstream contract: an explicit
// success flag or an explicit absence-of-error flag both count as success.
type CreateResult struct {
	OK       bool
	PONumber string
	Message  string
	Details  string
}

// Gateway is the read-mostly procurement API surface consumed by the
// dialogue engine. All calls are blocking request/response; read failures
// degrade to empty results at the implementation boundary.
type Gateway interface {
	// POSubTypes returns the static PO sub-type vocabulary. No network call.
	POSubTypes() []string

	SearchSuppliers(ctx context.Context, query string, limit int) ([]Supplier, error)
	AlternateContact(ctx context.Context, vendorID string) (AlternateContact, error)

	// Currencies returns an ordered list; the first entry is the default.
	Currencies(ctx context.Context) ([]string, error)

	PurchaseOrgs(ctx context.Context) ([]Entry, error)
	Plants(ctx context.Context, orgIDs []int64) ([]Entry, error)
	PurchaseGroups(ctx context.Context, orgIDs []int64) ([]Entry, error)
	Projects(ctx context.Context) ([]Project, error)
	PaymentTerms(ctx context.Context) ([]Entry, error)
	Incoterms(ctx context.Context) ([]Entry, error)
	Materials(ctx context.Context, query string) ([]Material, error)

	// CreatePO submits the composed order payload. The payload is flattened
	// to multipart form fields on the wire.
	CreatePO(ctx context.Context, payload map[string]interface{}) (CreateResult, error)
}

// OrgContext bundles the plants and purchase groups scoped to one
// purchase organization.
type OrgContext struct {
	Plants []Entry
	Groups []Entry
}

// Names extracts the Name column from a slice of entries, in order.
// Convenience for fuzzy matching.
func Names(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// poSubTypes is static configuration, mirrored from the SupplierX UI.
var poSubTypes = []string{
	"Regular Purchase", "Service", "Asset", "Internal Order Material",
	"Internal Order Service", "Network", "Network Service",
	"Cost Center Material", "Cost Center Service", "Project Service",
	"Project Material", "Stock Transfer Inter", "Stock Transfer Intra",
}
