package mappings

import (
	"strings"
	"time"

	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
)

// Flow distinguishes tax collected on sales from tax paid on purchases.
type Flow string

const (
	FlowOutput Flow = "output"
	FlowInput  Flow = "input"
)

// Component is one GST tax head.
type Component string

const (
	ComponentCGST Component = "CGST"
	ComponentSGST Component = "SGST"
	ComponentIGST Component = "IGST"
	ComponentCess Component = "CESS"
)

// Components lists tax heads in posting order.
var Components = []Component{ComponentCGST, ComponentSGST, ComponentIGST, ComponentCess}

// LedgerMapping links a tenant mapping key to a ledger.
type LedgerMapping struct {
	TenantID  int64     `json:"tenant_id"`
	Key       string    `json:"key"`
	LedgerID  int64     `json:"ledger_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key builds the mapping key for a tax head, e.g. gst.output.cgst.
func Key(flow Flow, c Component) string {
	return "gst." + string(flow) + "." + strings.ToLower(string(c))
}

// ValidKey reports whether key names a supported tax head.
func ValidKey(key string) bool {
	for _, flow := range []Flow{FlowOutput, FlowInput} {
		for _, c := range Components {
			if Key(flow, c) == key {
				return true
			}
		}
	}
	return false
}

// TaxLedgers is a tenant's key to ledger map.
type TaxLedgers map[string]int64

// Ledger resolves the ledger for a tax head.
func (t TaxLedgers) Ledger(flow Flow, c Component) (int64, error) {
	id, ok := t[Key(flow, c)]
	if !ok || id == 0 {
		return 0, &shared.Error{Kind: shared.ErrMappingNotFound, Reason: "tax_ledger_unmapped", Detail: Key(flow, c)}
	}
	return id, nil
}
