package enrich

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/avative-pat/FiberMonitorMap/pkg/models"
)

// Managed ONTs are provisioned in SMx with their Sonar inventory id as the
// ONT id, e.g. "sonar_item_5014".
const inventoryRefPrefix = "sonar_item_"

var (
	inventoryRefPattern = regexp.MustCompile(`sonar_item_(\d+)`)
	addressOntPattern   = regexp.MustCompile(`ont\[ont-id='([^']+)'\]`)
)

// InventoryRef identifies the Sonar inventory item behind an alarm's
// device reference.
type InventoryRef struct {
	OntID  string
	ItemID string
}

// ExtractInventoryRef extracts the Sonar inventory reference from an
// alarm, if it carries one. The ont-id field is checked first; alarms
// whose ont-id is missing or unrecognized fall back to scanning the
// resource string (e.g. "ONT: sonar_item_6455"). Alarms with no match are
// not managed inventory and pass through enrichment untouched.
func ExtractInventoryRef(a *models.RawAlarm) (InventoryRef, bool) {
	ontID := a.OntID
	if !strings.HasPrefix(ontID, inventoryRefPrefix) {
		ontID = inventoryRefPattern.FindString(a.Resource)
	}

	if ontID == "" {
		return InventoryRef{}, false
	}

	m := inventoryRefPattern.FindStringSubmatch(ontID)
	if m == nil {
		return InventoryRef{}, false
	}

	return InventoryRef{OntID: m[0], ItemID: m[1]}, true
}

// ExtractPonPort derives the PON port grouping key for an alarm. SMx is
// inconsistent about where it reports the port, so three locations are
// tried in order: the port field when it looks like a shelf/slot/port
// path, the individual shelf/slot/port fields, and finally the ont-id
// embedded in the config address xpath.
func ExtractPonPort(a *models.RawAlarm) string {
	if strings.Contains(a.Port, "/") {
		return a.Port
	}

	if a.ShelfID != "" && a.SlotID != "" && a.PortID != "" {
		return fmt.Sprintf("%s/%s/%s", a.ShelfID, a.SlotID, a.PortID)
	}

	if m := addressOntPattern.FindStringSubmatch(a.Address); m != nil {
		return m[1]
	}

	return ""
}

// FullAddress joins the non-empty address components into a single
// display string.
func FullAddress(parts ...*string) *string {
	var kept []string

	for _, p := range parts {
		if p != nil && *p != "" && *p != "null" {
			kept = append(kept, *p)
		}
	}

	if len(kept) == 0 {
		return nil
	}

	joined := strings.Join(kept, ", ")

	return &joined
}
