package entity

import (
	"time"
)

// Status is the lifecycle status of a JIG. Any status may move to any
// other status; transitions are only recorded, never rejected.
type Status string

const (
	StatusInStock          Status = "In Stock"
	StatusInUse            Status = "In Use"
	StatusUnderMaintenance Status = "Under Maintenance"
	StatusScrapped         Status = "Scrapped"
)

// AllStatuses lists every valid lifecycle status.
var AllStatuses = []Status{
	StatusInStock,
	StatusInUse,
	StatusUnderMaintenance,
	StatusScrapped,
}

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Location returns the human-readable location label used in transfer
// entries when a JIG enters this status.
func (s Status) Location() string {
	switch s {
	case StatusInStock:
		return "Storage"
	case StatusInUse:
		return "Production"
	case StatusUnderMaintenance:
		return "Maintenance Department"
	case StatusScrapped:
		return "Scrap"
	default:
		return "Unknown"
	}
}

// CheckResult is the outcome of a maintenance check.
type CheckResult string

const (
	CheckResultOK  CheckResult = "OK"
	CheckResultNOK CheckResult = "NOK"
)

// TransferType is the direction of a custody change.
type TransferType string

const (
	TransferAcceptance TransferType = "Acceptance"
	TransferSubmission TransferType = "Submission"
)

// MaintenanceRecord is a single inspection/repair outcome. Records are
// immutable once created; issue and corrective action are mandatory for
// NOK results, enforced at the service boundary.
type MaintenanceRecord struct {
	Date             time.Time   `json:"date"`
	CheckResult      CheckResult `json:"checkResult"`
	Issue            string      `json:"issue,omitempty"`
	CorrectiveAction string      `json:"correctiveAction,omitempty"`
	PerformedBy      string      `json:"performedBy"`
	Notes            string      `json:"notes,omitempty"`
}

// TransferRecord is a status-driven location/custody change. Entries are
// written by the status-change operation, never by users directly.
type TransferRecord struct {
	Date      time.Time    `json:"date"`
	Type      TransferType `json:"type"`
	From      string       `json:"from"`
	To        string       `json:"to"`
	Recipient string       `json:"recipient"`
	Notes     string       `json:"notes,omitempty"`
}

// Jig is a tracked test/assembly fixture. Code is the human-readable
// identifier (prefix_customer_serial, e.g. J_BMW_001); StoreID is the
// backing store's own key and must be used for all mutation calls.
//
// Maintenance history is kept newest-first, transfer history oldest-first.
// The asymmetry is deliberate and load-bearing for the UI.
type Jig struct {
	StoreID            string              `json:"storeId,omitempty"`
	Code               string              `json:"id"`
	Customer           string              `json:"customer"`
	DateOfReceive      time.Time           `json:"dateOfReceive"`
	ProductModelType   string              `json:"productModelType"`
	ReceivedFrom       string              `json:"receivedFrom"`
	StorageLocation    string              `json:"storageLocation"`
	ResponsiblePerson  string              `json:"responsiblePerson"`
	Status             Status              `json:"status"`
	Notes              string              `json:"notes,omitempty"`
	MaintenanceHistory []MaintenanceRecord `json:"maintenanceHistory"`
	TransferHistory    []TransferRecord    `json:"transferHistory"`
}

// Clone returns a deep copy. Cache entries and pending mutations must
// never share history slices.
func (j Jig) Clone() Jig {
	out := j
	if j.MaintenanceHistory != nil {
		out.MaintenanceHistory = make([]MaintenanceRecord, len(j.MaintenanceHistory))
		copy(out.MaintenanceHistory, j.MaintenanceHistory)
	}
	if j.TransferHistory != nil {
		out.TransferHistory = make([]TransferRecord, len(j.TransferHistory))
		copy(out.TransferHistory, j.TransferHistory)
	}
	return out
}
