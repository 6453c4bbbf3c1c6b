package models

import (
	"time"
)

// RawAlarm is one standing alarm as reported by the Calix SMx fault
// management API. Field names mirror the SMx wire format, including the
// hyphenated keys SMx uses for device-level attributes. A RawAlarm is
// immutable once fetched; sequenceNum is the stable identity.
type RawAlarm struct {
	SequenceNum          string `json:"sequenceNum"`
	Description          string `json:"description"`
	Severity             string `json:"severity"`
	AlarmLevel           int    `json:"alarmLevel"`
	Standing             bool   `json:"standing"`
	AlarmReferForClear   string `json:"alarmReferForClear"`
	DeviceType           string `json:"deviceType"`
	SourceType           string `json:"sourceType,omitempty"`
	Category             string `json:"category"`
	InstanceID           string `json:"instanceId"`
	ProbableCause        string `json:"probableCause"`
	Details              string `json:"details,omitempty"`
	DeviceSequenceNumber string `json:"deviceSequenceNumber"`
	Alarm                bool   `json:"alarm"`
	Port                 string `json:"port,omitempty"`
	Location             string `json:"location,omitempty"`
	Address              string `json:"address"`
	PrimaryElement       string `json:"primaryElement,omitempty"`
	SecondaryElement     string `json:"secondaryElement,omitempty"`
	ServiceAffecting     string `json:"serviceAffecting"`
	Subscriber           string `json:"subscriber,omitempty"`
	UserNotes            string `json:"userNotes,omitempty"`
	AckUser              string `json:"ackUser,omitempty"`
	Acked                bool   `json:"acked"`
	IsAcked              bool   `json:"isAcked"`
	Region               string `json:"region,omitempty"`
	EventID              string `json:"eventId,omitempty"`
	DeviceID             string `json:"deviceId,omitempty"`
	Resource             string `json:"resource"`
	DeviceTime           int64  `json:"deviceTime"`
	ReceiveTime          int64  `json:"receiveTime"`

	ConditionType string `json:"condition-type,omitempty"`
	DeviceName    string `json:"device-name,omitempty"`
	AID           string `json:"aid,omitempty"`
	ShelfID       string `json:"shelf-id,omitempty"`
	SlotID        string `json:"slot-id,omitempty"`
	PortID        string `json:"port-id,omitempty"`
	OntID         string `json:"ont-id,omitempty"`
	OntType       string `json:"ont-type,omitempty"`
	OntPortID     string `json:"ont-port-id,omitempty"`
	PonSystemID   string `json:"pon-system-id,omitempty"`
	PonID         string `json:"pon-id,omitempty"`
	EquipmentType string `json:"equipment-type,omitempty"`
	AlarmType     string `json:"alarm-type,omitempty"`
	SerialNumber  string `json:"serial-number,omitempty"`
}

// IsServiceAffecting reports whether SMx flagged the alarm "SA".
func (a *RawAlarm) IsServiceAffecting() bool {
	return a.ServiceAffecting == "SA"
}

// ReceivedAt converts the millisecond receive timestamp to a time.Time.
func (a *RawAlarm) ReceivedAt() time.Time {
	return time.UnixMilli(a.ReceiveTime).UTC()
}

// EnrichedAlarm is a RawAlarm annotated with subscriber and location
// context from Sonar. Every enrichment field is independently nullable:
// a lookup that fails or returns nothing leaves its fields nil and the
// alarm still flows through the pipeline. Raw alarm fields are never
// overwritten by enrichment.
type EnrichedAlarm struct {
	RawAlarm

	// Derived from the raw alarm, not from Sonar.
	PonPort            string `json:"pon_port,omitempty"`
	ReceiveTimeString  string `json:"receiveTimeString,omitempty"`
	DeviceTimeString   string `json:"deviceTimeString,omitempty"`
	IsServiceImpacting bool   `json:"is_service_affecting"`

	// Location.
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
	FullAddress        *string  `json:"full_address,omitempty"`
	AddressLine1       *string  `json:"address_line1,omitempty"`
	AddressLine2       *string  `json:"address_line2,omitempty"`
	AddressCity        *string  `json:"address_city,omitempty"`
	AddressSubdivision *string  `json:"address_subdivision,omitempty"`
	AddressZip         *string  `json:"address_zip,omitempty"`

	// Subscriber account.
	AccountID     *string `json:"account_id,omitempty"`
	AccountName   *string `json:"account_name,omitempty"`
	AccountType   *string `json:"customer_type,omitempty"`
	AccountStatus *string `json:"account_status,omitempty"`
	ServiceName   *string `json:"service_name,omitempty"`

	// Inventory metadata.
	InventoryModel  *string `json:"inventory_model,omitempty"`
	Manufacturer    *string `json:"manufacturer,omitempty"`
	InventoryStatus *string `json:"inventory_status,omitempty"`
	OverallStatus   *string `json:"overall_status,omitempty"`
	OwnerID         *string `json:"inventoryitemable_id,omitempty"`
	OwnerType       *string `json:"inventoryitemable_type,omitempty"`

	// Enrichment bookkeeping.
	IsEnriched         bool   `json:"is_enriched"`
	LastEnrichmentTime string `json:"last_enrichment_time,omitempty"`
	EnrichmentAttempts int    `json:"enrichment_attempts"`
}

// HasCoordinates reports whether both latitude and longitude are set.
func (e *EnrichedAlarm) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// HasAccount reports whether any subscriber account context was resolved.
func (e *EnrichedAlarm) HasAccount() bool {
	return e.AccountID != nil || e.AccountName != nil
}

// AlarmRecord is the alarm cache's persisted unit: an enriched alarm plus
// cache metadata. FirstSeen is set the first poll the sequence number
// appears and preserved across updates; LastSeen advances every poll the
// alarm is still present at the source.
type AlarmRecord struct {
	EnrichedAlarm

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}
