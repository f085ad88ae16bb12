// Package queue defines message payloads exchanged over the message broker
// together with the publisher used by the ledger and the audit consumer.
package queue

// TruckEventsQueue is the durable queue carrying every truck event.
const TruckEventsQueue = "truck.events"

// Event types carried in TruckEvent.Type.
const (
    EventTruckRegistered    = "truck.registered"
    EventTruckUpdated       = "truck.updated"
    EventTruckStatusChanged = "truck.status_changed"
)

// TruckEvent is published after a ledger write commits.  It carries enough
// information for downstream consumers to log or report without querying
// the primary database.
type TruckEvent struct {
    Type           string `json:"type"`
    TruckID        uint64 `json:"truck_id"`
    PlateNumber    int64  `json:"plate_number"`
    ContractorID   uint64 `json:"contractor_id"`
    ContractorName string `json:"contractor_name"`
    FactoryID      uint64 `json:"factory_id"`
    FactoryName    string `json:"factory_name"`
    GateID         uint64 `json:"gate_id"`
    GateName       string `json:"gate_name"`
    RegisteredBy   uint64 `json:"registered_by"`
    Status         string `json:"status"`
    PreviousStatus string `json:"previous_status,omitempty"`
    OccurredAt     string `json:"occurred_at"`
}
