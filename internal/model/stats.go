package model

import "time"

// StatsScope restricts an aggregation over the ledger. Zero values mean
// "no restriction".
type StatsScope struct {
    Since        *time.Time
    ContractorID uint64
    FactoryID    uint64
    GateID       uint64
    RegisteredBy uint64
}

// WithReference returns a copy of s restricted to one reference entity.
func (s StatsScope) WithReference(kind ReferenceKind, id uint64) StatsScope {
    switch kind {
    case KindContractor:
        s.ContractorID = id
    case KindFactory:
        s.FactoryID = id
    case KindGate:
        s.GateID = id
    }
    return s
}

// Bucket is a truck count for one reference entity.
type Bucket struct {
    ID    uint64 `json:"id"`
    Name  string `json:"name"`
    Count int64  `json:"count"`
}

// DayBucket is a truck count for one calendar day (YYYY-MM-DD).
type DayBucket struct {
    Day   string `json:"day"`
    Count int64  `json:"count"`
}
