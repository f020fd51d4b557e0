// SPDX-License-Identifier: MIT

package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/katalvlaran/basinflow/institution"
	"github.com/katalvlaran/basinflow/market"
)

// CurrentSchemaVersion is written into every payload.
const CurrentSchemaVersion = 1

var (
	// ErrNotInitialized is returned by store calls before Init.
	ErrNotInitialized = errors.New("ledger: store is not initialized")
	// ErrUnknownRun is returned when a record names a run never begun.
	ErrUnknownRun = errors.New("ledger: unknown run")
	// ErrVersionMismatch is returned for payloads of another schema.
	ErrVersionMismatch = errors.New("ledger: record version mismatch")
)

// NewRunID returns a fresh random run ID.
func NewRunID() string { return uuid.NewString() }

// Run describes one simulation run.
type Run struct {
	ID      string    `json:"id"`
	Label   string    `json:"label"`
	Started time.Time `json:"started"`
}

// AllocationRecord is the realized anchor month of one institution.
type AllocationRecord struct {
	SchemaVersion int                `json:"schema_version"`
	RunID         string             `json:"run_id"`
	Institution   string             `json:"institution"`
	Year          int                `json:"year"`
	Month         int                `json:"month"`
	State         string             `json:"state"`
	Backend       string             `json:"backend,omitempty"`
	Penalty       string             `json:"penalty"`
	Objective     float64            `json:"objective"`
	Attempts      int                `json:"attempts"`
	Deliverable   float64            `json:"deliverable"`
	Delivery      map[string]float64 `json:"delivery,omitempty"`
	Deficit       map[string]float64 `json:"deficit,omitempty"`
	Extraction    map[string]float64 `json:"extraction,omitempty"`
	Flow          map[string]float64 `json:"flow,omitempty"`
	EndStorage    map[string]float64 `json:"end_storage,omitempty"`
}

// MarketRecord is one clearing.
type MarketRecord struct {
	SchemaVersion int                `json:"schema_version"`
	RunID         string             `json:"run_id"`
	Year          int                `json:"year"`
	Month         int                `json:"month"`
	Status        string             `json:"status"`
	Error         string             `json:"error,omitempty"`
	Warm          bool               `json:"warm"`
	Iterations    int                `json:"iterations"`
	Volume        float64            `json:"volume"`
	Welfare       float64            `json:"welfare"`
	BuyerVolume   map[string]float64 `json:"buyer_volume,omitempty"`
	BuyerPrice    map[string]float64 `json:"buyer_price,omitempty"`
	SellerSold    map[string]float64 `json:"seller_sold,omitempty"`
}

// FromOutcome converts an institution period into a record.
func FromOutcome(runID string, out institution.Outcome) AllocationRecord {
	rec := AllocationRecord{
		SchemaVersion: CurrentSchemaVersion,
		RunID:         runID,
		Institution:   out.Institution,
		Year:          out.Date.Year,
		Month:         out.Date.Month,
		State:         out.State.String(),
		Penalty:       out.Penalty.String(),
		Attempts:      len(out.Attempts),
		Deliverable:   out.Deliverable.Total,
	}
	if out.State != institution.StateExtracted {
		return rec
	}
	rec.Backend = out.Result.Backend
	rec.Objective = out.Result.Objective
	rec.Delivery = out.First.Delivery
	rec.Deficit = out.First.Deficit
	rec.Extraction = out.First.Extraction
	rec.Flow = out.First.Flow
	rec.EndStorage = out.First.EndStorage
	return rec
}

// FromMarket converts a clearing into a record.
func FromMarket(runID string, out market.Outcome) MarketRecord {
	rec := MarketRecord{
		SchemaVersion: CurrentSchemaVersion,
		RunID:         runID,
		Year:          out.Date.Year,
		Month:         out.Date.Month,
		Status:        out.Status.String(),
		Warm:          out.Warm,
		Iterations:    out.Iterations,
		Volume:        out.Volume,
		Welfare:       out.Welfare,
		BuyerVolume:   make(map[string]float64, len(out.Buyers)),
		BuyerPrice:    make(map[string]float64, len(out.Buyers)),
		SellerSold:    make(map[string]float64, len(out.Sellers)),
	}
	if out.Err != nil {
		rec.Error = out.Err.Error()
	}
	for id, b := range out.Buyers {
		rec.BuyerVolume[id] = b.Volume
		rec.BuyerPrice[id] = b.Price
	}
	for id, s := range out.Sellers {
		rec.SellerSold[id] = s.Sold
	}
	return rec
}

func encode(v any) ([]byte, error) { return json.Marshal(v) }

func decodeAllocation(data []byte) (AllocationRecord, error) {
	var rec AllocationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return AllocationRecord{}, fmt.Errorf("ledger: decode allocation: %w", err)
	}
	if rec.SchemaVersion != CurrentSchemaVersion {
		return AllocationRecord{}, fmt.Errorf("%w: allocation v%d", ErrVersionMismatch, rec.SchemaVersion)
	}
	return rec, nil
}

func decodeMarket(data []byte) (MarketRecord, error) {
	var rec MarketRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return MarketRecord{}, fmt.Errorf("ledger: decode market: %w", err)
	}
	if rec.SchemaVersion != CurrentSchemaVersion {
		return MarketRecord{}, fmt.Errorf("%w: market v%d", ErrVersionMismatch, rec.SchemaVersion)
	}
	return rec, nil
}
