package api

import (
	"fmt"
	"math"
	"strings"

	"github.com/opensource-finance/axle/internal/domain"
)

// PredictRequest is the request body for POST /predict. Numeric fields are
// pointers so a missing field is distinguishable from zero.
type PredictRequest struct {
	CurrentLoad        *float64         `json:"currentLoad"`
	MaxLoad            *float64         `json:"maxLoad"`
	Suspension         *float64         `json:"suspension"`
	TirePressure       *float64         `json:"tirePressure"`
	Weight             *float64         `json:"weight"`
	Speed              *float64         `json:"speed"`
	RegistrationNumber string           `json:"registrationNumber"`
	Location           *domain.Location `json:"location,omitempty"`
}

// Accepted ranges. The tire range is wider than the 20-50 PSI guidance shown
// to clients and the 28-35 PSI band used by scoring.
const (
	suspensionMin   = 0.0
	suspensionMax   = 100.0
	tirePressureMin = 0.0
	tirePressureMax = 100.0
	speedMin        = 0.0
	speedMax        = 200.0
)

// Validate returns one message per violated constraint.
func (req *PredictRequest) Validate() []string {
	var details []string

	atLeast := func(name string, v *float64, min float64) {
		switch {
		case v == nil:
			details = append(details, name+" is required")
		case *v < min:
			details = append(details, fmt.Sprintf("%s must be at least %g", name, min))
		}
	}
	positive := func(name string, v *float64) {
		switch {
		case v == nil:
			details = append(details, name+" is required")
		case *v <= 0:
			details = append(details, name+" must be greater than 0")
		}
	}
	between := func(name string, v *float64, min, max float64) {
		switch {
		case v == nil:
			details = append(details, name+" is required")
		case *v < min || *v > max:
			details = append(details, fmt.Sprintf("%s must be between %g and %g", name, min, max))
		}
	}

	atLeast("currentLoad", req.CurrentLoad, 0)
	positive("maxLoad", req.MaxLoad)
	between("suspension", req.Suspension, suspensionMin, suspensionMax)
	between("tirePressure", req.TirePressure, tirePressureMin, tirePressureMax)
	positive("weight", req.Weight)
	between("speed", req.Speed, speedMin, speedMax)

	// Scoring reports the load ratio and excess at two decimals; both must
	// stay finite once scaled.
	if req.CurrentLoad != nil && req.MaxLoad != nil && *req.CurrentLoad >= 0 && *req.MaxLoad > 0 {
		ratio := *req.CurrentLoad / *req.MaxLoad
		excess := *req.CurrentLoad - *req.MaxLoad
		if !finite(ratio*100*100) || !finite(excess*100) {
			details = append(details, "currentLoad is too large relative to maxLoad")
		}
	}

	if strings.TrimSpace(req.RegistrationNumber) == "" {
		details = append(details, "registrationNumber is required")
	}

	return details
}

func finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

// VehicleState converts a validated request. Call Validate first.
func (req *PredictRequest) VehicleState() domain.VehicleState {
	return domain.VehicleState{
		CurrentLoad:        *req.CurrentLoad,
		MaxLoad:            *req.MaxLoad,
		SuspensionHealth:   *req.Suspension,
		TirePressure:       *req.TirePressure,
		Weight:             *req.Weight,
		Speed:              *req.Speed,
		RegistrationNumber: strings.TrimSpace(req.RegistrationNumber),
	}
}
