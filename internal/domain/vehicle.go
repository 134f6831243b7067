package domain

// VehicleState is the per-request snapshot of a vehicle being assessed.
type VehicleState struct {
	CurrentLoad        float64 `json:"currentLoad"`      // tons
	MaxLoad            float64 `json:"maxLoad"`          // tons, must be > 0
	SuspensionHealth   float64 `json:"suspensionHealth"` // 0-100
	TirePressure       float64 `json:"tirePressure"`     // PSI
	Weight             float64 `json:"weight"`           // kg
	Speed              float64 `json:"speed"`            // km/h
	RegistrationNumber string  `json:"registrationNumber"`
}

// Status is the coarse outcome of a risk assessment.
type Status string

const (
	StatusNormal   Status = "NORMAL"
	StatusWarning  Status = "WARNING"
	StatusOverload Status = "OVERLOAD"
)

// RiskLevel refines Status for display.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "Safe"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

// ModelConfidence is reported with every assessment. It is not derived from
// the input.
const ModelConfidence = 0.92

// RiskAssessment is the output of scoring a VehicleState.
// Numeric fields are rounded for presentation; classification is done on the
// unrounded score before rounding.
type RiskAssessment struct {
	LoadRatio      float64   `json:"loadRatio"` // percent
	Score          float64   `json:"score"`
	Probability    float64   `json:"probability"`
	Status         Status    `json:"status"`
	RiskLevel      RiskLevel `json:"riskLevel"`
	ExcessLoad     float64   `json:"excessLoad"` // tons
	Confidence     float64   `json:"confidence"`
	Recommendation string    `json:"recommendation"`
}

// IsOverload reports whether the assessment should raise an alert.
func (a *RiskAssessment) IsOverload() bool {
	return a.Status == StatusOverload
}

// Location is an optional position attached to a prediction request.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}
