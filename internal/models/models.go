package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DemoModelRef selects the shared demo model instead of a user's trained model.
const DemoModelRef = "demo"

type GenerationStatus string

const (
	GenerationProcessing GenerationStatus = "processing"
	GenerationCompleted  GenerationStatus = "completed"
	GenerationFailed     GenerationStatus = "failed"
)

type ModelStatus string

const (
	ModelProcessing ModelStatus = "processing"
	ModelReady      ModelStatus = "ready"
	ModelFailed     ModelStatus = "failed"
)

type SubjectClass string

const (
	SubjectMan    SubjectClass = "man"
	SubjectWoman  SubjectClass = "woman"
	SubjectPerson SubjectClass = "person"
)

func (c SubjectClass) Valid() bool {
	switch c {
	case SubjectMan, SubjectWoman, SubjectPerson:
		return true
	default:
		return false
	}
}

type User struct {
	ID        int64     `json:"id"`
	GoogleSub string    `json:"-"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Picture   string    `json:"picture"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Generation struct {
	ID               int64            `json:"id"`
	UserID           int64            `json:"userId"`
	ModelID          *int64           `json:"modelId,omitempty"`
	ModelName        string           `json:"modelName"`
	Prompt           string           `json:"prompt"`
	OriginalPrompt   string           `json:"originalPrompt,omitempty"`
	ImageURL         string           `json:"imageUrl"`
	ProviderPromptID string           `json:"providerPromptId,omitempty"`
	Status           GenerationStatus `json:"status"`
	AspectRatio      string           `json:"aspectRatio"`
	CreatedAt        time.Time        `json:"createdAt"`
	CompletedAt      *time.Time       `json:"completedAt,omitempty"`
}

// ModelRef returns the reference callers use to select this generation's model.
func (g *Generation) ModelRef() string {
	if g.ModelID == nil {
		return DemoModelRef
	}
	return formatID(*g.ModelID)
}

type TrainedModel struct {
	ID             int64        `json:"id"`
	UserID         int64        `json:"userId"`
	Name           string       `json:"name"`
	SubjectClass   SubjectClass `json:"gender"`
	TrainingImages []string     `json:"trainingImages"`
	Status         ModelStatus  `json:"status"`
	ProviderTuneID string       `json:"providerTuneId,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	CompletedAt    *time.Time   `json:"completedAt,omitempty"`
}

// Usable reports whether generations may reference the model.
func (m *TrainedModel) Usable() bool {
	return m.Status == ModelReady && m.ProviderTuneID != ""
}

type Template struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Prompt    string    `json:"prompt"`
	Category  string    `json:"category"`
	ImageURL  string    `json:"imageUrl"`
	IsHit     bool      `json:"isHit"`
	CreatedAt time.Time `json:"createdAt"`
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentRejected  PaymentStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentConfirmed || s == PaymentRejected
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentConfirmed, PaymentRejected:
		return true
	default:
		return false
	}
}

// PaymentSources lists the states a request may be in when moving to target.
func PaymentSources(target PaymentStatus) []PaymentStatus {
	switch target {
	case PaymentPaid:
		return []PaymentStatus{PaymentPending}
	case PaymentConfirmed:
		return []PaymentStatus{PaymentPaid}
	case PaymentRejected:
		return []PaymentStatus{PaymentPending, PaymentPaid}
	default:
		return nil
	}
}

// CanTransition reports whether from -> to is a legal workflow step.
func CanTransition(from, to PaymentStatus) bool {
	for _, s := range PaymentSources(to) {
		if s == from {
			return true
		}
	}
	return false
}

// Actor records who moved a payment request into the paid state.
type Actor string

const (
	ActorUser  Actor = "user"
	ActorAdmin Actor = "admin"
)

type PaymentRequest struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"userId"`
	Amount      decimal.Decimal `json:"amount"`
	Crystals    int             `json:"crystals"`
	PayerPhone  string          `json:"kaspiPhone"`
	PayerName   string          `json:"kaspiName"`
	Status      PaymentStatus   `json:"status"`
	PaidBy      Actor           `json:"paidBy,omitempty"`
	AdminNote   string          `json:"adminNote,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	PaidAt      *time.Time      `json:"paidAt,omitempty"`
	ConfirmedAt *time.Time      `json:"confirmedAt,omitempty"`
	RejectedAt  *time.Time      `json:"rejectedAt,omitempty"`
}

type PaymentStats struct {
	TotalUsers        int             `json:"totalUsers"`
	TotalPayments     int             `json:"totalPayments"`
	PendingPayments   int             `json:"pendingPayments"`
	PaidPayments      int             `json:"paidPayments"`
	ConfirmedPayments int             `json:"confirmedPayments"`
	RejectedPayments  int             `json:"rejectedPayments"`
	TotalCrystalsSold int             `json:"totalCrystalsSold"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
}
