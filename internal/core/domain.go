// Package core holds the budget economy domain: the month ledger, the
// derived month state, task templates and instances, and the shop catalog.
// Everything here is pure; persistence and transport live elsewhere.
package core

import (
	"strings"
	"time"
)

const (
	Easy Difficulty = "easy"
	Med  Difficulty = "med"
	Hard Difficulty = "hard"
)

const (
	StatusPending   InstanceStatus = "pending"
	StatusCompleted InstanceStatus = "completed"
	StatusSkipped   InstanceStatus = "skipped"
)

// Planned allocation split applied to income at month start.
const (
	needsShare   = 0.5
	savingsShare = 0.3
	poolShare    = 0.2
)

// MinNoteLength is the minimum trimmed length of a completion note.
const MinNoteLength = 8

// DateLayout is the wire and storage format for schedule dates and
// instance keys.
const DateLayout = "2006-01-02"

type (
	Difficulty     string
	InstanceStatus string

	User struct {
		ID           int64
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}

	// Settings holds per-user EXP defaults and tier price bands. Read-only
	// input to template creation and advisory context.
	Settings struct {
		UserID   int64 `json:"-"`
		EasyEXP  int   `json:"easy_exp"`
		MedEXP   int   `json:"med_exp"`
		HardEXP  int   `json:"hard_exp"`
		TierLow  int   `json:"tier_low"`
		TierMid  int   `json:"tier_mid"`
		TierHigh int   `json:"tier_high"`
	}

	// LedgerMonth is the single mutable record per (user, year, month).
	// CashSpent, EXPEarned and EXPRedeemed only ever increase.
	LedgerMonth struct {
		ID             int64
		UserID         int64
		Year           int
		Month          int
		Income         float64
		Ratio          float64
		NeedsPlanned   float64
		SavingsPlanned float64
		PoolTotal      float64
		CashSpent      float64
		EXPEarned      float64
		EXPRedeemed    float64
		SavingsActual  float64
	}

	TaskTemplate struct {
		ID         int64
		UserID     int64
		Title      string
		Category   string
		Difficulty Difficulty
		EXPValue   int
		Schedule   Schedule
		Active     bool
	}

	// TaskInstance materializes a template for one calendar date,
	// unique per (user, template, date).
	TaskInstance struct {
		ID             int64
		UserID         int64
		TemplateID     int64
		Date           string
		Status         InstanceStatus
		CompletionNote string
		CompletedAt    *time.Time
	}

	ShopItem struct {
		ID        int64
		UserID    int64
		Name      string
		Tier      int
		EXPCost   int
		CashPrice float64
		Category  string
		Active    bool
	}

	// Purchase is an immutable receipt written only by settlement.
	Purchase struct {
		ID          int64
		UserID      int64
		MonthID     int64
		ItemID      int64
		EXPSpent    float64
		CashSpent   float64
		PurchasedAt time.Time
		Exported    bool
	}
)

// DefaultSettings returns the out-of-the-box per-user defaults.
func DefaultSettings(userID int64) Settings {
	return Settings{
		UserID:   userID,
		EasyEXP:  5,
		MedEXP:   10,
		HardEXP:  20,
		TierLow:  100,
		TierMid:  150,
		TierHigh: 200,
	}
}

// EXPForDifficulty returns the default EXP award for a difficulty.
// "medium" is accepted as an alias of "med"; unknown values fall back to
// the easy default.
func (s Settings) EXPForDifficulty(d Difficulty) int {
	switch d {
	case Easy:
		return s.EasyEXP
	case Med, "medium":
		return s.MedEXP
	case Hard:
		return s.HardEXP
	default:
		return s.EasyEXP
	}
}

// ValidDifficulty reports whether d is one of the accepted difficulty
// levels ("medium" included for compatibility with older clients).
func ValidDifficulty(d Difficulty) bool {
	switch d {
	case Easy, Med, Hard, "medium":
		return true
	}
	return false
}

// PlanAllocations derives the 50/30/20 planned split from income, each
// slice rounded to 2 decimals.
func PlanAllocations(income float64) (needs, savings, pool float64) {
	return Round2(income * needsShare), Round2(income * savingsShare), Round2(income * poolShare)
}

// ValidateMonthPlan checks the inputs of a month start or re-plan.
func ValidateMonthPlan(income, ratio float64) error {
	if income <= 0 {
		return Validationf("income must be positive, got %v", income)
	}
	if ratio <= 0 {
		return Validationf("ratio must be positive, got %v", ratio)
	}
	return nil
}

func (t TaskTemplate) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return Validationf("template title must not be empty")
	}
	if !ValidDifficulty(t.Difficulty) {
		return Validationf("unknown difficulty %q", t.Difficulty)
	}
	if t.EXPValue < 0 {
		return Validationf("exp value must not be negative, got %d", t.EXPValue)
	}
	if t.Schedule == nil {
		return Validationf("template schedule is required")
	}
	return nil
}

func (i ShopItem) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return Validationf("item name must not be empty")
	}
	if i.CashPrice <= 0 {
		return Validationf("cash price must be positive, got %v", i.CashPrice)
	}
	if i.EXPCost < 0 {
		return Validationf("exp cost must not be negative, got %d", i.EXPCost)
	}
	return nil
}

// ValidateNote enforces the minimum completion note length on the
// trimmed text.
func ValidateNote(note string) error {
	if len(strings.TrimSpace(note)) < MinNoteLength {
		return Validationf("completion note must be at least %d characters", MinNoteLength)
	}
	return nil
}

// ParseDate parses an ISO YYYY-MM-DD date, rejecting anything else.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, Validationf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}
