package core

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AccountBank       AccountType = "bank"
	AccountCredit     AccountType = "credit"
	AccountCash       AccountType = "cash"
	AccountInvestment AccountType = "investment"
	AccountSavings    AccountType = "savings"
)

const (
	Income   TransactionType = "income"
	Expense  TransactionType = "expense"
	Transfer TransactionType = "transfer"
)

const (
	Daily   RecurrencePattern = "daily"
	Weekly  RecurrencePattern = "weekly"
	Monthly RecurrencePattern = "monthly"
	Yearly  RecurrencePattern = "yearly"
)

const (
	PriorityLow    GoalPriority = "low"
	PriorityMedium GoalPriority = "medium"
	PriorityHigh   GoalPriority = "high"
)

// DefaultAlertThreshold is the warning threshold, in percent, of a new budget.
const DefaultAlertThreshold = 80

const maxDescriptionLen = 200

// MaxGeneratedSuffixLen is the longest month suffix a recurrence copy appends
// to its source description, " September 2006".
const MaxGeneratedSuffixLen = 15

type (
	AccountType       string
	TransactionType   string
	RecurrencePattern string
	GoalPriority      string

	Date struct {
		time.Time
	}

	Account struct {
		ID             string
		OwnerID        string
		Name           string
		Type           AccountType
		InitialBalance decimal.Decimal
		CurrentBalance decimal.Decimal
		Currency       string
		Description    string
		Archived       bool
		Version        int64 // optimistic concurrency token for balance writes
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	Transaction struct {
		ID                  string
		OwnerID             string
		AccountID           string
		Type                TransactionType
		Amount              decimal.Decimal // always positive, direction comes from Type
		CategoryID          string          // empty when uncategorized
		Description         string
		Date                Date
		Recurring           bool
		RecurrencePattern   RecurrencePattern
		AutoGenerated       bool
		TransferToAccountID string
		AttachmentURLs      []string
		CreatedAt           time.Time
		UpdatedAt           time.Time
	}

	// Budget is a spending bucket keyed by (owner, category, year, month).
	Budget struct {
		ID              string
		OwnerID         string
		CategoryID      string
		Year            int
		Month           int
		AllocatedAmount decimal.Decimal
		SpentAmount     decimal.Decimal
		AlertThreshold  int
		AlertAt80Sent   bool
		AlertAt100Sent  bool
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}

	Goal struct {
		ID                string
		OwnerID           string
		Name              string
		Description       string
		TargetAmount      decimal.Decimal
		CurrentAmount     decimal.Decimal
		Deadline          Date
		Priority          GoalPriority
		DependencyGoalIDs []string // prerequisites; the graph over all goals is a DAG
		Completed         bool
		SavingsAccountID  string
		CreatedAt         time.Time
		UpdatedAt         time.Time
	}

	GoalContribution struct {
		ID            string
		GoalID        string
		OwnerID       string
		Amount        decimal.Decimal
		Note          string
		TransactionID string // set when the contribution was made through a transfer
		CreatedAt     time.Time
	}
)

var (
	ErrInvalidAmount       = &Error{Kind: KindBadRequest, Msg: "amount must be positive"}
	ErrEmptyName           = &Error{Kind: KindBadRequest, Msg: "name is required"}
	ErrMissingDestination  = &Error{Kind: KindBadRequest, Msg: "transfer destination account is required"}
	ErrSelfTransfer        = &Error{Kind: KindBadRequest, Msg: "cannot transfer to the same account"}
	ErrDuplicateDependency = &Error{Kind: KindBadRequest, Msg: "dependency already exists"}
	ErrCircularDependency  = &Error{Kind: KindBadRequest, Msg: "circular dependency detected"}
	ErrArchivedAccount     = &Error{Kind: KindBadRequest, Msg: "account is archived"}
	ErrAutoGenerated       = &Error{Kind: KindBadRequest, Msg: "auto-generated transactions cannot be edited"}
)

// NewID returns a fresh random identifier for any ledger entity.
func NewID() string {
	return uuid.NewString()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a date in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, BadRequest("invalid date %q", s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return BadRequest("date cannot be zero")
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// MonthStart returns the first day of the date's month.
func (d Date) MonthStart() Date {
	return NewDate(d.Year(), d.Month(), 1)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// MarshalJSON writes the date as "YYYY-MM-DD", or null when zero.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (t AccountType) Valid() bool {
	switch t {
	case AccountBank, AccountCredit, AccountCash, AccountInvestment, AccountSavings:
		return true
	}
	return false
}

func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense, Transfer:
		return true
	}
	return false
}

func (p RecurrencePattern) Valid() bool {
	switch p {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (p GoalPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// IsTransfer reports whether the transaction moves money between two accounts.
func (t Transaction) IsTransfer() bool {
	return t.Type == Transfer
}

// AffectsBudget reports whether the transaction counts toward a category budget.
func (t Transaction) AffectsBudget() bool {
	return t.Type == Expense && t.CategoryID != ""
}

// Touches reports whether the transaction has an effect on the given account.
func (t Transaction) Touches(accountID string) bool {
	return t.AccountID == accountID || (t.IsTransfer() && t.TransferToAccountID == accountID)
}

// SpentPercentage is spent/allocated as a percentage, 0 when nothing is allocated.
func (b Budget) SpentPercentage() decimal.Decimal {
	return Percent(b.SpentAmount, b.AllocatedAmount)
}

func (b Budget) Remaining() decimal.Decimal {
	return b.AllocatedAmount.Sub(b.SpentAmount)
}

// ReachedTarget reports whether the goal's own progress meets its target,
// regardless of its dependencies.
func (g Goal) ReachedTarget() bool {
	return g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount)
}

func (g Goal) ProgressPercentage() decimal.Decimal {
	return Percent(g.CurrentAmount, g.TargetAmount)
}

func (g Goal) HasDependency(id string) bool {
	for _, dep := range g.DependencyGoalIDs {
		if dep == id {
			return true
		}
	}
	return false
}

func validateDescription(desc string) error {
	return validateDescriptionLen(desc, maxDescriptionLen)
}

func validateDescriptionLen(desc string, limit int) error {
	if utf8.RuneCountInString(desc) > limit {
		return BadRequest("description too long (max %d characters)", limit)
	}
	return nil
}
