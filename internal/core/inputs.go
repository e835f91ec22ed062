package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

type (
	AccountInput struct {
		Name           string
		Type           AccountType
		InitialBalance decimal.Decimal
		Currency       string
		Description    string
	}

	// TransactionInput carries the user-editable fields of a transaction.
	TransactionInput struct {
		AccountID           string
		Type                TransactionType
		Amount              decimal.Decimal
		CategoryID          string
		Description         string
		Date                Date
		Recurring           bool
		RecurrencePattern   RecurrencePattern
		TransferToAccountID string
		AttachmentURLs      []string
	}

	BudgetInput struct {
		CategoryID      string
		Year            int
		Month           int
		AllocatedAmount decimal.Decimal
		AlertThreshold  int // 0 means DefaultAlertThreshold
	}

	GoalInput struct {
		Name              string
		Description       string
		TargetAmount      decimal.Decimal
		Deadline          Date
		Priority          GoalPriority
		DependencyGoalIDs []string
	}

	// ContributionInput adds money to a goal. With a SourceAccountID the money is
	// moved by a transfer into the goal's savings account.
	ContributionInput struct {
		Amount          decimal.Decimal
		Note            string
		SourceAccountID string
		Date            Date
	}
)

func (in AccountInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	if !in.Type.Valid() {
		return BadRequest("invalid account type %q", in.Type)
	}
	if _, err := ValidateCurrency(in.Currency); err != nil {
		return err
	}
	return validateDescription(in.Description)
}

func (in TransactionInput) Validate() error {
	return in.validate(maxDescriptionLen)
}

// ValidateGenerated validates a recurrence copy, whose description may run
// past the usual limit by the month suffix.
func (in TransactionInput) ValidateGenerated() error {
	return in.validate(maxDescriptionLen + MaxGeneratedSuffixLen)
}

func (in TransactionInput) validate(descLimit int) error {
	if strings.TrimSpace(in.AccountID) == "" {
		return BadRequest("account id is required")
	}
	if !in.Type.Valid() {
		return BadRequest("invalid transaction type %q", in.Type)
	}
	if !in.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := in.Date.Validate(); err != nil {
		return err
	}
	if err := validateDescriptionLen(in.Description, descLimit); err != nil {
		return err
	}
	if in.Type == Transfer {
		if strings.TrimSpace(in.TransferToAccountID) == "" {
			return ErrMissingDestination
		}
		if in.TransferToAccountID == in.AccountID {
			return ErrSelfTransfer
		}
	} else if in.TransferToAccountID != "" {
		return BadRequest("only transfers can have a destination account")
	}
	if in.Recurring && !in.RecurrencePattern.Valid() {
		return BadRequest("invalid recurrence pattern %q", in.RecurrencePattern)
	}
	return nil
}

func (in BudgetInput) Validate() error {
	if strings.TrimSpace(in.CategoryID) == "" {
		return BadRequest("category id is required")
	}
	if in.Month < 1 || in.Month > 12 {
		return BadRequest("invalid month %d", in.Month)
	}
	if in.Year < 1 {
		return BadRequest("invalid year %d", in.Year)
	}
	if !in.AllocatedAmount.IsPositive() {
		return ErrInvalidAmount
	}
	if in.AlertThreshold < 0 || in.AlertThreshold > 100 {
		return BadRequest("alert threshold must be between 0 and 100")
	}
	return nil
}

func (in GoalInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	if !in.TargetAmount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := in.Deadline.Validate(); err != nil {
		return BadRequest("invalid deadline: %s", err.Error())
	}
	if !in.Priority.Valid() {
		return BadRequest("invalid priority %q", in.Priority)
	}
	return validateDescription(in.Description)
}

func (in ContributionInput) Validate() error {
	if !in.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return validateDescription(in.Note)
}

// Apply copies the input onto tx, leaving identity and bookkeeping fields alone.
func (in TransactionInput) Apply(tx *Transaction) {
	tx.AccountID = in.AccountID
	tx.Type = in.Type
	tx.Amount = in.Amount
	tx.CategoryID = in.CategoryID
	tx.Description = in.Description
	tx.Date = in.Date
	tx.Recurring = in.Recurring
	tx.RecurrencePattern = in.RecurrencePattern
	if !in.Recurring {
		tx.RecurrencePattern = ""
	}
	tx.TransferToAccountID = in.TransferToAccountID
	tx.AttachmentURLs = append([]string(nil), in.AttachmentURLs...)
}

// InputOf is the inverse of Apply.
func InputOf(tx Transaction) TransactionInput {
	return TransactionInput{
		AccountID:           tx.AccountID,
		Type:                tx.Type,
		Amount:              tx.Amount,
		CategoryID:          tx.CategoryID,
		Description:         tx.Description,
		Date:                tx.Date,
		Recurring:           tx.Recurring,
		RecurrencePattern:   tx.RecurrencePattern,
		TransferToAccountID: tx.TransferToAccountID,
		AttachmentURLs:      append([]string(nil), tx.AttachmentURLs...),
	}
}
