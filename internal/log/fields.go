package log

import "github.com/shopspring/decimal"

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldOwnerID       = "owner_id"
	FieldAccountID     = "account_id"
	FieldTransactionID = "transaction_id"
	FieldBudgetID      = "budget_id"
	FieldGoalID        = "goal_id"
	FieldEventID       = "event_id"
	FieldEventType     = "event_type"
	FieldAmount        = "amount"
	FieldTxType        = "tx_type"
	FieldCategoryID    = "category_id"
	FieldDescription   = "description"
	FieldYear          = "year"
	FieldMonth         = "month"
	FieldAttempt       = "attempt"
	FieldDuration      = "duration_ms"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentLedger     = "ledger"
	ComponentBudgets    = "budgets"
	ComponentGoals      = "goals"
	ComponentAccounts   = "accounts"
	ComponentRecurrence = "recurrence"
	ComponentNotify     = "notify"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentCache      = "cache"
	ComponentBackend    = "backend"
	ComponentCLI        = "cli"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpArchive  = "archive"
	OpGenerate = "generate"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithOwner adds the owning user
func (f LogFields) WithOwner(ownerID string) LogFields {
	f[FieldOwnerID] = ownerID
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTransaction adds transaction-related fields
func (f LogFields) WithTransaction(id, accountID, txType string, amount decimal.Decimal) LogFields {
	f[FieldTransactionID] = id
	f[FieldAccountID] = accountID
	f[FieldTxType] = txType
	f[FieldAmount] = amount.String()
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
