package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldDefinitionID  = "definition_id"
	FieldOccurrenceID  = "occurrence_id"
	FieldTransactionID = "transaction_id"
	FieldAccountID     = "account_id"
	FieldDueDate       = "due_date"
	FieldFrequency     = "frequency"
	FieldAmount        = "amount"
	FieldCurrencyPair  = "currency_pair"
	FieldExchangeRate  = "exchange_rate"
	FieldStatus        = "status"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentStorage   = "storage"
	ComponentScheduler = "scheduler"
	ComponentLedger    = "ledger"
	ComponentReconcile = "reconcile"
	ComponentReport    = "report"
	ComponentRates     = "rates"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentExport    = "export"
)
