package model

// SessionStep is the position of a user in a multi-step conversation.
type SessionStep string

const (
	SessionStepNone                     SessionStep = "none"
	SessionStepAwaitingAmount           SessionStep = "awaiting_amount"
	SessionStepAwaitingPaymentReference SessionStep = "awaiting_payment_reference"
	SessionStepAwaitingSecretKey        SessionStep = "awaiting_secret_key"
)

// TopUpStatus represents the operator decision on a top-up request.
type TopUpStatus string

const (
	TopUpStatusPending   TopUpStatus = "pending"
	TopUpStatusConfirmed TopUpStatus = "confirmed"
	TopUpStatusRejected  TopUpStatus = "rejected"
)

// ReplyKind tells the caller which message to compose for a session step.
type ReplyKind string

const (
	ReplyNoSession            ReplyKind = "no_session"
	ReplyAskAmount            ReplyKind = "ask_amount"
	ReplyInvalidAmount        ReplyKind = "invalid_amount"
	ReplyPaymentInstructions  ReplyKind = "payment_instructions"
	ReplyInvalidReference     ReplyKind = "invalid_reference"
	ReplyDuplicateReference   ReplyKind = "duplicate_reference"
	ReplyTopUpSubmitted       ReplyKind = "topup_submitted"
	ReplyAskSecretKey         ReplyKind = "ask_secret_key"
	ReplyCodeGenerated        ReplyKind = "code_generated"
	ReplyCodeGenerationFailed ReplyKind = "code_generation_failed"
)
