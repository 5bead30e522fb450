package loans

// Kind classifies an error for the calling layer: NotFound maps to a
// 404-equivalent, Validation and BusinessRule to 400-equivalents,
// Consistency to a 500-equivalent.
type Kind int

const (
	KindNotFound Kind = iota
	KindValidation
	KindBusinessRule
	KindConsistency
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation_failure"
	case KindBusinessRule:
		return "business_rule_violation"
	case KindConsistency:
		return "consistency_failure"
	}
	return "unknown"
}

type Code string

const (
	CodePatronNotFound    Code = "PATRON_NOT_FOUND"
	CodePatronInactive    Code = "PATRON_INACTIVE"
	CodeLoanLimitExceeded Code = "LOAN_LIMIT_EXCEEDED"
	CodeDuplicateLoan     Code = "DUPLICATE_LOAN"
	CodeItemUnavailable   Code = "ITEM_UNAVAILABLE"
	CodeInvalidDueDate    Code = "INVALID_DUE_DATE"
	CodeLoanNotFound      Code = "LOAN_NOT_FOUND"
	CodeLoanNotActive     Code = "LOAN_NOT_ACTIVE"
	CodeLoanNotRenewable  Code = "LOAN_NOT_RENEWABLE"
)

type Error struct {
	Kind    Kind
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func notFound(code Code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func validation(code Code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func businessRule(code Code, message string) *Error {
	return &Error{Kind: KindBusinessRule, Code: code, Message: message}
}

func consistency(message string) *Error {
	return &Error{Kind: KindConsistency, Message: message}
}
