package types

import "fmt"

// ConfigError reports a malformed or incomplete configuration document.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// ExchangeAPIError wraps transport, auth and venue-side rejections.
type ExchangeAPIError struct {
	Op      string
	Code    int
	Message string
	Err     error
}

func (e *ExchangeAPIError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("venue %s: %v", e.Op, e.Err)
	case e.Code != 0:
		return fmt.Sprintf("venue %s: code %d: %s", e.Op, e.Code, e.Message)
	default:
		return fmt.Sprintf("venue %s: %s", e.Op, e.Message)
	}
}

func (e *ExchangeAPIError) Unwrap() error { return e.Err }

// NotificationError reports a chat message that could not be delivered.
type NotificationError struct {
	OrderID string
	Err     error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify order %s: %v", e.OrderID, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// InvalidRuleError reports a pricing or quantity rule that cannot be
// interpreted.
type InvalidRuleError struct {
	Rule   string
	Reason string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("invalid rule %q: %s", e.Rule, e.Reason)
}
