package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CommandType identifies the intent of a parsed SMS command
type CommandType string

const (
	CmdPay                    CommandType = "PAY"
	CmdSell                   CommandType = "SELL"
	CmdBalance                CommandType = "BALANCE"
	CmdHelp                   CommandType = "HELP"
	CmdStatus                 CommandType = "STATUS"
	CmdAcceptLoan             CommandType = "ACCEPT_LOAN"
	CmdRetry                  CommandType = "RETRY"
	CmdMerchantRegister       CommandType = "MERCHANT_REGISTER"
	CmdMerchantRequestPayment CommandType = "MERCHANT_REQUEST_PAYMENT"
	CmdMerchantReport         CommandType = "MERCHANT_REPORT"
	CmdClubCreate             CommandType = "CLUB_CREATE"
	CmdClubDeposit            CommandType = "CLUB_DEPOSIT"
	CmdClubProposePayout      CommandType = "CLUB_PROPOSE_PAYOUT"
	CmdClubVote               CommandType = "CLUB_VOTE"
	CmdSetPin                 CommandType = "SET_PIN"
	CmdPinEntry               CommandType = "PIN_ENTRY"
	CmdOtpEntry               CommandType = "OTP_ENTRY"
	CmdReset                  CommandType = "RESET"
)

// ParsedCommand is the structured form of an inbound SMS. It is a tagged
// union: Type selects the variant, and only the fields relevant to that
// variant are populated. Amounts are always positive, phone numbers always
// E.164, currency codes always uppercase — the parser enforces this, nothing
// downstream re-validates.
//
// The same type doubles as the pending-command payload stored on a session
// while the OTP+PIN challenge runs; Pin and Otp are excluded from that
// encoding so secrets never reach storage.
type ParsedCommand struct {
	Type           CommandType     `json:"type"`
	Amount         decimal.Decimal `json:"amount,omitempty"`
	Currency       string          `json:"currency,omitempty"`
	RecipientPhone string          `json:"recipient_phone,omitempty"`
	PayerPhone     string          `json:"payer_phone,omitempty"`
	Note           string          `json:"note,omitempty"`
	BusinessName   string          `json:"business_name,omitempty"`
	ClubName       string          `json:"club_name,omitempty"`
	Members        []string        `json:"members,omitempty"`
	ProposalID     string          `json:"proposal_id,omitempty"`
	Approve        bool            `json:"approve,omitempty"`
	Pin            string          `json:"-"`
	Otp            string          `json:"-"`
}

// RequiresAuth reports whether the command moves value and therefore must
// pass the OTP+PIN challenge before execution.
func (c *ParsedCommand) RequiresAuth() bool {
	switch c.Type {
	case CmdPay, CmdSell, CmdAcceptLoan, CmdRetry,
		CmdMerchantRequestPayment, CmdClubDeposit, CmdClubProposePayout:
		return true
	}
	return false
}

// Label returns a short human description used in reply messages
// ("Your payment failed", "Confirm your deposit", ...).
func (c *ParsedCommand) Label() string {
	switch c.Type {
	case CmdPay:
		return "payment"
	case CmdSell:
		return "sale"
	case CmdAcceptLoan:
		return "loan acceptance"
	case CmdRetry:
		return "retry"
	case CmdMerchantRegister:
		return "merchant registration"
	case CmdMerchantRequestPayment:
		return "payment request"
	case CmdMerchantReport:
		return "report"
	case CmdClubCreate:
		return "club creation"
	case CmdClubDeposit:
		return "deposit"
	case CmdClubProposePayout:
		return "payout proposal"
	case CmdClubVote:
		return "vote"
	}
	return "request"
}

// Encode serializes the command for storage as a session's pending command.
func (c *ParsedCommand) Encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeCommand restores a pending command stored by Encode.
func DecodeCommand(data string) (*ParsedCommand, error) {
	var c ParsedCommand
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, err
	}
	return &c, nil
}
