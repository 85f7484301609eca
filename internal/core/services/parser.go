package services

import (
	"regexp"
	"strings"

	"textpesa/internal/core/domain"
	"textpesa/internal/pkg/phone"

	"github.com/shopspring/decimal"
)

// Currency defaults per command family
const (
	DefaultFiatCurrency   = "INR"
	DefaultCryptoCurrency = "PYUSD"
)

const unrecognizedHint = "Sorry, we couldn't understand that command. Reply HELP for the menu."

// recognizer pairs a command pattern with a builder that turns its captures
// into a ParsedCommand. Recognizers are evaluated in slice order, first match
// wins — fixed keywords come before free-form patterns, and the bare 4/6
// digit forms come last so "1234" only becomes a PIN entry when nothing else
// claimed it.
type recognizer struct {
	pattern *regexp.Regexp
	build   func(m []string) (*domain.ParsedCommand, error)
}

// Parser converts trimmed SMS bodies into structured commands. It is pure:
// no storage, no clock, no side effects.
type Parser struct {
	defaultCountry string
	recognizers    []recognizer
}

// NewParser creates a parser that resolves national phone numbers against
// defaultCountry (a dialing prefix such as "+91").
func NewParser(defaultCountry string) *Parser {
	p := &Parser{defaultCountry: defaultCountry}

	amount := `([\d,]+(?:\.\d+)?)`
	currency := `([A-Za-z]{3,5})`
	msisdn := `(\+?\d[\d\- ]*\d)`

	p.recognizers = []recognizer{
		{regexp.MustCompile(`(?i)^RESET$`), p.fixed(domain.CmdReset)},
		{regexp.MustCompile(`(?i)^(?:HELP|MENU)$`), p.fixed(domain.CmdHelp)},
		{regexp.MustCompile(`(?i)^(?:BALANCE|BAL)$`), p.fixed(domain.CmdBalance)},
		{regexp.MustCompile(`(?i)^STATUS$`), p.fixed(domain.CmdStatus)},
		{regexp.MustCompile(`(?i)^ACCEPT(?:\s+LOAN)?$`), p.fixed(domain.CmdAcceptLoan)},
		{regexp.MustCompile(`(?i)^RETRY$`), p.fixed(domain.CmdRetry)},
		{regexp.MustCompile(`(?i)^REPORT$`), p.fixed(domain.CmdMerchantReport)},
		{regexp.MustCompile(`(?i)^SET\s*PIN\s+(\d{4})$`), p.buildSetPin},
		{regexp.MustCompile(`(?i)^PAY\s+` + amount + `\s*(?:` + currency + `\s+)?(?:TO\s+)?` + msisdn + `(?:\s+(?:FOR|NOTE)\s+(.+))?$`), p.buildPay},
		{regexp.MustCompile(`(?i)^SELL\s+` + amount + `(?:\s+` + currency + `)?$`), p.buildSell},
		{regexp.MustCompile(`(?i)^(?:MERCHANT\s+REGISTER|REGISTER\s+MERCHANT)\s+(.+)$`), p.buildMerchantRegister},
		{regexp.MustCompile(`(?i)^REQUEST\s+` + amount + `\s*(?:` + currency + `\s+)?FROM\s+` + msisdn + `$`), p.buildRequest},
		{regexp.MustCompile(`(?i)^CREATE\s+CLUB\s+(?:'([^']+)'|"([^"]+)"|(\S+))\s+WITH\s+(.+)$`), p.buildClubCreate},
		{regexp.MustCompile(`(?i)^DEPOSIT\s+` + amount + `(?:\s+` + currency + `)?(?:\s+TO\s+(.+))?$`), p.buildDeposit},
		{regexp.MustCompile(`(?i)^PAYOUT\s+` + amount + `(?:\s+` + currency + `)?\s+TO\s+` + msisdn + `(?:\s+FROM\s+(.+))?$`), p.buildPayout},
		{regexp.MustCompile(`(?i)^VOTE\s+([A-Za-z0-9\-]+)\s+(YES|NO)$`), p.buildVote},
		{regexp.MustCompile(`^(\d{4})$`), p.buildPinEntry},
		{regexp.MustCompile(`^(\d{6})$`), p.buildOtpEntry},
	}

	return p
}

// Parse converts an SMS body into a structured command, or fails with a
// ParseError carrying a user-facing hint.
func (p *Parser) Parse(input string) (*domain.ParsedCommand, error) {
	body := strings.TrimSpace(input)
	if body == "" {
		return nil, domain.NewParseError(domain.ParseUnrecognized, unrecognizedHint)
	}

	for _, r := range p.recognizers {
		if m := r.pattern.FindStringSubmatch(body); m != nil {
			return r.build(m)
		}
	}

	return nil, domain.NewParseError(domain.ParseUnrecognized, unrecognizedHint)
}

// ============================================================
// Builders
// ============================================================

func (p *Parser) fixed(t domain.CommandType) func([]string) (*domain.ParsedCommand, error) {
	return func([]string) (*domain.ParsedCommand, error) {
		return &domain.ParsedCommand{Type: t}, nil
	}
}

func (p *Parser) buildSetPin(m []string) (*domain.ParsedCommand, error) {
	return &domain.ParsedCommand{Type: domain.CmdSetPin, Pin: m[1]}, nil
}

func (p *Parser) buildPinEntry(m []string) (*domain.ParsedCommand, error) {
	return &domain.ParsedCommand{Type: domain.CmdPinEntry, Pin: m[1]}, nil
}

func (p *Parser) buildOtpEntry(m []string) (*domain.ParsedCommand, error) {
	return &domain.ParsedCommand{Type: domain.CmdOtpEntry, Otp: m[1]}, nil
}

func (p *Parser) buildPay(m []string) (*domain.ParsedCommand, error) {
	amount, err := p.amount(m[1])
	if err != nil {
		return nil, err
	}
	recipient, err := p.phone(m[3])
	if err != nil {
		return nil, err
	}
	return &domain.ParsedCommand{
		Type:           domain.CmdPay,
		Amount:         amount,
		Currency:       p.currency(m[2], DefaultFiatCurrency),
		RecipientPhone: recipient,
		Note:           strings.TrimSpace(m[4]),
	}, nil
}

func (p *Parser) buildSell(m []string) (*domain.ParsedCommand, error) {
	amount, err := p.amount(m[1])
	if err != nil {
		return nil, err
	}
	return &domain.ParsedCommand{
		Type:     domain.CmdSell,
		Amount:   amount,
		Currency: p.currency(m[2], DefaultCryptoCurrency),
	}, nil
}

func (p *Parser) buildMerchantRegister(m []string) (*domain.ParsedCommand, error) {
	return &domain.ParsedCommand{
		Type:         domain.CmdMerchantRegister,
		BusinessName: strings.TrimSpace(m[1]),
	}, nil
}

func (p *Parser) buildRequest(m []string) (*domain.ParsedCommand, error) {
	amount, err := p.amount(m[1])
	if err != nil {
		return nil, err
	}
	payer, err := p.phone(m[3])
	if err != nil {
		return nil, err
	}
	return &domain.ParsedCommand{
		Type:       domain.CmdMerchantRequestPayment,
		Amount:     amount,
		Currency:   p.currency(m[2], DefaultFiatCurrency),
		PayerPhone: payer,
	}, nil
}

func (p *Parser) buildClubCreate(m []string) (*domain.ParsedCommand, error) {
	name := m[1]
	if name == "" {
		name = m[2]
	}
	if name == "" {
		name = m[3]
	}

	members, err := p.members(m[4])
	if err != nil {
		return nil, err
	}
	return &domain.ParsedCommand{
		Type:     domain.CmdClubCreate,
		ClubName: strings.TrimSpace(name),
		Members:  members,
	}, nil
}

func (p *Parser) buildDeposit(m []string) (*domain.ParsedCommand, error) {
	amount, err := p.amount(m[1])
	if err != nil {
		return nil, err
	}
	return &domain.ParsedCommand{
		Type:     domain.CmdClubDeposit,
		Amount:   amount,
		Currency: p.currency(m[2], DefaultCryptoCurrency),
		ClubName: strings.TrimSpace(m[3]),
	}, nil
}

func (p *Parser) buildPayout(m []string) (*domain.ParsedCommand, error) {
	amount, err := p.amount(m[1])
	if err != nil {
		return nil, err
	}
	recipient, err := p.phone(m[3])
	if err != nil {
		return nil, err
	}
	return &domain.ParsedCommand{
		Type:           domain.CmdClubProposePayout,
		Amount:         amount,
		Currency:       p.currency(m[2], DefaultCryptoCurrency),
		RecipientPhone: recipient,
		ClubName:       strings.TrimSpace(m[4]),
	}, nil
}

func (p *Parser) buildVote(m []string) (*domain.ParsedCommand, error) {
	return &domain.ParsedCommand{
		Type:       domain.CmdClubVote,
		ProposalID: strings.ToUpper(m[1]),
		Approve:    strings.EqualFold(m[2], "YES"),
	}, nil
}

// ============================================================
// Capture normalization
// ============================================================

var nonAmount = regexp.MustCompile(`[^0-9.]`)

// amount strips separators and parses a strictly positive decimal.
func (p *Parser) amount(raw string) (decimal.Decimal, error) {
	cleaned := nonAmount.ReplaceAllString(raw, "")
	value, err := decimal.NewFromString(cleaned)
	if err != nil || !value.IsPositive() {
		return decimal.Zero, domain.NewParseError(domain.ParseInvalidAmount,
			"Amount must be a positive number, e.g. PAY 500 INR to +919876543210.")
	}
	return value, nil
}

// currency uppercases the captured code, or falls back to def.
func (p *Parser) currency(raw, def string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return def
	}
	return code
}

// phone normalizes a captured MSISDN to E.164.
func (p *Parser) phone(raw string) (string, error) {
	normalized, err := phone.Normalize(raw, p.defaultCountry)
	if err != nil {
		return "", domain.NewParseError(domain.ParseInvalidPhoneNumber,
			"That phone number doesn't look right ("+err.Error()+"). Use international format like +919876543210.")
	}
	return normalized, nil
}

var memberSeparator = regexp.MustCompile(`(?i)\s*(?:,|\band\b)\s*`)

// members splits and normalizes a club member list; at least two distinct
// valid numbers are required.
func (p *Parser) members(raw string) ([]string, error) {
	parts := memberSeparator.Split(raw, -1)

	seen := make(map[string]bool)
	members := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		normalized, err := p.phone(part)
		if err != nil {
			return nil, err
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		members = append(members, normalized)
	}

	if len(members) < 2 {
		return nil, domain.NewParseError(domain.ParseInsufficientMembers,
			"A club needs at least 2 members. List them like: CREATE CLUB 'Friends' with +911111111111, +912222222222.")
	}
	return members, nil
}
