package services

import (
	"testing"

	"textpesa/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *Parser {
	return NewParser("+91")
}

func TestParsePay(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name      string
		input     string
		amount    string
		currency  string
		recipient string
		note      string
	}{
		{
			name:      "full form",
			input:     "PAY 500 INR to +919876543210",
			amount:    "500",
			currency:  "INR",
			recipient: "+919876543210",
		},
		{
			name:      "lowercase with thousands separator",
			input:     "pay 1,000.50 to +919876543210",
			amount:    "1000.5",
			currency:  "INR",
			recipient: "+919876543210",
		},
		{
			name:      "national number resolved against default country",
			input:     "PAY 50 to 09876543210",
			amount:    "50",
			currency:  "INR",
			recipient: "+919876543210",
		},
		{
			name:      "with note",
			input:     "PAY 200 INR to +919876543210 for lunch",
			amount:    "200",
			currency:  "INR",
			recipient: "+919876543210",
			note:      "lunch",
		},
		{
			name:      "pyusd payment",
			input:     "PAY 5 PYUSD to +919876543210",
			amount:    "5",
			currency:  "PYUSD",
			recipient: "+919876543210",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := p.Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, domain.CmdPay, cmd.Type)
			assert.True(t, cmd.Amount.Equal(decimal.RequireFromString(tt.amount)),
				"amount: got %s want %s", cmd.Amount, tt.amount)
			assert.Equal(t, tt.currency, cmd.Currency)
			assert.Equal(t, tt.recipient, cmd.RecipientPhone)
			assert.Equal(t, tt.note, cmd.Note)
		})
	}
}

func TestParseFixedKeywords(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		input string
		want  domain.CommandType
	}{
		{"BALANCE", domain.CmdBalance},
		{"bal", domain.CmdBalance},
		{"HELP", domain.CmdHelp},
		{"menu", domain.CmdHelp},
		{"STATUS", domain.CmdStatus},
		{"ACCEPT", domain.CmdAcceptLoan},
		{"accept loan", domain.CmdAcceptLoan},
		{"RETRY", domain.CmdRetry},
		{"REPORT", domain.CmdMerchantReport},
		{"RESET", domain.CmdReset},
		{"  balance  ", domain.CmdBalance},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, err := p.Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.Type)
		})
	}
}

func TestParseSell(t *testing.T) {
	p := newTestParser()

	cmd, err := p.Parse("SELL 10")
	require.NoError(t, err)
	assert.Equal(t, domain.CmdSell, cmd.Type)
	assert.True(t, cmd.Amount.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "PYUSD", cmd.Currency)

	cmd, err = p.Parse("sell 2.5 pyusd")
	require.NoError(t, err)
	assert.Equal(t, "PYUSD", cmd.Currency)
	assert.True(t, cmd.Amount.Equal(decimal.RequireFromString("2.5")))
}

func TestParsePinAndOtpEntries(t *testing.T) {
	p := newTestParser()

	cmd, err := p.Parse("1234")
	require.NoError(t, err)
	assert.Equal(t, domain.CmdPinEntry, cmd.Type)
	assert.Equal(t, "1234", cmd.Pin)

	cmd, err = p.Parse("482913")
	require.NoError(t, err)
	assert.Equal(t, domain.CmdOtpEntry, cmd.Type)
	assert.Equal(t, "482913", cmd.Otp)

	// five digits is neither a PIN nor an OTP
	_, err = p.Parse("12345")
	pe, ok := domain.AsParseError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ParseUnrecognized, pe.Kind)
}

func TestParseSetPin(t *testing.T) {
	p := newTestParser()

	cmd, err := p.Parse("SET PIN 4321")
	require.NoError(t, err)
	assert.Equal(t, domain.CmdSetPin, cmd.Type)
	assert.Equal(t, "4321", cmd.Pin)

	cmd, err = p.Parse("setpin 0000")
	require.NoError(t, err)
	assert.Equal(t, domain.CmdSetPin, cmd.Type)
	assert.Equal(t, "0000", cmd.Pin)
}

func TestParseMerchantCommands(t *testing.T) {
	p := newTestParser()

	cmd, err := p.Parse("MERCHANT REGISTER Chai Corner")
	require.NoError(t, err)
	assert.Equal(t, domain.CmdMerchantRegister, cmd.Type)
	assert.Equal(t, "Chai Corner", cmd.BusinessName)

	cmd, err = p.Parse("REQUEST 200 from +919812345678")
	require.NoError(t, err)
	assert.Equal(t, domain.CmdMerchantRequestPayment, cmd.Type)
	assert.True(t, cmd.Amount.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, "INR", cmd.Currency)
	assert.Equal(t, "+919812345678", cmd.PayerPhone)
}

func TestParseClubCommands(t *testing.T) {
	p := newTestParser()

	cmd, err := p.Parse("CREATE CLUB 'Friends' with +911111111111, +912222222222")
	require.NoError(t, err)
	assert.Equal(t, domain.CmdClubCreate, cmd.Type)
	assert.Equal(t, "Friends", cmd.ClubName)
	assert.Equal(t, []string{"+911111111111", "+912222222222"}, cmd.Members)

	cmd, err = p.Parse(`CREATE CLUB "Sunday Savers" with +911111111111 and +912222222222`)
	require.NoError(t, err)
	assert.Equal(t, "Sunday Savers", cmd.ClubName)
	assert.Len(t, cmd.Members, 2)

	// duplicate members collapse; fewer than two distinct is rejected
	_, err = p.Parse("CREATE CLUB 'Solo' with +911111111111, +911111111111")
	pe, ok := domain.AsParseError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ParseInsufficientMembers, pe.Kind)

	cmd, err = p.Parse("DEPOSIT 50")
	require.NoError(t, err)
	assert.Equal(t, domain.CmdClubDeposit, cmd.Type)
	assert.Equal(t, "PYUSD", cmd.Currency)
	assert.Empty(t, cmd.ClubName)

	cmd, err = p.Parse("DEPOSIT 50 PYUSD to Friends")
	require.NoError(t, err)
	assert.Equal(t, "Friends", cmd.ClubName)

	cmd, err = p.Parse("PAYOUT 100 to +911111111111")
	require.NoError(t, err)
	assert.Equal(t, domain.CmdClubProposePayout, cmd.Type)
	assert.Equal(t, "+911111111111", cmd.RecipientPhone)

	cmd, err = p.Parse("VOTE P-ABC123 yes")
	require.NoError(t, err)
	assert.Equal(t, domain.CmdClubVote, cmd.Type)
	assert.Equal(t, "P-ABC123", cmd.ProposalID)
	assert.True(t, cmd.Approve)

	cmd, err = p.Parse("VOTE P-ABC123 NO")
	require.NoError(t, err)
	assert.False(t, cmd.Approve)
}

func TestParseRejections(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name  string
		input string
		kind  domain.ParseErrorKind
	}{
		{"gibberish", "xyzzy", domain.ParseUnrecognized},
		{"empty", "", domain.ParseUnrecognized},
		{"zero amount", "PAY 0 INR to +919876543210", domain.ParseInvalidAmount},
		{"short phone", "PAY 500 to 12", domain.ParseInvalidPhoneNumber},
		{"missing recipient", "PAY 500", domain.ParseUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.input)
			pe, ok := domain.AsParseError(err)
			require.True(t, ok, "expected a parse error, got %v", err)
			assert.Equal(t, tt.kind, pe.Kind)
			assert.NotEmpty(t, pe.Hint)
		})
	}
}
