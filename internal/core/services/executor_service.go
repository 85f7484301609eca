package services

import (
	"context"
	"fmt"

	"textpesa/internal/core/domain"
	"textpesa/internal/pkg/phone"

	"go.uber.org/zap"
)

const helpText = "TextPesa commands:\n" +
	"PAY 500 INR to +919876543210 - send money\n" +
	"SELL 10 - convert PYUSD to INR\n" +
	"BALANCE - check your wallet\n" +
	"STATUS - last transaction\n" +
	"ACCEPT - accept a loan offer\n" +
	"RETRY - retry your last failed payment\n" +
	"MERCHANT REGISTER <name> | REQUEST 200 from +91... | REPORT\n" +
	"CREATE CLUB 'Name' with +91..., +91... | DEPOSIT 50 | PAYOUT 100 to +91... | VOTE <id> YES\n" +
	"SET PIN 1234 | RESET"

const msgExecutionFailed = "Sorry, your %s could not be completed right now. Please try again later."
const msgNotAvailable = "That feature isn't available yet. Reply HELP for the menu."

// ExecutorService is the top of the inbound pipeline: it parses each SMS,
// routes it through the session state machine when the command needs the
// OTP+PIN challenge, and dispatches authorized commands to their handlers.
// Every inbound message yields at least one queued reply.
type ExecutorService struct {
	parser   *Parser
	users    UserStore
	sessions *SessionService
	outbox   *OutboxService
	handlers map[domain.CommandType]Handler
	logger   *zap.SugaredLogger
}

// NewExecutorService creates the command executor. Handlers are attached
// afterwards with Register.
func NewExecutorService(parser *Parser, users UserStore, sessions *SessionService, outbox *OutboxService, logger *zap.SugaredLogger) *ExecutorService {
	return &ExecutorService{
		parser:   parser,
		users:    users,
		sessions: sessions,
		outbox:   outbox,
		handlers: make(map[domain.CommandType]Handler),
		logger:   logger,
	}
}

// Register attaches the handler for one command variant.
func (e *ExecutorService) Register(t domain.CommandType, h Handler) {
	e.handlers[t] = h
}

// HandleMessage processes one inbound SMS end to end. It never returns an
// error to the webhook caller for user mistakes — those become reply SMS.
func (e *ExecutorService) HandleMessage(ctx context.Context, from, body string) {
	sender, err := phone.Normalize(from, e.parser.defaultCountry)
	if err != nil {
		e.logger.Warnw("inbound from unusable number", "from", from, "error", err)
		return
	}

	cmd, err := e.parser.Parse(body)
	if err != nil {
		if pe, ok := domain.AsParseError(err); ok {
			e.logger.Debugw("unparseable message", "from", sender, "kind", pe.Kind)
			e.outbox.AddMessage(sender, pe.Hint, domain.PriorityNormal)
			return
		}
		e.logger.Errorw("parser failure", "from", sender, "error", err)
		e.outbox.AddMessage(sender, unrecognizedHint, domain.PriorityNormal)
		return
	}

	if _, err := e.users.FindOrCreate(ctx, sender); err != nil {
		e.logger.Errorw("user lookup failed", "from", sender, "error", err)
		e.outbox.AddMessage(sender, fmt.Sprintf(msgExecutionFailed, cmd.Label()), domain.PriorityNormal)
		return
	}

	e.logger.Infow("command received", "from", sender, "command", cmd.Type)

	switch cmd.Type {
	case domain.CmdHelp:
		e.outbox.AddMessage(sender, helpText, domain.PriorityLow)

	case domain.CmdReset:
		replies, err := e.sessions.Reset(ctx, sender)
		e.relay(sender, cmd, replies, err)

	case domain.CmdSetPin:
		replies, err := e.sessions.SetPin(ctx, sender, cmd.Pin)
		e.relay(sender, cmd, replies, err)

	case domain.CmdOtpEntry:
		replies, err := e.sessions.SubmitOtp(ctx, sender, cmd.Otp)
		e.relay(sender, cmd, replies, err)

	case domain.CmdPinEntry:
		pending, replies, err := e.sessions.SubmitPin(ctx, sender, cmd.Pin)
		e.relay(sender, cmd, replies, err)
		if pending != nil {
			e.dispatch(ctx, sender, pending)
		}

	default:
		if cmd.RequiresAuth() {
			replies, err := e.sessions.BeginChallenge(ctx, sender, cmd)
			e.relay(sender, cmd, replies, err)
			return
		}
		e.dispatch(ctx, sender, cmd)
	}
}

// relay queues the replies produced by a session transition, substituting a
// generic failure message when the transition itself errored.
func (e *ExecutorService) relay(sender string, cmd *domain.ParsedCommand, replies []Reply, err error) {
	if err != nil {
		e.logger.Errorw("session transition failed", "from", sender, "command", cmd.Type, "error", err)
		e.outbox.AddMessage(sender, fmt.Sprintf(msgExecutionFailed, cmd.Label()), domain.PriorityNormal)
		return
	}
	for _, r := range replies {
		to := r.To
		if to == "" {
			to = sender
		}
		e.outbox.AddMessage(to, r.Body, r.Priority)
	}
}

// dispatch runs a fully-authorized command through its handler. A handler
// panic or error is contained here: the user gets a generic failure SMS and
// the pipeline keeps serving other messages.
func (e *ExecutorService) dispatch(ctx context.Context, sender string, cmd *domain.ParsedCommand) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorw("handler panicked", "from", sender, "command", cmd.Type, "panic", r)
			e.outbox.AddMessage(sender, fmt.Sprintf(msgExecutionFailed, cmd.Label()), domain.PriorityNormal)
		}
	}()

	handler, ok := e.handlers[cmd.Type]
	if !ok {
		e.logger.Warnw("no handler registered", "command", cmd.Type)
		e.outbox.AddMessage(sender, msgNotAvailable, domain.PriorityNormal)
		return
	}

	reply, err := handler.Handle(ctx, sender, cmd)
	if err != nil {
		e.logger.Errorw("command failed", "from", sender, "command", cmd.Type, "error", err)
		e.outbox.AddMessage(sender, fmt.Sprintf(msgExecutionFailed, cmd.Label()), domain.PriorityNormal)
		return
	}
	e.outbox.AddMessage(sender, reply, domain.PriorityNormal)
}
