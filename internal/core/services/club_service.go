package services

import (
	"context"
	"fmt"
	"strings"

	"textpesa/internal/adapters/events"
	"textpesa/internal/adapters/persistence/models"
	"textpesa/internal/adapters/persistence/repositories"
	"textpesa/internal/core/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClubService executes the savings-club commands: creating a club, depositing
// into the shared pot, proposing payouts and voting on them. A payout
// executes the moment a strict majority of members has voted yes.
type ClubService struct {
	clubs     repositories.ClubRepository
	users     repositories.UserRepository
	txs       repositories.TransactionRepository
	outbox    *OutboxService
	publisher events.Publisher
	logger    *zap.SugaredLogger
}

// NewClubService creates the club handlers.
func NewClubService(
	clubs repositories.ClubRepository,
	users repositories.UserRepository,
	txs repositories.TransactionRepository,
	outbox *OutboxService,
	publisher events.Publisher,
	logger *zap.SugaredLogger,
) *ClubService {
	return &ClubService{
		clubs:     clubs,
		users:     users,
		txs:       txs,
		outbox:    outbox,
		publisher: publisher,
		logger:    logger,
	}
}

// Create creates a savings club with the listed members. The creator is
// always a member, listed or not. Every member is invited by SMS.
func (s *ClubService) Create(ctx context.Context, phoneNumber string, cmd *domain.ParsedCommand) (string, error) {
	existing, err := s.clubs.GetByName(ctx, cmd.ClubName)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return fmt.Sprintf("A club named '%s' already exists. Pick another name.", cmd.ClubName), nil
	}

	members := cmd.Members
	if !contains(members, phoneNumber) {
		members = append([]string{phoneNumber}, members...)
	}

	club := &models.SavingsClub{
		Name:         cmd.ClubName,
		CreatorPhone: phoneNumber,
		Currency:     cmd.Currency,
	}
	if club.Currency == "" {
		club.Currency = DefaultCryptoCurrency
	}
	if err := s.clubs.Create(ctx, club, members); err != nil {
		return "", err
	}

	for _, member := range members {
		if member == phoneNumber {
			continue
		}
		s.outbox.AddMessage(member,
			fmt.Sprintf("%s added you to savings club '%s'. Reply DEPOSIT 10 to contribute.", phoneNumber, club.Name),
			domain.PriorityLow)
	}

	s.logger.Infow("club created", "name", club.Name, "creator", phoneNumber, "members", len(members))
	return fmt.Sprintf("Club '%s' created with %d members. Reply DEPOSIT 10 to contribute.",
		club.Name, len(members)), nil
}

// Deposit moves funds from the sender's wallet into the club pot. With no
// club named, the sender's most recently joined club is used.
func (s *ClubService) Deposit(ctx context.Context, phoneNumber string, cmd *domain.ParsedCommand) (string, error) {
	club, msg, err := s.resolveClub(ctx, phoneNumber, cmd.ClubName)
	if club == nil {
		return msg, err
	}
	if cmd.Currency != club.Currency {
		return fmt.Sprintf("Club '%s' holds %s. Reply DEPOSIT %s %s.",
			club.Name, club.Currency, cmd.Amount.String(), club.Currency), nil
	}

	debited := false
	err = s.users.Update(ctx, phoneNumber, func(user *models.User) error {
		balance := balanceFor(user, club.Currency)
		if balance.LessThan(cmd.Amount) {
			return nil
		}
		setBalance(user, club.Currency, balance.Sub(cmd.Amount))
		debited = true
		return nil
	})
	if err != nil {
		return "", err
	}
	if !debited {
		return fmt.Sprintf("Deposit failed: you don't have %s %s. Reply BALANCE to check your wallet.",
			cmd.Amount.StringFixed(2), club.Currency), nil
	}

	var newBalance string
	err = s.clubs.UpdateBalance(ctx, club.ID, func(c *models.SavingsClub) error {
		c.Balance = c.Balance.Add(cmd.Amount)
		newBalance = c.Balance.StringFixed(2)
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Infow("club deposit", "club", club.Name, "phone", phoneNumber, "amount", cmd.Amount)
	return fmt.Sprintf("Deposited %s %s into '%s'. Club balance: %s %s.",
		cmd.Amount.StringFixed(2), club.Currency, club.Name, newBalance, club.Currency), nil
}

// ProposePayout opens a payout proposal and asks every member to vote on it.
func (s *ClubService) ProposePayout(ctx context.Context, phoneNumber string, cmd *domain.ParsedCommand) (string, error) {
	club, msg, err := s.resolveClub(ctx, phoneNumber, cmd.ClubName)
	if club == nil {
		return msg, err
	}
	if club.Balance.LessThan(cmd.Amount) {
		return fmt.Sprintf("Club '%s' only holds %s %s.", club.Name, club.Balance.StringFixed(2), club.Currency), nil
	}

	code, err := shortCode("P")
	if err != nil {
		return "", err
	}
	proposal := &models.PayoutProposal{
		Code:           code,
		ClubID:         club.ID,
		ProposerPhone:  phoneNumber,
		RecipientPhone: cmd.RecipientPhone,
		Amount:         cmd.Amount,
		Status:         models.ProposalOpen,
	}
	if err := s.clubs.CreateProposal(ctx, proposal); err != nil {
		return "", err
	}

	members, err := s.clubs.Members(ctx, club.ID)
	if err != nil {
		return "", err
	}
	ballot := fmt.Sprintf("'%s' payout proposal %s: %s %s to %s. Reply VOTE %s YES or VOTE %s NO.",
		club.Name, code, cmd.Amount.StringFixed(2), club.Currency, cmd.RecipientPhone, code, code)
	for _, member := range members {
		if member.Phone == phoneNumber {
			continue
		}
		s.outbox.AddMessage(member.Phone, ballot, domain.PriorityNormal)
	}

	s.logger.Infow("payout proposed", "club", club.Name, "code", code, "amount", cmd.Amount, "recipient", cmd.RecipientPhone)
	return fmt.Sprintf("Proposal %s opened: %s %s to %s. Members are voting now.",
		code, cmd.Amount.StringFixed(2), club.Currency, cmd.RecipientPhone), nil
}

// Vote records the sender's vote on an open proposal and executes or rejects
// the payout once the tally is decisive for the club's membership.
func (s *ClubService) Vote(ctx context.Context, phoneNumber string, cmd *domain.ParsedCommand) (string, error) {
	proposal, err := s.clubs.GetProposalByCode(ctx, cmd.ProposalID)
	if err != nil {
		return "", err
	}
	if proposal == nil {
		return fmt.Sprintf("No proposal %s found. Check the code and try again.", cmd.ProposalID), nil
	}
	if proposal.Status != models.ProposalOpen {
		return fmt.Sprintf("Proposal %s is already %s.", proposal.Code, strings.ToLower(proposal.Status)), nil
	}

	club, err := s.clubs.GetByID(ctx, proposal.ClubID)
	if err != nil {
		return "", err
	}
	isMember, err := s.clubs.IsMember(ctx, club.ID, phoneNumber)
	if err != nil {
		return "", err
	}
	if !isMember {
		return fmt.Sprintf("You're not a member of '%s'.", club.Name), nil
	}
	voted, err := s.clubs.HasVoted(ctx, proposal.ID, phoneNumber)
	if err != nil {
		return "", err
	}
	if voted {
		return fmt.Sprintf("You already voted on %s.", proposal.Code), nil
	}

	vote := &models.ProposalVote{ProposalID: proposal.ID, Phone: phoneNumber, Approve: cmd.Approve}
	if err := s.clubs.CreateVote(ctx, vote); err != nil {
		return "", err
	}

	yes, no, err := s.clubs.CountVotes(ctx, proposal.ID)
	if err != nil {
		return "", err
	}
	total, err := s.clubs.MemberCount(ctx, club.ID)
	if err != nil {
		return "", err
	}
	majority := total/2 + 1

	switch {
	case yes >= majority:
		if err := s.execute(ctx, club, proposal); err != nil {
			return "", err
		}
		return fmt.Sprintf("Vote recorded. Proposal %s approved and paid out.", proposal.Code), nil
	case no >= majority || yes+no == total:
		if err := s.clubs.UpdateProposalStatus(ctx, proposal.ID, models.ProposalRejected); err != nil {
			return "", err
		}
		s.notifyMembers(ctx, club,
			fmt.Sprintf("'%s' proposal %s was rejected (%d yes, %d no).", club.Name, proposal.Code, yes, no))
		return fmt.Sprintf("Vote recorded. Proposal %s rejected.", proposal.Code), nil
	}

	return fmt.Sprintf("Vote recorded for %s (%d yes, %d no of %d members).",
		proposal.Code, yes, no, total), nil
}

// execute pays an approved proposal out of the club pot into the recipient's
// wallet.
func (s *ClubService) execute(ctx context.Context, club *models.SavingsClub, proposal *models.PayoutProposal) error {
	paid := false
	err := s.clubs.UpdateBalance(ctx, club.ID, func(c *models.SavingsClub) error {
		if c.Balance.LessThan(proposal.Amount) {
			return nil
		}
		c.Balance = c.Balance.Sub(proposal.Amount)
		paid = true
		return nil
	})
	if err != nil {
		return err
	}
	if !paid {
		s.logger.Warnw("approved payout exceeds pot, rejecting", "club", club.Name, "code", proposal.Code)
		return s.clubs.UpdateProposalStatus(ctx, proposal.ID, models.ProposalRejected)
	}

	if _, err := s.users.FindOrCreate(ctx, proposal.RecipientPhone); err != nil {
		return err
	}
	err = s.users.Update(ctx, proposal.RecipientPhone, func(user *models.User) error {
		setBalance(user, club.Currency, balanceFor(user, club.Currency).Add(proposal.Amount))
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.clubs.UpdateProposalStatus(ctx, proposal.ID, models.ProposalApproved); err != nil {
		return err
	}

	ref := uuid.NewString()
	tx := &models.Transaction{
		Ref:      ref,
		Type:     models.TxTypeClubPayout,
		ToPhone:  proposal.RecipientPhone,
		Amount:   proposal.Amount,
		Currency: club.Currency,
		Note:     club.Name,
		Status:   models.TxCompleted,
	}
	if err := s.txs.Create(ctx, tx); err != nil {
		s.logger.Errorw("failed to record payout transaction", "ref", ref, "error", err)
	}
	s.publisher.Publish(ctx, events.Event{
		Type: events.ClubPayout, Phone: proposal.RecipientPhone, Ref: ref,
		Amount: proposal.Amount.String(), Currency: club.Currency, Detail: club.Name,
	})

	s.outbox.AddMessage(proposal.RecipientPhone,
		fmt.Sprintf("'%s' paid you %s %s (proposal %s).", club.Name, proposal.Amount.StringFixed(2), club.Currency, proposal.Code),
		domain.PriorityNormal)
	s.notifyMembers(ctx, club,
		fmt.Sprintf("'%s' proposal %s approved: %s %s paid to %s.",
			club.Name, proposal.Code, proposal.Amount.StringFixed(2), club.Currency, proposal.RecipientPhone))

	s.logger.Infow("payout executed", "club", club.Name, "code", proposal.Code, "amount", proposal.Amount)
	return nil
}

// resolveClub finds the club a command targets and checks membership. When
// club is nil the caller returns msg/err as-is.
func (s *ClubService) resolveClub(ctx context.Context, phoneNumber, name string) (*models.SavingsClub, string, error) {
	var club *models.SavingsClub
	var err error
	if name != "" {
		club, err = s.clubs.GetByName(ctx, name)
		if err != nil {
			return nil, "", err
		}
		if club == nil {
			return nil, fmt.Sprintf("No club named '%s' found.", name), nil
		}
	} else {
		club, err = s.clubs.LatestClubForMember(ctx, phoneNumber)
		if err != nil {
			return nil, "", err
		}
		if club == nil {
			return nil, "You're not in a savings club yet. CREATE CLUB 'Name' with +91..., +91... to start one.", nil
		}
	}

	isMember, err := s.clubs.IsMember(ctx, club.ID, phoneNumber)
	if err != nil {
		return nil, "", err
	}
	if !isMember {
		return nil, fmt.Sprintf("You're not a member of '%s'.", club.Name), nil
	}
	return club, "", nil
}

func (s *ClubService) notifyMembers(ctx context.Context, club *models.SavingsClub, body string) {
	members, err := s.clubs.Members(ctx, club.ID)
	if err != nil {
		s.logger.Warnw("failed to list members for notification", "club", club.Name, "error", err)
		return
	}
	for _, member := range members {
		s.outbox.AddMessage(member.Phone, body, domain.PriorityLow)
	}
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
