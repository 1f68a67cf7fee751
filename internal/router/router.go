// Package router forwards completed questions to the reviewer chat and
// routes reviewer replies back to the user who asked.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lawrelay/lawyer-bot/internal/format"
	"github.com/lawrelay/lawyer-bot/internal/models"
	"github.com/lawrelay/lawyer-bot/internal/store"
)

var (
	ErrForward  = errors.New("could not forward submission")
	ErrDelivery = errors.New("could not deliver reply")
)

// Message is one outbound chat message. ReplyTo is 0 for a plain message.
type Message struct {
	ChatID   int64
	Text     string
	ReplyTo  int
	Keyboard bool // attach the "new question" reply keyboard
}

// Sender delivers a message and returns the id the chat assigned to it.
type Sender interface {
	Send(ctx context.Context, msg Message) (int, error)
}

// Reply is a message posted in the reviewer chat. ReplyTo is the id of the
// message it quotes, or 0 when it is not a reply.
type Reply struct {
	MessageID int
	ReplyTo   int
	Text      string
}

type Outcome string

const (
	OutcomeDelivered      Outcome = "delivered"
	OutcomeNotReply       Outcome = "not_reply"
	OutcomeNotFound       Outcome = "not_found"
	OutcomeEmptyReply     Outcome = "empty_reply"
	OutcomeDeliveryFailed Outcome = "delivery_failed"
)

type Router struct {
	store        store.Store
	sender       Sender
	reviewerChat int64
	log          *slog.Logger
	now          func() time.Time
	locks        keyLocks
}

type Config struct {
	Store        store.Store
	Sender       Sender
	ReviewerChat int64
	Logger       *slog.Logger
}

func New(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		store:        cfg.Store,
		sender:       cfg.Sender,
		reviewerChat: cfg.ReviewerChat,
		log:          logger.With("component", "router"),
		now:          time.Now,
	}
}

// Forward posts the draft to the reviewer chat and records it as pending.
// Nothing is stored when the post fails. Any failure wraps ErrForward.
func (r *Router) Forward(ctx context.Context, d models.Draft) (models.Submission, error) {
	if strings.TrimSpace(d.Question) == "" || d.Phone == "" {
		return models.Submission{}, fmt.Errorf("%w: incomplete draft", ErrForward)
	}

	msgID, err := r.sender.Send(ctx, Message{ChatID: r.reviewerChat, Text: format.Forward(d)})
	if err != nil {
		return models.Submission{}, fmt.Errorf("%w: send: %v", ErrForward, err)
	}

	sub := models.Submission{
		ForwardID:     strconv.Itoa(msgID),
		RequesterID:   d.RequesterID,
		RequesterName: d.RequesterName,
		Question:      d.Question,
		Phone:         d.Phone,
		CreatedAt:     r.now().UTC(),
	}

	unlock := r.locks.lock(sub.ForwardID)
	defer unlock()
	if err := r.store.Put(ctx, sub); err != nil {
		// The question is already visible to reviewers but replies to it
		// cannot be routed.
		r.log.Error("forwarded submission was not stored",
			"forward_id", sub.ForwardID, "requester_id", sub.RequesterID, "error", err)
		return models.Submission{}, fmt.Errorf("%w: store: %v", ErrForward, err)
	}

	r.log.Info("submission forwarded", "forward_id", sub.ForwardID, "requester_id", sub.RequesterID)
	return sub, nil
}

// RouteReply delivers a reviewer reply to the requester of the quoted
// submission. The submission is retired only after the delivery succeeded,
// so a failed delivery can be retried by replying again.
func (r *Router) RouteReply(ctx context.Context, reply Reply) (Outcome, error) {
	if reply.ReplyTo == 0 {
		return OutcomeNotReply, r.notice(ctx, reply.MessageID, format.UseReply)
	}

	forwardID := strconv.Itoa(reply.ReplyTo)
	unlock := r.locks.lock(forwardID)
	defer unlock()

	sub, ok, err := r.store.Get(ctx, forwardID)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", forwardID, err)
	}
	if !ok {
		return OutcomeNotFound, r.notice(ctx, reply.MessageID, format.NotFound)
	}

	if strings.TrimSpace(reply.Text) == "" {
		return OutcomeEmptyReply, r.notice(ctx, reply.MessageID, format.EmptyAnswer)
	}

	if _, err := r.sender.Send(ctx, Message{ChatID: sub.RequesterID, Text: format.Answer(reply.Text)}); err != nil {
		r.log.Warn("reply delivery failed", "forward_id", forwardID, "requester_id", sub.RequesterID, "error", err)
		if nerr := r.notice(ctx, reply.MessageID, format.DeliveryFailed); nerr != nil {
			r.log.Error("failed to post delivery notice", "error", nerr)
		}
		return OutcomeDeliveryFailed, fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	if err := r.store.Delete(ctx, forwardID); err != nil {
		return OutcomeDelivered, fmt.Errorf("retire %s: %w", forwardID, err)
	}

	r.log.Info("reply delivered", "forward_id", forwardID, "requester_id", sub.RequesterID)
	return OutcomeDelivered, nil
}

// Pending returns the submissions still waiting for a reply, oldest first.
func (r *Router) Pending(ctx context.Context) ([]models.Submission, error) {
	all, err := r.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	subs := make([]models.Submission, 0, len(all))
	for _, s := range all {
		subs = append(subs, s)
	}
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].CreatedAt.Before(subs[j].CreatedAt)
		}
		return subs[i].ForwardID < subs[j].ForwardID
	})
	return subs, nil
}

// ReviewerChat is the chat questions are forwarded to.
func (r *Router) ReviewerChat() int64 {
	return r.reviewerChat
}

func (r *Router) notice(ctx context.Context, replyTo int, text string) error {
	_, err := r.sender.Send(ctx, Message{ChatID: r.reviewerChat, Text: text, ReplyTo: replyTo})
	if err != nil {
		return fmt.Errorf("post notice: %w", err)
	}
	return nil
}
