package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-leads/core"
)

type MutatingService interface {
	CreateUnlock(ctx context.Context, leadID string, providerID string) (core.CreateUnlockResult, error)
	SendTeaser(ctx context.Context, unlockID string) (core.Unlock, error)
	RecordAcceptance(ctx context.Context, req core.AcceptanceRequest) (core.AcceptanceResult, error)
	MarkPaid(ctx context.Context, req core.MarkPaidRequest) (core.Unlock, error)
	Reveal(ctx context.Context, unlockID string) (core.Unlock, error)
	ExpireUnlock(ctx context.Context, unlockID string) (core.Unlock, error)
	DeclineUnlock(ctx context.Context, unlockID string) (core.Unlock, error)
	RequeueLead(ctx context.Context, leadID string) (core.RequeueResult, error)
	HandleReply(ctx context.Context, fromPhone string, text string) (core.ReplyResult, error)
	VerifyPaymentFallback(ctx context.Context, req core.PaymentFallbackRequest) (core.PaymentFallbackResult, error)
}

type CreateUnlockCommand struct {
	service MutatingService
}

func NewCreateUnlockCommand(service MutatingService) *CreateUnlockCommand {
	return &CreateUnlockCommand{service: service}
}

func (c *CreateUnlockCommand) Execute(ctx context.Context, msg CreateUnlockMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: unlock service is required")
	}
	out, err := c.service.CreateUnlock(ctx, msg.LeadID, msg.ProviderID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SendTeaserCommand struct {
	service MutatingService
}

func NewSendTeaserCommand(service MutatingService) *SendTeaserCommand {
	return &SendTeaserCommand{service: service}
}

func (c *SendTeaserCommand) Execute(ctx context.Context, msg SendTeaserMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: teaser service is required")
	}
	out, err := c.service.SendTeaser(ctx, msg.UnlockID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RecordAcceptanceCommand struct {
	service MutatingService
}

func NewRecordAcceptanceCommand(service MutatingService) *RecordAcceptanceCommand {
	return &RecordAcceptanceCommand{service: service}
}

func (c *RecordAcceptanceCommand) Execute(ctx context.Context, msg RecordAcceptanceMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: acceptance service is required")
	}
	out, err := c.service.RecordAcceptance(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type MarkPaidCommand struct {
	service MutatingService
}

func NewMarkPaidCommand(service MutatingService) *MarkPaidCommand {
	return &MarkPaidCommand{service: service}
}

func (c *MarkPaidCommand) Execute(ctx context.Context, msg MarkPaidMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: payment service is required")
	}
	out, err := c.service.MarkPaid(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RevealCommand struct {
	service MutatingService
}

func NewRevealCommand(service MutatingService) *RevealCommand {
	return &RevealCommand{service: service}
}

func (c *RevealCommand) Execute(ctx context.Context, msg RevealMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: reveal service is required")
	}
	out, err := c.service.Reveal(ctx, msg.UnlockID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ExpireUnlockCommand struct {
	service MutatingService
}

func NewExpireUnlockCommand(service MutatingService) *ExpireUnlockCommand {
	return &ExpireUnlockCommand{service: service}
}

func (c *ExpireUnlockCommand) Execute(ctx context.Context, msg ExpireUnlockMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: unlock service is required")
	}
	out, err := c.service.ExpireUnlock(ctx, msg.UnlockID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeclineUnlockCommand struct {
	service MutatingService
}

func NewDeclineUnlockCommand(service MutatingService) *DeclineUnlockCommand {
	return &DeclineUnlockCommand{service: service}
}

func (c *DeclineUnlockCommand) Execute(ctx context.Context, msg DeclineUnlockMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: unlock service is required")
	}
	out, err := c.service.DeclineUnlock(ctx, msg.UnlockID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RequeueLeadCommand struct {
	service MutatingService
}

func NewRequeueLeadCommand(service MutatingService) *RequeueLeadCommand {
	return &RequeueLeadCommand{service: service}
}

func (c *RequeueLeadCommand) Execute(ctx context.Context, msg RequeueLeadMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: requeue service is required")
	}
	out, err := c.service.RequeueLead(ctx, msg.LeadID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type HandleReplyCommand struct {
	service MutatingService
}

func NewHandleReplyCommand(service MutatingService) *HandleReplyCommand {
	return &HandleReplyCommand{service: service}
}

func (c *HandleReplyCommand) Execute(ctx context.Context, msg HandleReplyMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: reply service is required")
	}
	out, err := c.service.HandleReply(ctx, msg.FromPhone, msg.Text)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type VerifyPaymentFallbackCommand struct {
	service MutatingService
}

func NewVerifyPaymentFallbackCommand(service MutatingService) *VerifyPaymentFallbackCommand {
	return &VerifyPaymentFallbackCommand{service: service}
}

func (c *VerifyPaymentFallbackCommand) Execute(ctx context.Context, msg VerifyPaymentFallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: payment fallback service is required")
	}
	out, err := c.service.VerifyPaymentFallback(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
