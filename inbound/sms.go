package inbound

import (
	"context"
	"net/http"
	"strings"

	"github.com/goliatone/go-leads/core"
)

// ReplyService is the slice of the lead service the SMS surface needs.
type ReplyService interface {
	HandleReply(ctx context.Context, fromPhone string, text string) (core.ReplyResult, error)
}

// SMSReplyHandler feeds carrier-delivered text replies into the reply
// interpreters. Unmatched senders are accepted with a 204 so the carrier
// does not retry messages nobody is waiting for.
type SMSReplyHandler struct {
	service ReplyService
}

func NewSMSReplyHandler(service ReplyService) (*SMSReplyHandler, error) {
	if service == nil {
		return nil, inboundBadInput("inbound: reply service is required", nil)
	}
	return &SMSReplyHandler{service: service}, nil
}

func (h *SMSReplyHandler) Surface() string {
	return SurfaceSMS
}

func (h *SMSReplyHandler) Handle(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if h == nil || h.service == nil {
		return core.InboundResult{}, inboundInternal("inbound: sms handler is not configured", nil)
	}
	from := strings.TrimSpace(req.From)
	if from == "" {
		return core.InboundResult{}, inboundBadInput("inbound: sender phone is required", map[string]any{
			"surface": SurfaceSMS,
		})
	}
	text := strings.TrimSpace(string(req.Body))

	reply, err := h.service.HandleReply(ctx, from, text)
	if err != nil {
		return core.InboundResult{}, err
	}
	if !reply.Handled {
		return core.InboundResult{
			Accepted:   true,
			StatusCode: http.StatusNoContent,
			Metadata:   map[string]any{"handled": false},
		}, nil
	}
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata: map[string]any{
			"handled": true,
			"action":  reply.Action,
		},
	}, nil
}

var _ core.InboundHandler = (*SMSReplyHandler)(nil)
