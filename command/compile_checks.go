package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[CreateUnlockMessage]          = (*CreateUnlockCommand)(nil)
	_ gocmd.Commander[SendTeaserMessage]            = (*SendTeaserCommand)(nil)
	_ gocmd.Commander[RecordAcceptanceMessage]      = (*RecordAcceptanceCommand)(nil)
	_ gocmd.Commander[MarkPaidMessage]              = (*MarkPaidCommand)(nil)
	_ gocmd.Commander[RevealMessage]                = (*RevealCommand)(nil)
	_ gocmd.Commander[ExpireUnlockMessage]          = (*ExpireUnlockCommand)(nil)
	_ gocmd.Commander[DeclineUnlockMessage]         = (*DeclineUnlockCommand)(nil)
	_ gocmd.Commander[RequeueLeadMessage]           = (*RequeueLeadCommand)(nil)
	_ gocmd.Commander[HandleReplyMessage]           = (*HandleReplyCommand)(nil)
	_ gocmd.Commander[VerifyPaymentFallbackMessage] = (*VerifyPaymentFallbackCommand)(nil)
)
