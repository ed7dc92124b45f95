package core

var (
	_ FollowUpProcessor = (*ClientFollowUpEngine)(nil)
	_ FollowUpProcessor = (*ProviderNudgeEngine)(nil)
	_ FollowUpProcessor = (*ContactCheckinEngine)(nil)
	_ LeadRequeuer      = (*Service)(nil)
	_ ConfigProvider    = (*CfgxConfigProvider)(nil)
	_ OptionsResolver   = GoOptionsResolver{}
	_ RawConfigLoader   = staticRawConfigLoader{}
)
