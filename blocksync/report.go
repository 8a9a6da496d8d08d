package blocksync

import (
	"context"
	"fmt"

	"github.com/bluesky-social/indigo/api/atproto"
)

// ReasonSpam and friends are the moderation reason types the report endpoint
// accepts.
const (
	ReasonSpam       = "com.atproto.moderation.defs#reasonSpam"
	ReasonViolation  = "com.atproto.moderation.defs#reasonViolation"
	ReasonMisleading = "com.atproto.moderation.defs#reasonMisleading"
	ReasonHarassment = "com.atproto.moderation.defs#reasonRude"
	ReasonOther      = "com.atproto.moderation.defs#reasonOther"
)

// ReportUser files a moderation report against the account.
func (g *Engine) ReportUser(ctx context.Context, userHandle, reasonType, reason string) error {
	if reasonType == "" {
		reasonType = ReasonOther
	}

	if !g.rl.CanMakeRequest(costMutation) {
		if wait := g.rl.TimeUntilReset(); wait > 0 {
			g.bus.emit(RateLimitEvent{WaitMs: wait.Milliseconds()})
			rateLimitWaits.Inc()
			return fmt.Errorf("rate limited for %s", wait)
		}
	}

	did, err := g.resolveDid(ctx, userHandle)
	if err != nil {
		if isAuthError(err) {
			g.sessionExpired()
			return ErrSessionExpired
		}
		g.bus.emit(ErrorEvent{Message: fmt.Sprintf("could not resolve @%s: %s", userHandle, err)})
		return err
	}

	_, err = atproto.ModerationCreateReport(ctx, g.GetClient(), &atproto.ModerationCreateReport_Input{
		ReasonType: &reasonType,
		Reason:     &reason,
		Subject: &atproto.ModerationCreateReport_Input_Subject{
			AdminDefs_RepoRef: &atproto.AdminDefs_RepoRef{
				Did: did,
			},
		},
	})
	if err != nil {
		if isAuthError(err) {
			g.sessionExpired()
			return ErrSessionExpired
		}
		g.logger.Error("report failed", "handle", userHandle, "error", err)
		g.bus.emit(ErrorEvent{Message: fmt.Sprintf("failed to report @%s: %s", userHandle, err)})
		return err
	}

	g.logger.Info("reported user", "handle", userHandle, "reason-type", reasonType)
	g.bus.emit(NoticeEvent{Message: fmt.Sprintf("reported @%s", NormalizeHandle(userHandle))})
	return nil
}
