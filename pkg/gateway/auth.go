package gateway

import (
	"context"

	"github.com/harun/beacon/internal/observability"
)

// authenticate verifies an auth message and binds the session. A bad token
// closes the session after an error reply.
func (s *Server) authenticate(sess *Session, msg AuthMessage) bool {
	claims, err := s.verifier.Verify(msg.Token)
	if err != nil {
		s.metrics.RecordAuthFailure("ws")
		sess.logger.Warn().Err(err).Msg("Authentication failed")
		observability.RecordSecurityAudit(context.Background(), "ws_auth", "", observability.StatusFailure,
			map[string]any{"session_id": sess.ID, "ip": sess.RemoteAddr})
		sess.CloseWith(errorMessage("Invalid token"))
		return false
	}

	s.registry.Bind(sess, claims.Subject)
	sess.logger.Info().Str("user_id", claims.Subject.String()).Msg("Session authenticated")
	observability.RecordSecurityAudit(context.Background(), "ws_auth", claims.Subject.String(), observability.StatusSuccess,
		map[string]any{"session_id": sess.ID})

	if err := sess.Send(AuthSuccess{Type: TypeAuthSuccess, Message: "Connected"}); err != nil {
		sess.logger.Debug().Err(err).Msg("Failed to send auth result")
	}
	return true
}
