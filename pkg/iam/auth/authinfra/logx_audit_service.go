package authinfra

import (
	"context"
	"time"

	"github.com/Abraxas-365/identity/pkg/iam/auth"
	"github.com/Abraxas-365/identity/pkg/kernel"
	"github.com/Abraxas-365/identity/pkg/logx"
)

// LogxAuditService implements auth.AuditService using structured logx logging.
type LogxAuditService struct{}

var _ auth.AuditService = (*LogxAuditService)(nil)

func NewLogxAuditService() *LogxAuditService {
	return &LogxAuditService{}
}

func (s *LogxAuditService) LogGrantAttempt(ctx context.Context, grantType, subject string, success bool, ip string) {
	logx.WithContext(ctx).WithFields(logx.Fields{
		"audit_event": "grant_attempt",
		"grant_type":  grantType,
		"subject":     subject,
		"success":     success,
		"ip":          ip,
		"timestamp":   time.Now(),
	}).Info("Audit: grant attempt")
}

func (s *LogxAuditService) LogPairingTokenIssued(ctx context.Context, connID kernel.ConnectionID) {
	logx.WithContext(ctx).WithFields(logx.Fields{
		"audit_event":   "pairing_token_issued",
		"connection_id": connID,
		"timestamp":     time.Now(),
	}).Debug("Audit: pairing token issued")
}

func (s *LogxAuditService) LogClientRegistered(ctx context.Context, clientID kernel.ClientID, connID kernel.ConnectionID, ip string) {
	logx.WithContext(ctx).WithFields(logx.Fields{
		"audit_event":   "client_registered",
		"client_id":     clientID,
		"connection_id": connID,
		"ip":            ip,
		"timestamp":     time.Now(),
	}).Info("Audit: client registered")
}
