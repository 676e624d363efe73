package businessflow

import (
	"context"
	"encoding/json"
	"log"

	"github.com/amirphl/simple-crm/models"
	"github.com/amirphl/simple-crm/repository"
	"github.com/amirphl/simple-crm/utils"
)

// createAuditLog records an audit entry. Failures are logged, never returned to the request.
func createAuditLog(ctx context.Context, auditRepo repository.AuditLogRepository, account *models.Account, action, description string, success bool, errMsg *string, metadata *ClientMetadata) {
	if auditRepo == nil {
		return
	}

	var accountID *uint
	if account != nil && account.ID != 0 {
		accountID = &account.ID
	}

	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		AccountID:    accountID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errMsg,
	}

	if metadata != nil && len(metadata.Additional) > 0 {
		if raw, err := json.Marshal(metadata.Additional); err == nil {
			audit.Metadata = raw
		}
	}

	if requestID, ok := ctx.Value(utils.RequestIDKey).(string); ok && requestID != "" {
		audit.RequestID = &requestID
	} else if metadata != nil && metadata.RequestID != "" {
		audit.RequestID = utils.ToPtr(metadata.RequestID)
	}

	// Outside any caller transaction so failed operations are still recorded
	ctx = context.WithValue(ctx, repository.TxContextKey, nil)
	if err := auditRepo.Save(ctx, audit); err != nil {
		log.Printf("Failed to write audit log %s: %v", action, err)
	}
}

func errString(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}
