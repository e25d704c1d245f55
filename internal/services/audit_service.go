package services

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"investtracker/internal/logger"
	"investtracker/internal/models"
)

// auditService records changes to assets and alert rules.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records an audit event. Failures are logged and swallowed so that a
// successful asset or rule change is never reported as failed.
func (s *auditService) Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any) {
	log := logger.Named("audit")

	entry := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
	}
	if cleaned := normalizeChanges(changes); len(cleaned) > 0 {
		data, err := json.Marshal(cleaned)
		if err != nil {
			log.Errorw("failed to marshal audit changes", "error", err, "action", action)
			data = []byte("{}")
		}
		entry.Changes = string(data)
	}

	if err := s.db.Create(entry).Error; err != nil {
		log.Errorw("failed to create audit log entry",
			"error", err,
			"user_id", userID,
			"action", action,
			"resource_type", resourceType,
			"resource_id", resourceID,
		)
	}
}

// normalizeChanges drops unset optional fields and renders decimals as plain
// strings, so "quantity": "12.5" reads the same whether it came from a
// request pointer or a stored model.
func normalizeChanges(changes map[string]any) map[string]any {
	if len(changes) == 0 {
		return nil
	}
	out := make(map[string]any, len(changes))
	for k, v := range changes {
		switch x := v.(type) {
		case nil:
			continue
		case decimal.Decimal:
			out[k] = x.String()
		case *decimal.Decimal:
			if x != nil {
				out[k] = x.String()
			}
		case fmt.Stringer:
			if rv := reflect.ValueOf(x); rv.Kind() == reflect.Pointer && rv.IsNil() {
				continue
			}
			out[k] = x.String()
		default:
			if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer {
				if rv.IsNil() {
					continue
				}
				out[k] = rv.Elem().Interface()
				continue
			}
			out[k] = v
		}
	}
	return out
}
