package services

import (
	"encoding/json"
	"log"

	"github.com/teamflow-dev/teamflow/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notifier persists in-app notifications. Delivery is fire-and-forget: a
// failed write is logged and swallowed so it never fails the operation that
// triggered it.
type Notifier struct {
	db *gorm.DB
}

func NewNotifier(conn *gorm.DB) *Notifier {
	return &Notifier{db: conn}
}

func (n *Notifier) Notify(userID uint, title, message, notificationType string, relatedID uint, data map[string]interface{}) {
	notification := models.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      notificationType,
		RelatedID: relatedID,
	}

	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			log.Printf("Failed to marshal notification payload: %v", err)
		} else {
			notification.Data = datatypes.JSON(payload)
		}
	}

	if err := n.db.Create(&notification).Error; err != nil {
		log.Printf("Failed to create notification for user %d: %v", userID, err)
	}
}
