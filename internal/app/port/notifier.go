package port

import "token_farm/internal/domain/entity"

// Notifier surfaces user-visible notices.
type Notifier interface {
	Notify(level entity.NoticeLevel, message string)
}
