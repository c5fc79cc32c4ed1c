package realtime

import (
	"time"

	"github.com/halldis/tokensight/internal/analytics"
)

// Notifier adapts engine events into hub broadcasts. It satisfies
// analytics.Notifier; Broadcast never blocks, so the engine's hot path
// is safe.
type Notifier struct {
	hub *Hub
}

// NewNotifier creates a notifier feeding the given hub.
func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

func (n *Notifier) TransferRecorded(t *analytics.TransferRecord, profile *analytics.AccountProfile) {
	n.hub.Broadcast(&Event{
		Type:      EventTransfer,
		Timestamp: time.Now(),
		Account:   t.Account,
		Amount:    t.Amount,
		RiskScore: profile.RiskScore,
		Data: map[string]any{
			"transferId":   t.ID,
			"recipient":    t.Recipient,
			"chainTime":    t.Timestamp,
			"transferType": t.TransferType,
			"loyaltyScore": profile.LoyaltyScore,
			"isFlagged":    profile.IsFlagged,
		},
	})
}

func (n *Notifier) AccountFlagged(account string, riskScore uint64) {
	n.hub.Broadcast(&Event{
		Type:      EventAccountFlagged,
		Timestamp: time.Now(),
		Account:   account,
		RiskScore: riskScore,
	})
}

func (n *Notifier) DormantReactivation(account string, idleFor uint64) {
	n.hub.Broadcast(&Event{
		Type:      EventDormantWake,
		Timestamp: time.Now(),
		Account:   account,
		Data:      map[string]any{"idleFor": idleFor},
	})
}
