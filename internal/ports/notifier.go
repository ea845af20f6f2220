package ports

import "github.com/bnema/marketplace-wallet/internal/domain"

type Notifier interface {
	Notify(n domain.Notification)
}

type NopNotifier struct{}

func (NopNotifier) Notify(domain.Notification) {}
