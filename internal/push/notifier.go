package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/famille/internal/ledger"
	"github.com/dukerupert/famille/internal/model"
	"github.com/dukerupert/famille/internal/store"
)

const maxConcurrentSends = 4

// Notifier tells parents and admins when a child spends points or is
// given a consequence.
type Notifier struct {
	service *Service
	push    *store.PushStore
	members *store.MemberStore
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewNotifier(svc *Service, pushStore *store.PushStore, memberStore *store.MemberStore, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		service: svc,
		push:    pushStore,
		members: memberStore,
		logger:  logger.With("component", "push"),
	}
}

// Notify implements ledger.Notifier. Delivery runs in the background.
func (n *Notifier) Notify(_ context.Context, ev ledger.Event) {
	if !n.service.Enabled() || ev.Entry == nil {
		return
	}
	if ev.Kind != ledger.EventRewardRedeemed && ev.Kind != ledger.EventConsequenceApplied {
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.deliver(context.Background(), ev); err != nil {
			n.logger.Error("ledger notification", "kind", ev.Kind, "member_id", ev.MemberID, "error", err)
		}
	}()
}

// Wait blocks until in-flight deliveries finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func ledgerPayload(ev ledger.Event, memberName string) Payload {
	total := 0
	if ev.Snapshot != nil {
		total = ev.Snapshot.Total
	}
	p := Payload{URL: "/members", Tag: fmt.Sprintf("ledger-%d", ev.MemberID)}
	switch ev.Kind {
	case ledger.EventRewardRedeemed:
		p.Title = "Récompense utilisée"
		p.Body = fmt.Sprintf("%s a utilisé %d points pour « %s » (reste %d)", memberName, ev.Entry.Value, ev.Entry.Label, total)
	default:
		p.Title = "Conséquence appliquée"
		p.Body = fmt.Sprintf("%s perd %d points : %s (reste %d)", memberName, ev.Entry.Value, ev.Entry.Label, total)
	}
	return p
}

func (n *Notifier) deliver(ctx context.Context, ev ledger.Event) error {
	member, err := n.members.GetByID(ev.MemberID)
	if err != nil {
		return fmt.Errorf("get member: %w", err)
	}
	name := fmt.Sprintf("#%d", ev.MemberID)
	if member != nil {
		name = member.Name
	}

	subs, err := n.push.ListByRoles(model.RoleParent, model.RoleAdmin)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	return n.sendAll(ctx, subs, ledgerPayload(ev, name))
}

// sendAll delivers payload to every subscription, pruning expired ones.
// Individual failures are logged and do not stop the others.
func (n *Notifier) sendAll(ctx context.Context, subs []model.PushSubscription, payload Payload) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSends)
	for i := range subs {
		sub := subs[i]
		g.Go(func() error {
			err := n.service.Send(&sub, payload)
			switch {
			case errors.Is(err, ErrExpired):
				n.logger.Info("removing expired subscription", "member_id", sub.MemberID, "device", sub.DeviceName)
				return n.push.DeleteByEndpoint(sub.Endpoint)
			case err != nil:
				n.logger.Warn("push send failed", "member_id", sub.MemberID, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}
