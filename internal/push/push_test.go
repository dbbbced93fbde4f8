package push

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/dukerupert/famille/internal/database"
	"github.com/dukerupert/famille/internal/ledger"
	"github.com/dukerupert/famille/internal/model"
	"github.com/dukerupert/famille/internal/store"
)

type sentMessage struct {
	endpoint string
	payload  Payload
}

// fakeSender records messages and answers with a per-endpoint status.
type fakeSender struct {
	mu     sync.Mutex
	sent   []sentMessage
	status map[string]int
}

func (f *fakeSender) send(message []byte, s *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var p Payload
	json.Unmarshal(message, &p)
	f.sent = append(f.sent, sentMessage{endpoint: s.Endpoint, payload: p})
	code := http.StatusCreated
	if c, ok := f.status[s.Endpoint]; ok {
		code = c
	}
	return &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader(""))}, nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func newTestService(f *fakeSender) *Service {
	svc := NewService("pub", "priv", "")
	svc.send = f.send
	return svc
}

type pushEnv struct {
	push     *store.PushStore
	members  *store.MemberStore
	homework *store.HomeworkStore
}

func setupPushTest(t *testing.T) *pushEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &pushEnv{
		push:     store.NewPushStore(db),
		members:  store.NewMemberStore(db),
		homework: store.NewHomeworkStore(db),
	}
}

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	// Public key is an uncompressed P-256 point.
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) == 0 || len(privBytes) > 32 {
		t.Errorf("private key length = %d, want at most 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

func TestSendStatusMapping(t *testing.T) {
	f := &fakeSender{status: map[string]int{
		"https://push.example/gone":  http.StatusGone,
		"https://push.example/error": http.StatusInternalServerError,
	}}
	svc := newTestService(f)

	if err := svc.Send(&model.PushSubscription{Endpoint: "https://push.example/ok"}, Payload{Title: "x"}); err != nil {
		t.Errorf("ok endpoint: %v", err)
	}
	if err := svc.Send(&model.PushSubscription{Endpoint: "https://push.example/gone"}, Payload{}); err != ErrExpired {
		t.Errorf("gone endpoint err = %v, want ErrExpired", err)
	}
	if err := svc.Send(&model.PushSubscription{Endpoint: "https://push.example/error"}, Payload{}); err == nil {
		t.Error("expected error for 500")
	}
}

func TestServiceEnabled(t *testing.T) {
	if NewService("", "", "").Enabled() {
		t.Error("Enabled = true without keys")
	}
	if !NewService("pub", "priv", "").Enabled() {
		t.Error("Enabled = false with keys")
	}
}

func TestNotifierRedemptionReachesParents(t *testing.T) {
	env := setupPushTest(t)
	papa, _ := env.members.Create("Papa", model.RoleParent, "", "")
	anna, _ := env.members.Create("Anna", model.RoleEnfant, "", "")
	env.push.CreateSubscription(papa.ID, "https://push.example/papa", "k", "a", "")
	env.push.CreateSubscription(papa.ID, "https://push.example/old", "k", "a", "")
	env.push.CreateSubscription(anna.ID, "https://push.example/anna", "k", "a", "")

	f := &fakeSender{status: map[string]int{"https://push.example/old": http.StatusGone}}
	n := NewNotifier(newTestService(f), env.push, env.members, nil)

	n.Notify(context.Background(), ledger.Event{
		Kind:     ledger.EventRewardRedeemed,
		MemberID: anna.ID,
		Entry:    &model.HistoryEntry{Label: "Cinéma", Value: 20, Type: model.EntryReward},
		Snapshot: &ledger.Snapshot{Total: 5},
	})
	n.Wait()

	msgs := f.messages()
	if len(msgs) != 2 {
		t.Fatalf("sent %d messages, want 2", len(msgs))
	}
	for _, m := range msgs {
		if m.endpoint == "https://push.example/anna" {
			t.Error("child should not be notified of own redemption")
		}
		if !strings.Contains(m.payload.Body, "Anna") || !strings.Contains(m.payload.Body, "Cinéma") {
			t.Errorf("body = %q", m.payload.Body)
		}
	}

	subs, _ := env.push.ListByMember(papa.ID)
	if len(subs) != 1 || subs[0].Endpoint != "https://push.example/papa" {
		t.Errorf("subs = %+v, want expired endpoint pruned", subs)
	}
}

func TestNotifierIgnoresOtherEvents(t *testing.T) {
	env := setupPushTest(t)
	papa, _ := env.members.Create("Papa", model.RoleParent, "", "")
	env.push.CreateSubscription(papa.ID, "https://push.example/papa", "k", "a", "")

	f := &fakeSender{}
	n := NewNotifier(newTestService(f), env.push, env.members, nil)
	n.Notify(context.Background(), ledger.Event{
		Kind:  ledger.EventTaskCompleted,
		Entry: &model.HistoryEntry{Label: "Lit", Value: 2, Type: model.EntryTask},
	})
	n.Wait()

	if got := len(f.messages()); got != 0 {
		t.Errorf("sent %d messages, want 0", got)
	}
}

func TestSchedulerHomeworkReminderOncePerDay(t *testing.T) {
	env := setupPushTest(t)
	anna, _ := env.members.Create("Anna", model.RoleEnfant, "", "")
	env.push.CreateSubscription(anna.ID, "https://push.example/anna", "k", "a", "")
	env.homework.Create(anna.ID, "Maths", "Fiche 3", "", "2026-10-16")
	env.homework.Create(anna.ID, "Anglais", "Vocabulaire", "", "2026-10-16")
	env.homework.Create(anna.ID, "Histoire", "Plus tard", "", "2026-10-20")

	f := &fakeSender{}
	n := NewNotifier(newTestService(f), env.push, env.members, nil)
	s := NewScheduler(n, env.homework, time.UTC, 18)

	s.now = func() time.Time { return time.Date(2026, 10, 15, 17, 0, 0, 0, time.UTC) }
	s.tick(context.Background())
	if got := len(f.messages()); got != 0 {
		t.Fatalf("sent %d before reminder hour, want 0", got)
	}

	s.now = func() time.Time { return time.Date(2026, 10, 15, 18, 1, 0, 0, time.UTC) }
	s.tick(context.Background())
	s.tick(context.Background())

	msgs := f.messages()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(msgs))
	}
	if !strings.Contains(msgs[0].payload.Body, "2 devoirs") {
		t.Errorf("body = %q", msgs[0].payload.Body)
	}
}
