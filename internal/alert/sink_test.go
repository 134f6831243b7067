package alert

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/axle/internal/domain"
	"github.com/opensource-finance/axle/internal/scoring"
)

type fakeStore struct {
	alerts        []*domain.Alert
	notifications []*domain.Notification
	alertErr      error
	notifyErr     error
}

func (f *fakeStore) SaveAlert(ctx context.Context, a *domain.Alert) error {
	if f.alertErr != nil {
		return f.alertErr
	}
	a.CreatedAt = time.Now().UTC()
	f.alerts = append(f.alerts, a)
	return nil
}

func (f *fakeStore) SaveNotification(ctx context.Context, n *domain.Notification) error {
	if f.notifyErr != nil {
		return f.notifyErr
	}
	n.CreatedAt = time.Now().UTC()
	n.UpdatedAt = n.CreatedAt
	f.notifications = append(f.notifications, n)
	return nil
}

func overloadedState() domain.VehicleState {
	return domain.VehicleState{
		CurrentLoad:        20,
		MaxLoad:            10,
		SuspensionHealth:   30,
		TirePressure:       22,
		Weight:             12000,
		Speed:              95,
		RegistrationNumber: "MH12AB1234",
	}
}

func TestSendAlertNoOp(t *testing.T) {
	ctx := context.Background()

	for _, st := range []domain.Status{domain.StatusNormal, domain.StatusWarning} {
		t.Run(string(st), func(t *testing.T) {
			store := &fakeStore{}
			sink := NewSink(store)

			res := sink.SendAlert(ctx, overloadedState(), domain.RiskAssessment{Status: st}, nil)
			if res.Success {
				t.Error("expected non-success result")
			}
			if res.Message != MsgNotOverloaded {
				t.Errorf("unexpected message %q", res.Message)
			}
			if len(store.alerts) != 0 || len(store.notifications) != 0 {
				t.Error("store must not be written")
			}
		})
	}
}

func TestSendAlertStoreUnavailable(t *testing.T) {
	a := scoring.Assess(overloadedState())
	res := NewSink(nil).SendAlert(context.Background(), overloadedState(), a, nil)
	if res.Success {
		t.Error("expected non-success result")
	}
	if res.Message != MsgStoreUnavailable {
		t.Errorf("unexpected message %q", res.Message)
	}
}

func TestSendAlert(t *testing.T) {
	ctx := context.Background()
	state := overloadedState()
	assessment := scoring.Assess(state)
	if !assessment.IsOverload() {
		t.Fatalf("fixture must be OVERLOAD, got %s", assessment.Status)
	}
	loc := &domain.Location{Latitude: 19.07, Longitude: 72.87, Address: "Mumbai"}

	t.Run("Success", func(t *testing.T) {
		store := &fakeStore{}
		res := NewSink(store).SendAlert(ctx, state, assessment, loc)

		if !res.Success {
			t.Fatalf("expected success, got %+v", res)
		}
		if len(store.alerts) != 1 || len(store.notifications) != 1 {
			t.Fatalf("expected 1 alert and 1 notification, got %d and %d", len(store.alerts), len(store.notifications))
		}

		alert := store.alerts[0]
		n := store.notifications[0]
		if res.AlertID != alert.ID || res.NotificationID != n.ID {
			t.Error("result ids do not match stored records")
		}
		if alert.Score != assessment.Score || alert.Weight != state.Weight || alert.Location != loc {
			t.Errorf("alert does not carry input and assessment: %+v", alert)
		}
		if alert.CreatedAt.IsZero() {
			t.Error("expected store-assigned timestamp")
		}
		if n.AlertID != alert.ID {
			t.Error("notification must reference alert")
		}
		if n.Status != domain.NotificationPending || n.Priority != domain.PriorityHigh {
			t.Errorf("unexpected notification workflow fields: %s %s", n.Status, n.Priority)
		}
		if !strings.Contains(n.Message, "MH12AB1234") {
			t.Errorf("message missing registration: %q", n.Message)
		}
	})

	t.Run("AlertWriteFails", func(t *testing.T) {
		store := &fakeStore{alertErr: errors.New("disk full")}
		res := NewSink(store).SendAlert(ctx, state, assessment, nil)

		if res.Success {
			t.Error("expected failure")
		}
		if res.AlertID != "" {
			t.Error("no alert id expected")
		}
		if len(store.notifications) != 0 {
			t.Error("notification must not be written when alert fails")
		}
	})

	t.Run("NotificationWriteFailsKeepsAlert", func(t *testing.T) {
		store := &fakeStore{notifyErr: errors.New("timeout")}
		res := NewSink(store).SendAlert(ctx, state, assessment, nil)

		if res.Success {
			t.Error("expected failure")
		}
		if len(store.alerts) != 1 {
			t.Fatal("alert must remain persisted")
		}
		if res.AlertID != store.alerts[0].ID {
			t.Error("result should carry the orphaned alert id")
		}
		if !strings.HasPrefix(res.Message, MsgNotificationFailed) {
			t.Errorf("unexpected message %q", res.Message)
		}
	})
}
