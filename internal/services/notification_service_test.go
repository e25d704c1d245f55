package services

import (
	"math/rand"
	"testing"
	"time"

	"gorm.io/gorm"

	"investtracker/internal/models"
	"investtracker/internal/pagination"
	"investtracker/internal/testutil"
)

func TestNotificationRecord(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewNotificationService(db)
	owner := testutil.NewOwnerID()
	rule := testutil.CreateTestAlertRule(t, db, testutil.CreateTestAsset(t, db, owner), models.AlertTypeStopLoss, "90")
	event := testutil.CreateTestAlertEvent(t, db, rule, "KO", "89", time.Now())

	var n *models.Notification
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = svc.Record(tx, event, "Alert: KO - Stop Loss")
		return err
	})
	testutil.AssertNoError(t, err)

	if n.AlertEventID == nil || *n.AlertEventID != event.ID {
		t.Errorf("expected notification linked to event %s", event.ID)
	}
	if n.Message != event.Message {
		t.Errorf("expected event message, got %q", n.Message)
	}
	if !n.CurrentPrice.Valid || !n.CurrentPrice.Decimal.Equal(dec("89")) {
		t.Errorf("expected current price 89, got %+v", n.CurrentPrice)
	}

	// One notification per event.
	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Record(tx, event, "again")
		return err
	})
	if err == nil {
		t.Error("expected duplicate notification for the same event to fail")
	}
}

func TestMarkRead(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewNotificationService(db)
	owner := testutil.NewOwnerID()
	n := testutil.CreateTestNotification(t, db, owner)

	testutil.AssertNoError(t, svc.MarkRead(owner, n.ID))
	testutil.AssertNoError(t, svc.MarkRead(owner, n.ID))

	count, err := svc.UnreadCount(owner)
	testutil.AssertNoError(t, err)
	if count != 0 {
		t.Errorf("expected 0 unread, got %d", count)
	}

	err = svc.MarkRead(testutil.NewOwnerID(), n.ID)
	testutil.AssertAppError(t, err, "NOTIFICATION_NOT_FOUND")
}

func TestMarkAllRead(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewNotificationService(db)
	owner, other := testutil.NewOwnerID(), testutil.NewOwnerID()
	for i := 0; i < 3; i++ {
		testutil.CreateTestNotification(t, db, owner)
	}
	testutil.CreateTestNotification(t, db, other)

	changed, err := svc.MarkAllRead(owner)
	testutil.AssertNoError(t, err)
	if changed != 3 {
		t.Errorf("expected 3 changed, got %d", changed)
	}

	otherCount, _ := svc.UnreadCount(other)
	if otherCount != 1 {
		t.Errorf("expected other owner untouched, got %d unread", otherCount)
	}
}

func TestDeleteNotification_KeepsEvent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewNotificationService(db)
	owner := testutil.NewOwnerID()
	rule := testutil.CreateTestAlertRule(t, db, testutil.CreateTestAsset(t, db, owner), models.AlertTypeStopLoss, "90")
	event := testutil.CreateTestAlertEvent(t, db, rule, "KO", "89", time.Now())

	var n *models.Notification
	testutil.AssertNoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = svc.Record(tx, event, "t")
		return err
	}))

	testutil.AssertNoError(t, svc.DeleteNotification(owner, n.ID))
	testutil.AssertAppError(t, svc.DeleteNotification(owner, n.ID), "NOTIFICATION_NOT_FOUND")

	var events int64
	db.Model(&models.AlertEvent{}).Where("id = ?", event.ID).Count(&events)
	if events != 1 {
		t.Errorf("expected event kept, got %d", events)
	}
}

func TestGetUserNotifications(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewNotificationService(db)
	owner := testutil.NewOwnerID()
	read := testutil.CreateTestNotification(t, db, owner)
	testutil.CreateTestNotification(t, db, owner)
	testutil.AssertNoError(t, svc.MarkRead(owner, read.ID))

	all, err := svc.GetUserNotifications(owner, pagination.PageRequest{}, false)
	testutil.AssertNoError(t, err)
	if all.TotalItems != 2 {
		t.Errorf("expected 2, got %d", all.TotalItems)
	}

	unread, err := svc.GetUserNotifications(owner, pagination.PageRequest{}, true)
	testutil.AssertNoError(t, err)
	if unread.TotalItems != 1 {
		t.Errorf("expected 1 unread, got %d", unread.TotalItems)
	}
}

// The unread count always equals the number of unread, undeleted
// notifications, whatever sequence of operations led there.
func TestUnreadCount_MatchesState(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewNotificationService(db)
	owner := testutil.NewOwnerID()
	rng := rand.New(rand.NewSource(7))

	// Mirror of what the owner should see: id -> read.
	live := map[string]bool{}
	var ids []string

	for step := 0; step < 200; step++ {
		switch op := rng.Intn(10); {
		case op < 4 || len(ids) == 0:
			n, err := svc.CreateTestNotification(owner)
			testutil.AssertNoError(t, err)
			ids = append(ids, n.ID)
			live[n.ID] = false
		case op < 7:
			id := ids[rng.Intn(len(ids))]
			err := svc.MarkRead(owner, id)
			if _, ok := live[id]; ok {
				testutil.AssertNoError(t, err)
				live[id] = true
			} else {
				testutil.AssertAppError(t, err, "NOTIFICATION_NOT_FOUND")
			}
		case op < 9:
			id := ids[rng.Intn(len(ids))]
			err := svc.DeleteNotification(owner, id)
			if _, ok := live[id]; ok {
				testutil.AssertNoError(t, err)
				delete(live, id)
			} else {
				testutil.AssertAppError(t, err, "NOTIFICATION_NOT_FOUND")
			}
		default:
			_, err := svc.MarkAllRead(owner)
			testutil.AssertNoError(t, err)
			for id := range live {
				live[id] = true
			}
		}

		want := int64(0)
		for _, isRead := range live {
			if !isRead {
				want++
			}
		}
		got, err := svc.UnreadCount(owner)
		testutil.AssertNoError(t, err)
		if got != want {
			t.Fatalf("step %d: expected unread %d, got %d", step, want, got)
		}
	}
}
