package services

import (
	"testing"
	"time"

	"investtracker/internal/models"
	"investtracker/internal/pagination"
	"investtracker/internal/testutil"
)

func TestCreateAlert(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAlertService(db)
		owner := testutil.NewOwnerID()
		asset := testutil.CreateTestAsset(t, db, owner)

		rule, err := svc.CreateAlert(owner, AlertInput{
			AssetID:      asset.ID,
			AlertType:    models.AlertTypeTakeProfit,
			TargetValue:  dec("25"),
			IsPercentage: true,
		})
		testutil.AssertNoError(t, err)

		if !rule.IsActive {
			t.Error("expected new rule to be active")
		}
		if rule.SideState != models.SideUnknown {
			t.Errorf("expected unknown side, got %s", rule.SideState)
		}
		if rule.ActivatedAt.IsZero() {
			t.Error("expected activated_at to be set")
		}
		if rule.LastTriggeredAt != nil {
			t.Error("expected no last_triggered_at")
		}
	})

	tests := []struct {
		name string
		in   AlertInput
		code string
	}{
		{name: "bad_type", in: AlertInput{AlertType: "trailing", TargetValue: dec("10")}, code: "INVALID_ALERT_TYPE"},
		{name: "zero_target", in: AlertInput{AlertType: models.AlertTypeTargetBuy, TargetValue: dec("0")}, code: "INVALID_TARGET_VALUE"},
		{name: "negative_target", in: AlertInput{AlertType: models.AlertTypeTargetSell, TargetValue: dec("-5")}, code: "INVALID_TARGET_VALUE"},
		{name: "full_drop_pct", in: AlertInput{AlertType: models.AlertTypeStopLoss, TargetValue: dec("100"), IsPercentage: true}, code: "INVALID_TARGET_VALUE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			defer testutil.TeardownTestDB(t, db)
			svc := NewAlertService(db)
			owner := testutil.NewOwnerID()
			tt.in.AssetID = testutil.CreateTestAsset(t, db, owner).ID

			_, err := svc.CreateAlert(owner, tt.in)
			testutil.AssertAppError(t, err, tt.code)
		})
	}

	t.Run("foreign_asset", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAlertService(db)
		asset := testutil.CreateTestAsset(t, db, testutil.NewOwnerID())

		_, err := svc.CreateAlert(testutil.NewOwnerID(), AlertInput{
			AssetID: asset.ID, AlertType: models.AlertTypeTargetBuy, TargetValue: dec("10"),
		})
		testutil.AssertAppError(t, err, "ASSET_NOT_FOUND")
	})
}

func TestToggleAlert_Reactivation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAlertService(db)
	owner := testutil.NewOwnerID()
	asset := testutil.CreateTestAsset(t, db, owner)
	rule := testutil.CreateTestAlertRule(t, db, asset, models.AlertTypeTargetBuy, "90")

	// Simulate the engine firing the rule.
	fired := time.Now().UTC()
	db.Model(rule).Updates(map[string]any{
		"is_active":         false,
		"side_state":        models.SideBelow,
		"last_triggered_at": &fired,
		"version":           rule.Version + 1,
	})

	reactivated, err := svc.ToggleAlert(owner, rule.ID)
	testutil.AssertNoError(t, err)
	if !reactivated.IsActive {
		t.Fatal("expected rule active after toggle")
	}
	if reactivated.SideState != models.SideUnknown {
		t.Errorf("expected unknown side after reactivation, got %s", reactivated.SideState)
	}
	if !reactivated.ActivatedAt.After(fired) && !reactivated.ActivatedAt.Equal(fired) {
		t.Errorf("expected activated_at >= last trigger, got %v < %v", reactivated.ActivatedAt, fired)
	}
	if reactivated.Version <= rule.Version+1 {
		t.Errorf("expected version bump, got %d", reactivated.Version)
	}

	deactivated, err := svc.ToggleAlert(owner, rule.ID)
	testutil.AssertNoError(t, err)
	if deactivated.IsActive {
		t.Error("expected rule inactive after second toggle")
	}
	if !deactivated.ActivatedAt.Equal(reactivated.ActivatedAt) {
		t.Error("deactivation must not move activated_at")
	}
}

func TestUpdateAlert(t *testing.T) {
	t.Run("threshold_change_resets_side", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAlertService(db)
		owner := testutil.NewOwnerID()
		rule := testutil.CreateTestAlertRule(t, db, testutil.CreateTestAsset(t, db, owner), models.AlertTypeTargetSell, "120")
		db.Model(rule).Update("side_state", models.SideBelow)

		updated, err := svc.UpdateAlert(owner, rule.ID, AlertUpdate{TargetValue: decPtr("130")})
		testutil.AssertNoError(t, err)
		if !updated.TargetValue.Equal(dec("130")) {
			t.Errorf("expected target 130, got %s", updated.TargetValue)
		}
		if updated.SideState != models.SideUnknown {
			t.Errorf("expected unknown side, got %s", updated.SideState)
		}
	})

	t.Run("same_values_no_write", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAlertService(db)
		owner := testutil.NewOwnerID()
		rule := testutil.CreateTestAlertRule(t, db, testutil.CreateTestAsset(t, db, owner), models.AlertTypeTargetSell, "120")

		updated, err := svc.UpdateAlert(owner, rule.ID, AlertUpdate{TargetValue: decPtr("120.00")})
		testutil.AssertNoError(t, err)
		if updated.Version != rule.Version {
			t.Errorf("expected unchanged version %d, got %d", rule.Version, updated.Version)
		}
	})

	t.Run("invalid_target", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAlertService(db)
		owner := testutil.NewOwnerID()
		rule := testutil.CreateTestAlertRule(t, db, testutil.CreateTestAsset(t, db, owner), models.AlertTypeTargetSell, "120")

		_, err := svc.UpdateAlert(owner, rule.ID, AlertUpdate{TargetValue: decPtr("0")})
		testutil.AssertAppError(t, err, "INVALID_TARGET_VALUE")
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAlertService(db)

		_, err := svc.UpdateAlert(testutil.NewOwnerID(), testutil.NewOwnerID(), AlertUpdate{})
		testutil.AssertAppError(t, err, "ALERT_NOT_FOUND")
	})
}

func TestGetAlerts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAlertService(db)
	owner := testutil.NewOwnerID()
	asset := testutil.CreateTestAsset(t, db, owner)
	active := testutil.CreateTestAlertRule(t, db, asset, models.AlertTypeTargetBuy, "90")
	inactive := testutil.CreateTestAlertRule(t, db, asset, models.AlertTypeTargetSell, "110")
	db.Model(inactive).Update("is_active", false)
	testutil.CreateTestAlertRule(t, db, testutil.CreateTestAsset(t, db, testutil.NewOwnerID()), models.AlertTypeTargetBuy, "1")

	all, err := svc.GetUserAlerts(owner, pagination.PageRequest{}, nil)
	testutil.AssertNoError(t, err)
	if all.TotalItems != 2 {
		t.Errorf("expected 2 rules, got %d", all.TotalItems)
	}

	isActive := true
	onlyActive, err := svc.GetUserAlerts(owner, pagination.PageRequest{}, &isActive)
	testutil.AssertNoError(t, err)
	if onlyActive.TotalItems != 1 || onlyActive.Data[0].ID != active.ID {
		t.Errorf("expected only the active rule, got %+v", onlyActive.Data)
	}

	byAsset, err := svc.GetAssetAlerts(owner, asset.ID)
	testutil.AssertNoError(t, err)
	if len(byAsset) != 2 {
		t.Errorf("expected 2 rules for asset, got %d", len(byAsset))
	}
}

func TestDeleteAlert(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAlertService(db)
	owner := testutil.NewOwnerID()
	rule := testutil.CreateTestAlertRule(t, db, testutil.CreateTestAsset(t, db, owner), models.AlertTypeTargetBuy, "90")
	testutil.CreateTestAlertEvent(t, db, rule, "KO", "89", time.Now())

	err := svc.DeleteAlert(testutil.NewOwnerID(), rule.ID)
	testutil.AssertAppError(t, err, "ALERT_NOT_FOUND")

	testutil.AssertNoError(t, svc.DeleteAlert(owner, rule.ID))

	var events int64
	db.Model(&models.AlertEvent{}).Where("alert_id = ?", rule.ID).Count(&events)
	if events != 1 {
		t.Errorf("expected history kept after rule deletion, got %d", events)
	}
}
