package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/zinrai/l2network-mvp-go/internal/domain"
	"github.com/zinrai/l2network-mvp-go/internal/infrastructure/db"
)

func newMockRepository(t *testing.T) (*L2NetworkRepository, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return NewL2NetworkRepository(db.NewDB(mockDB)), mock
}

func checkExpectations(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestInitializeVlanIDs(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepository(t)

	t.Run("Populate empty pool", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("LOCK TABLE vlan_ids IN EXCLUSIVE MODE").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT count\\(\\*\\) FROM vlan_ids").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec("INSERT INTO vlan_ids").
			WithArgs(100, 110).
			WillReturnResult(sqlmock.NewResult(0, 11))
		mock.ExpectCommit()

		if err := repo.InitializeVlanIDs(ctx, 100, 110); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		checkExpectations(t, mock)
	})

	t.Run("Already populated pool is left alone", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("LOCK TABLE vlan_ids IN EXCLUSIVE MODE").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT count\\(\\*\\) FROM vlan_ids").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
		mock.ExpectRollback()

		if err := repo.InitializeVlanIDs(ctx, 100, 110); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		checkExpectations(t, mock)
	})

	t.Run("Invalid range", func(t *testing.T) {
		err := repo.InitializeVlanIDs(ctx, 200, 100)
		if !errors.Is(err, domain.ErrInvalidVlanRange) {
			t.Errorf("expected invalid range error, got %v", err)
		}
		checkExpectations(t, mock)
	})

	t.Run("Database error when inserting", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("LOCK TABLE vlan_ids IN EXCLUSIVE MODE").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT count\\(\\*\\) FROM vlan_ids").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec("INSERT INTO vlan_ids").
			WithArgs(100, 110).
			WillReturnError(fmt.Errorf("database error"))
		mock.ExpectRollback()

		if err := repo.InitializeVlanIDs(ctx, 100, 110); err == nil {
			t.Error("expected an error, got nil")
		}
		checkExpectations(t, mock)
	})
}

func TestListVlanIDs(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepository(t)

	t.Run("List all", func(t *testing.T) {
		mock.ExpectQuery("SELECT vlan_id, vlan_used FROM vlan_ids").
			WillReturnRows(sqlmock.NewRows([]string{"vlan_id", "vlan_used"}).
				AddRow(100, true).
				AddRow(101, false))

		vlanIDs, err := repo.ListVlanIDs(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(vlanIDs) != 2 {
			t.Fatalf("expected 2 vlan ids, got %d", len(vlanIDs))
		}
		if vlanIDs[0].VlanID != 100 || !vlanIDs[0].Used {
			t.Errorf("unexpected first vlan id: %+v", vlanIDs[0])
		}
		if vlanIDs[1].VlanID != 101 || vlanIDs[1].Used {
			t.Errorf("unexpected second vlan id: %+v", vlanIDs[1])
		}
		checkExpectations(t, mock)
	})

	t.Run("Empty pool", func(t *testing.T) {
		mock.ExpectQuery("SELECT vlan_id, vlan_used FROM vlan_ids").
			WillReturnRows(sqlmock.NewRows([]string{"vlan_id", "vlan_used"}))

		vlanIDs, err := repo.ListVlanIDs(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if vlanIDs == nil || len(vlanIDs) != 0 {
			t.Errorf("expected an empty slice, got %#v", vlanIDs)
		}
		checkExpectations(t, mock)
	})
}

func TestIsVlanIDUsed(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepository(t)

	t.Run("Used", func(t *testing.T) {
		mock.ExpectQuery("SELECT vlan_used FROM vlan_ids").
			WithArgs(100).
			WillReturnRows(sqlmock.NewRows([]string{"vlan_used"}).AddRow(true))

		used, err := repo.IsVlanIDUsed(ctx, 100)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if !used {
			t.Error("expected vlan 100 to be used")
		}
		checkExpectations(t, mock)
	})

	t.Run("Not in pool", func(t *testing.T) {
		mock.ExpectQuery("SELECT vlan_used FROM vlan_ids").
			WithArgs(4000).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.IsVlanIDUsed(ctx, 4000)
		if !errors.Is(err, domain.ErrVlanIDNotFound) {
			t.Errorf("expected VlanIDNotFound, got %v", err)
		}
		checkExpectations(t, mock)
	})

	t.Run("Outside vlan range", func(t *testing.T) {
		for _, id := range []int{-1, 0, 4095, 70000} {
			_, err := repo.IsVlanIDUsed(ctx, id)
			if !errors.Is(err, domain.ErrVlanIDNotFound) {
				t.Errorf("vlan %d: expected VlanIDNotFound, got %v", id, err)
			}
		}
		checkExpectations(t, mock)
	})
}

func TestReleaseAndDeleteVlanID(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepository(t)

	t.Run("Release", func(t *testing.T) {
		mock.ExpectExec("UPDATE vlan_ids SET vlan_used = false").
			WithArgs(100).
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := repo.ReleaseVlanID(ctx, 100); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		checkExpectations(t, mock)
	})

	t.Run("Release unknown vlan", func(t *testing.T) {
		mock.ExpectExec("UPDATE vlan_ids SET vlan_used = false").
			WithArgs(4000).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.ReleaseVlanID(ctx, 4000)
		if !errors.Is(err, domain.ErrVlanIDNotFound) {
			t.Errorf("expected VlanIDNotFound, got %v", err)
		}
		checkExpectations(t, mock)
	})

	t.Run("Delete unknown vlan is a no-op", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM vlan_ids").
			WithArgs(4000).
			WillReturnResult(sqlmock.NewResult(0, 0))

		if err := repo.DeleteVlanID(ctx, 4000); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		checkExpectations(t, mock)
	})

	t.Run("Outside vlan range", func(t *testing.T) {
		for _, id := range []int{-1, 4095, 1 << 40} {
			if err := repo.ReleaseVlanID(ctx, id); !errors.Is(err, domain.ErrVlanIDNotFound) {
				t.Errorf("release vlan %d: expected VlanIDNotFound, got %v", id, err)
			}
			if err := repo.DeleteVlanID(ctx, id); err != nil {
				t.Errorf("delete vlan %d: unexpected error: %v", id, err)
			}
		}
		checkExpectations(t, mock)
	})
}

func TestReserveVlanID(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepository(t)

	t.Run("Reserve first unused", func(t *testing.T) {
		mock.ExpectQuery("UPDATE vlan_ids SET vlan_used = true").
			WillReturnRows(sqlmock.NewRows([]string{"vlan_id"}).AddRow(100))

		vlanID, err := repo.ReserveVlanID(ctx)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if vlanID != 100 {
			t.Errorf("expected vlan 100, got %d", vlanID)
		}
		checkExpectations(t, mock)
	})

	t.Run("Pool exhausted", func(t *testing.T) {
		mock.ExpectQuery("UPDATE vlan_ids SET vlan_used = true").
			WillReturnRows(sqlmock.NewRows([]string{"vlan_id"}))

		_, err := repo.ReserveVlanID(ctx)
		if !errors.Is(err, domain.ErrVlanIDNotAvailable) {
			t.Errorf("expected VlanIDNotAvailable, got %v", err)
		}
		checkExpectations(t, mock)
	})

	t.Run("Database error", func(t *testing.T) {
		mock.ExpectQuery("UPDATE vlan_ids SET vlan_used = true").
			WillReturnError(fmt.Errorf("database error"))

		_, err := repo.ReserveVlanID(ctx)
		if err == nil || domain.IsResourceExhausted(err) {
			t.Errorf("expected a database error, got %v", err)
		}
		checkExpectations(t, mock)
	})
}

func TestAddVlanBinding(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepository(t)

	t.Run("Add binding", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT network_id FROM vlan_bindings").
			WithArgs(100).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("INSERT INTO vlan_bindings").
			WithArgs(100, "vlan100", "net-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		binding, err := repo.AddVlanBinding(ctx, 100, "vlan100", "net-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if binding.VlanID != 100 || binding.VlanName != "vlan100" || binding.NetworkID != "net-1" {
			t.Errorf("unexpected binding: %+v", binding)
		}
		checkExpectations(t, mock)
	})

	t.Run("Vlan already bound", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT network_id FROM vlan_bindings").
			WithArgs(100).
			WillReturnRows(sqlmock.NewRows([]string{"network_id"}).AddRow("net-1"))
		mock.ExpectRollback()

		_, err := repo.AddVlanBinding(ctx, 100, "vlan100", "net-2")
		if !errors.Is(err, domain.ErrNetworkVlanBindingAlreadyExists) {
			t.Errorf("expected NetworkVlanBindingAlreadyExists, got %v", err)
		}
		checkExpectations(t, mock)
	})

	t.Run("Concurrent insert hits unique constraint", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT network_id FROM vlan_bindings").
			WithArgs(101).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("INSERT INTO vlan_bindings").
			WithArgs(101, "vlan101", "net-3").
			WillReturnError(&pq.Error{Code: uniqueViolation})
		mock.ExpectRollback()

		_, err := repo.AddVlanBinding(ctx, 101, "vlan101", "net-3")
		if !domain.IsConflict(err) {
			t.Errorf("expected a conflict, got %v", err)
		}
		checkExpectations(t, mock)
	})
}

func TestGetAndRemoveVlanBinding(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepository(t)

	t.Run("Get binding", func(t *testing.T) {
		mock.ExpectQuery("SELECT vlan_id, vlan_name, network_id FROM vlan_bindings").
			WithArgs("net-1").
			WillReturnRows(sqlmock.NewRows([]string{"vlan_id", "vlan_name", "network_id"}).AddRow(100, "vlan100", "net-1"))

		binding, err := repo.GetVlanBinding(ctx, "net-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if *binding != (domain.VlanBinding{VlanID: 100, VlanName: "vlan100", NetworkID: "net-1"}) {
			t.Errorf("unexpected binding: %+v", binding)
		}
		checkExpectations(t, mock)
	})

	t.Run("Get unknown network", func(t *testing.T) {
		mock.ExpectQuery("SELECT vlan_id, vlan_name, network_id FROM vlan_bindings").
			WithArgs("net-x").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetVlanBinding(ctx, "net-x")
		if !errors.Is(err, domain.ErrNetworkNotFound) {
			t.Errorf("expected NetworkNotFound, got %v", err)
		}
		checkExpectations(t, mock)
	})

	t.Run("Remove unknown network is a no-op", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM vlan_bindings").
			WithArgs("net-x").
			WillReturnResult(sqlmock.NewResult(0, 0))

		if err := repo.RemoveVlanBinding(ctx, "net-x"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		checkExpectations(t, mock)
	})
}

func TestUpdateVlanBinding(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepository(t)
	newVlanID := 200

	t.Run("Update vlan id only", func(t *testing.T) {
		mock.ExpectQuery("UPDATE vlan_bindings").
			WithArgs("net-1", 200, nil).
			WillReturnRows(sqlmock.NewRows([]string{"vlan_id", "vlan_name", "network_id"}).AddRow(200, "vlan100", "net-1"))

		binding, err := repo.UpdateVlanBinding(ctx, "net-1", domain.VlanBindingUpdate{VlanID: &newVlanID})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if binding.VlanID != 200 || binding.VlanName != "vlan100" {
			t.Errorf("unexpected binding: %+v", binding)
		}
		checkExpectations(t, mock)
	})

	t.Run("Unknown network", func(t *testing.T) {
		mock.ExpectQuery("UPDATE vlan_bindings").
			WithArgs("net-x", 200, nil).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.UpdateVlanBinding(ctx, "net-x", domain.VlanBindingUpdate{VlanID: &newVlanID})
		if !errors.Is(err, domain.ErrNetworkNotFound) {
			t.Errorf("expected NetworkNotFound, got %v", err)
		}
		checkExpectations(t, mock)
	})
}
