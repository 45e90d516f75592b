package storage

import (
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertAndDeleteLobby(t *testing.T) {
	s := openTestStore(t)
	created := time.Now()

	if err := s.UpsertLobby("ABC123", "p1", nil, map[string]int{"time_minutes": 10}, created); err != nil {
		t.Fatalf("UpsertLobby: %v", err)
	}

	rows, err := s.AllLobbies()
	if err != nil {
		t.Fatalf("AllLobbies: %v", err)
	}
	if len(rows) != 1 || rows[0].Code != "ABC123" || rows[0].OwnerID != "p1" {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	if err := s.UpsertLobby("ABC123", "p2", nil, map[string]int{"time_minutes": 10}, created); err != nil {
		t.Fatalf("UpsertLobby (update): %v", err)
	}
	rows, _ = s.AllLobbies()
	if len(rows) != 1 || rows[0].OwnerID != "p2" {
		t.Fatalf("expected owner updated in place, got %+v", rows)
	}

	if err := s.DeleteLobby("ABC123"); err != nil {
		t.Fatalf("DeleteLobby: %v", err)
	}
	rows, _ = s.AllLobbies()
	if len(rows) != 0 {
		t.Fatalf("expected no lobby rows after delete, got %+v", rows)
	}
}

func TestUpsertAndRemoveClientSeat(t *testing.T) {
	s := openTestStore(t)

	if err := s.UpsertClientSeat("client-1", "ABC123", "white", "Alice"); err != nil {
		t.Fatalf("UpsertClientSeat: %v", err)
	}
	seats, err := s.AllClientSeats()
	if err != nil {
		t.Fatalf("AllClientSeats: %v", err)
	}
	if len(seats) != 1 || seats[0].LobbyCode != "ABC123" || seats[0].Color != "white" || seats[0].DisplayName != "Alice" {
		t.Fatalf("unexpected seats: %+v", seats)
	}

	if err := s.UpsertClientSeat("client-1", "ABC123", "black", "Alice"); err != nil {
		t.Fatalf("UpsertClientSeat (update): %v", err)
	}
	seats, _ = s.AllClientSeats()
	if len(seats) != 1 || seats[0].Color != "black" {
		t.Fatalf("expected color updated in place, got %+v", seats)
	}

	if err := s.RemoveClientSeat("client-1"); err != nil {
		t.Fatalf("RemoveClientSeat: %v", err)
	}
	seats, _ = s.AllClientSeats()
	if len(seats) != 0 {
		t.Fatalf("expected no seats after remove, got %+v", seats)
	}
}

func TestDeleteLobbyCascadesClientSeats(t *testing.T) {
	s := openTestStore(t)
	s.UpsertLobby("ABC123", "p1", nil, map[string]int{}, time.Now())
	s.UpsertClientSeat("client-1", "ABC123", "white", "Alice")

	if err := s.DeleteLobby("ABC123"); err != nil {
		t.Fatalf("DeleteLobby: %v", err)
	}
	seats, _ := s.AllClientSeats()
	if len(seats) != 0 {
		t.Fatalf("expected seating rows removed with the lobby, got %+v", seats)
	}
}

func TestRecordAndRemoveSearching(t *testing.T) {
	s := openTestStore(t)
	if err := s.RecordSearching("client-1", "Alice"); err != nil {
		t.Fatalf("RecordSearching: %v", err)
	}
	if err := s.RecordSearching("client-1", "Alice2"); err != nil {
		t.Fatalf("RecordSearching (update): %v", err)
	}
	if err := s.RemoveSearching("client-1"); err != nil {
		t.Fatalf("RemoveSearching: %v", err)
	}
}

func TestRecordDrawOffer(t *testing.T) {
	s := openTestStore(t)
	if err := s.RecordDrawOffer("p1", "p2", time.Now()); err != nil {
		t.Fatalf("RecordDrawOffer: %v", err)
	}
}

func TestLoadOrCreateSecretIsStableAcrossCalls(t *testing.T) {
	s := openTestStore(t)
	first, err := s.LoadOrCreateSecret()
	if err != nil {
		t.Fatalf("LoadOrCreateSecret: %v", err)
	}
	if len(first) == 0 {
		t.Fatalf("expected a non-empty secret")
	}
	second, err := s.LoadOrCreateSecret()
	if err != nil {
		t.Fatalf("LoadOrCreateSecret (second): %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("expected the same secret to persist across calls")
	}
}
