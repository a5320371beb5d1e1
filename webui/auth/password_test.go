package auth

import (
	"errors"
	"testing"
)

func TestHashPasswordWithCost(t *testing.T) {
	tests := []struct {
		name     string
		password string
		cost     int
		wantErr  bool
	}{
		{"valid", "hunter2", MinCost, false},
		{"empty password", "", MinCost, true},
		{"cost too low", "hunter2", MinCost - 1, true},
		{"cost too high", "hunter2", MaxCost + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPasswordWithCost(tt.password, tt.cost)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cost, err := GetHashCost(hash); err != nil || cost != tt.cost {
				t.Errorf("GetHashCost() = %d, %v; want %d", cost, err, tt.cost)
			}
		})
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPasswordWithCost("correct horse", MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	tests := []struct {
		name     string
		password string
		hash     string
		want     error
	}{
		{"match", "correct horse", hash, nil},
		{"mismatch", "battery staple", hash, ErrPasswordMismatch},
		{"empty password", "", hash, ErrEmptyPassword},
		{"empty hash", "correct horse", "", ErrInvalidHash},
		{"malformed hash", "correct horse", "not-a-hash", ErrInvalidHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := VerifyPassword(tt.password, tt.hash); !errors.Is(err, tt.want) {
				t.Errorf("VerifyPassword() = %v, want %v", err, tt.want)
			}
		})
	}
}
