package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/GAMA-00/gato-app-sub003/internal/store"
)

func TestTranslatePgError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"unique violation", &pgconn.PgError{Code: "23505"}, store.ErrConflict},
		{"exclusion violation", &pgconn.PgError{Code: "23P01"}, store.ErrConflict},
		{"wrapped exclusion violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23P01"}), store.ErrConflict},
		{"foreign key violation passes through", &pgconn.PgError{Code: "23503"}, nil},
		{"plain error passes through", errors.New("boom"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translatePgError(tt.err)
			if tt.want != nil {
				if !errors.Is(got, tt.want) {
					t.Fatalf("translatePgError = %v, want %v", got, tt.want)
				}
				return
			}
			if !errors.Is(got, tt.err) {
				t.Fatalf("translatePgError = %v, want original %v", got, tt.err)
			}
		})
	}
}
