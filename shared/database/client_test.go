package database

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DSN(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{
			name: "postgres",
			cfg:  Config{Driver: DriverPostgres, Host: "db", Port: 5432, User: "u", Password: "p", Database: "niceshot", SSLMode: "disable"},
			want: "host=db port=5432 user=u password=p dbname=niceshot sslmode=disable",
		},
		{
			name: "sqlite file",
			cfg:  Config{Driver: DriverSQLite, Path: "/tmp/history.db"},
			want: "file:/tmp/history.db?_busy_timeout=5000&_foreign_keys=on",
		},
		{
			name: "sqlite memory",
			cfg:  Config{Driver: DriverSQLite},
			want: "file::memory:?_busy_timeout=5000&_foreign_keys=on",
		},
		{
			name:    "unknown driver",
			cfg:     Config{Driver: "mysql"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.DSN()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_SQLiteMigrateAndQuery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := NewClient(&Config{Driver: DriverSQLite}, logger)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.HealthCheck(ctx))
	require.NoError(t, client.Migrate(ctx, []string{
		`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
	}))

	require.NoError(t, client.NamedExecContext(ctx, `INSERT INTO items (id, name) VALUES (:id, :name)`,
		map[string]interface{}{"id": 1, "name": "frame"}))

	var name string
	require.NoError(t, client.GetContext(ctx, &name, `SELECT name FROM items WHERE id = ?`, 1))
	assert.Equal(t, "frame", name)
	assert.Equal(t, DriverSQLite, client.Driver())
}

func TestClient_SQLiteMemoryOutlivesPoolSettings(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name string
		cfg  Config
	}{
		{
			name: "no pool settings",
			cfg:  Config{Driver: DriverSQLite},
		},
		{
			name: "settings that would recycle connections",
			cfg: Config{
				Driver:          DriverSQLite,
				MaxOpenConns:    10,
				MaxIdleConns:    0,
				ConnMaxLifetime: time.Millisecond,
				ConnMaxIdleTime: time.Millisecond,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(&tt.cfg, logger)
			require.NoError(t, err)
			defer client.Close()

			ctx := context.Background()
			require.NoError(t, client.Migrate(ctx, []string{
				`CREATE TABLE frames (seq INTEGER PRIMARY KEY)`,
			}))
			time.Sleep(5 * time.Millisecond)

			for seq := 1; seq <= 3; seq++ {
				require.NoError(t, client.NamedExecContext(ctx, `INSERT INTO frames (seq) VALUES (:seq)`,
					map[string]interface{}{"seq": seq}))
			}

			var seqs []int
			require.NoError(t, client.SelectContext(ctx, &seqs, `SELECT seq FROM frames ORDER BY seq`))
			assert.Equal(t, []int{1, 2, 3}, seqs)

			stats := client.GetDB().Stats()
			assert.Equal(t, 1, stats.MaxOpenConnections)
			assert.Equal(t, 1, stats.OpenConnections)
		})
	}
}
