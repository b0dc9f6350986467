package serv

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dosco/docfind/memdriver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestWatchFilters(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "filters", "users.yml")

	c := &Config{Serv: Serv{
		ConfigPath: dir,
		Filters:    Filters{Watch: true},
	}}
	s, err := NewService(c,
		OptionSetStore(memdriver.New()),
		OptionSetLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer s.Close(context.Background()) //nolint:errcheck

	require.NotNil(t, s.watcher)

	require.NoError(t, os.WriteFile(fp, []byte("collection: users\nlimit: 1\n"), 0o600))

	f, err := s.Filters().Get("users")
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.Limit)

	require.NoError(t, os.WriteFile(fp, []byte("collection: users\nlimit: 5\n"), 0o600))

	assert.Eventually(t, func() bool {
		f, err := s.Filters().Get("users")
		return err == nil && f.Limit == 5
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatchFiltersDisabled(t *testing.T) {
	tests := []struct {
		name string
		serv Serv
	}{
		{name: "production", serv: Serv{Production: true, Filters: Filters{Watch: true}}},
		{name: "not enabled", serv: Serv{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.serv.ConfigPath = t.TempDir()

			s, err := NewService(&Config{Serv: tt.serv},
				OptionSetStore(memdriver.New()),
				OptionSetLogger(zaptest.NewLogger(t)))
			require.NoError(t, err)
			defer s.Close(context.Background()) //nolint:errcheck

			assert.Nil(t, s.watcher)
		})
	}
}
