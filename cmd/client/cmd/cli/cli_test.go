package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelsync/internal/app/client"
	"hotelsync/internal/utils/logger"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"yes", true},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			got, err := Confirm(strings.NewReader(tt.input), &out, "Discard item?")

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "Discard item? [y/N]: ", out.String())
		})
	}
}

func TestAsk_EmptyInput(t *testing.T) {
	_, err := Ask(strings.NewReader(""), &bytes.Buffer{}, "? ")
	assert.Error(t, err)
}

func TestClient(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	_, err := Client(cmd)
	assert.ErrorIs(t, err, ErrNoClient)

	c := client.New("127.0.0.1:8787", "", time.Second, logger.Discard())
	cmd.SetContext(client.NewContext(context.Background(), c))
	got, err := Client(cmd)
	require.NoError(t, err)
	assert.Same(t, c, got)
}

func TestFormat(t *testing.T) {
	cmd := &cobra.Command{}
	assert.Equal(t, "table", Format(cmd))

	cmd.Flags().StringP("output", "o", "table", "")
	require.NoError(t, cmd.Flags().Set("output", "yaml"))
	assert.Equal(t, "yaml", Format(cmd))
}
