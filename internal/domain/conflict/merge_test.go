package conflict

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		local  string
		server string
		want   string
	}{
		{
			name:   "disjoint fields",
			base:   `{"status":"open","table":4}`,
			local:  `{"status":"paid","table":4}`,
			server: `{"status":"open","table":7}`,
			want:   `{"status":"paid","table":7}`,
		},
		{
			name:   "same change on both sides",
			base:   `{"status":"open"}`,
			local:  `{"status":"paid"}`,
			server: `{"status":"paid"}`,
			want:   `{"status":"paid"}`,
		},
		{
			name:   "field added locally and removed on server",
			base:   `{"a":1,"b":2}`,
			local:  `{"a":1,"b":2,"c":3}`,
			server: `{"a":1}`,
			want:   `{"a":1,"c":3}`,
		},
		{
			name:   "text edits in different places",
			base:   `{"note":"Guest arrives late. Needs extra towels."}`,
			local:  `{"note":"Guest arrives late, around 23:00. Needs extra towels."}`,
			server: `{"note":"Guest arrives late. Needs extra towels and a crib."}`,
			want:   `{"note":"Guest arrives late, around 23:00. Needs extra towels and a crib."}`,
		},
		{
			name:   "field removed locally",
			base:   `{"status":"open","table":4,"note":"window"}`,
			local:  `{"status":"open","table":4}`,
			server: `{"status":"open","table":7,"note":"window"}`,
			want:   `{"status":"open","table":7}`,
		},
		{
			name:   "field removed on both sides",
			base:   `{"status":"open","note":"window"}`,
			local:  `{"status":"paid"}`,
			server: `{"status":"open"}`,
			want:   `{"status":"paid"}`,
		},
		{
			name:   "no base",
			base:   ``,
			local:  `{"qty":2}`,
			server: `{"price":5}`,
			want:   `{"price":5,"qty":2}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var base json.RawMessage
			if tt.base != "" {
				base = json.RawMessage(tt.base)
			}
			got, err := Merge(base, json.RawMessage(tt.local), json.RawMessage(tt.server))
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestMerge_Refuses(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		local  string
		server string
		fields []string
	}{
		{
			name:   "numbers changed on both sides",
			base:   `{"price":5,"qty":1}`,
			local:  `{"price":6,"qty":1}`,
			server: `{"price":7,"qty":1}`,
			fields: []string{"price"},
		},
		{
			name:   "edited locally, removed on server",
			base:   `{"note":"a","qty":1}`,
			local:  `{"note":"b","qty":1}`,
			server: `{"qty":1}`,
			fields: []string{"note"},
		},
		{
			name:   "added on both sides differently",
			base:   `{}`,
			local:  `{"room":"101","vip":true}`,
			server: `{"room":"205","vip":false}`,
			fields: []string{"room", "vip"},
		},
		{
			name:   "no base and different values",
			base:   ``,
			local:  `{"note":"late arrival","qty":2}`,
			server: `{"note":"early arrival","qty":2}`,
			fields: []string{"note"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var base json.RawMessage
			if tt.base != "" {
				base = json.RawMessage(tt.base)
			}
			_, err := Merge(base, json.RawMessage(tt.local), json.RawMessage(tt.server))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnmergeable)

			var merr *MergeError
			require.True(t, errors.As(err, &merr))
			assert.Equal(t, tt.fields, merr.Fields)
		})
	}
}

func TestMerge_RejectsNonObjects(t *testing.T) {
	_, err := Merge(nil, json.RawMessage(`[1]`), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrInvalidMerged)
}
