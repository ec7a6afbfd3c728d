package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBatchResponse(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		n         int
		wantErr   bool
		valid     []int
		rejected  map[int]string
		wantAdvis string
	}{
		{
			name:      "plain object",
			text:      `{"items":[{"index":0,"covered":true,"confidence":0.9}],"suggested_decision":"approve"}`,
			n:         1,
			valid:     []int{0},
			wantAdvis: "APPROVE",
		},
		{
			name:  "prose around fenced json",
			text:  "Here you go:\n```json\n{\"items\":[{\"index\":0,\"covered\":false,\"confidence\":0.7}]}\n```",
			n:     1,
			valid: []int{0},
		},
		{
			name:     "duplicate index",
			text:     `{"items":[{"index":0,"covered":true,"confidence":0.9},{"index":0,"covered":false,"confidence":0.9},{"index":1,"covered":true,"confidence":0.9}]}`,
			n:        2,
			valid:    []int{1},
			rejected: map[int]string{0: "duplicate"},
		},
		{
			name:  "out of range index ignored",
			text:  `{"items":[{"index":5,"covered":true,"confidence":0.9},{"index":-1,"covered":true,"confidence":0.9}]}`,
			n:     2,
			valid: nil,
		},
		{
			name:     "confidence out of range",
			text:     `{"items":[{"index":0,"covered":true,"confidence":1.5}]}`,
			n:        1,
			rejected: map[int]string{0: "outside"},
		},
		{
			name:     "missing covered",
			text:     `{"items":[{"index":0,"confidence":0.9}]}`,
			n:        1,
			rejected: map[int]string{0: "covered"},
		},
		{
			name:    "no object",
			text:    "sorry",
			n:       1,
			wantErr: true,
		},
		{
			name:    "no items",
			text:    `{"suggested_decision":"APPROVE"}`,
			n:       1,
			wantErr: true,
		},
		{
			name:    "broken json",
			text:    `{"items":[{"index":0,}`,
			n:       1,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := parseBatchResponse(tt.text, tt.n)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnparseable)
				return
			}
			require.NoError(t, err)

			assert.Len(t, resp.verdicts, len(tt.valid))
			for _, idx := range tt.valid {
				_, problem := resp.lookup(idx)
				assert.Empty(t, problem, "index %d", idx)
			}
			for idx, want := range tt.rejected {
				_, problem := resp.lookup(idx)
				assert.Contains(t, problem, want)
			}
			assert.Equal(t, tt.wantAdvis, resp.suggestedDecision)
		})
	}
}

func TestChunk(t *testing.T) {
	in := items("a1", "a2", "a3", "a4", "a5")
	batches := chunk(in, 2)
	require.Len(t, batches, 3)
	assert.Len(t, batches[2], 1)
	assert.Equal(t, 4, batches[2][0].Index)
}
