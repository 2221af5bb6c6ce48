package whoami

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/docflow-session-go/pkg/cmd/output"
	"github.com/mpapenbr/docflow-session-go/pkg/session"
	"github.com/mpapenbr/docflow-session-go/pkg/storage/impl/memory"
	"github.com/mpapenbr/docflow-session-go/pkg/tokenstore"
	"github.com/mpapenbr/docflow-session-go/testsupport/testtoken"
)

func TestPrintUser(t *testing.T) {
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)
	tests := []struct {
		name   string
		tokens *tokenstore.TokenSet
		format output.Format
		want   string
	}{
		{
			name:   "not logged in",
			format: output.FormatText,
			want:   "not logged in\n",
		},
		{
			name:   "not logged in json",
			format: output.FormatJSON,
			want:   "null\n",
		},
		{
			name:   "approver",
			format: output.FormatText,
			tokens: &tokenstore.TokenSet{
				IDToken:     testtoken.IDToken(exp, []string{"Approver"}),
				AccessToken: testtoken.AccessToken(exp),
			},
			want: "name:   Jane Doe\n" +
				"email:  jane.doe@example.com\n" +
				"role:   Approver\n" +
				"groups: Approver\n",
		},
		{
			name:   "approver yaml",
			format: output.FormatYAML,
			tokens: &tokenstore.TokenSet{
				IDToken:     testtoken.IDToken(exp, []string{"Approver"}),
				AccessToken: testtoken.AccessToken(exp),
			},
			want: "displayName: Jane Doe\n" +
				"email: jane.doe@example.com\n" +
				"role: Approver\n" +
				"groups:\n" +
				"  - Approver\n" +
				"sub: 3f1c1e2a-8a7b-4c1d-9a53-0b7c52d1e001\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tokenstore.New(memory.NewStorage(nil), nil)
			if tt.tokens != nil {
				require.NoError(t, store.Set(ctx, *tt.tokens))
			}
			var buf bytes.Buffer
			require.NoError(t, printUser(ctx, &buf, session.New(store), tt.format))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}
