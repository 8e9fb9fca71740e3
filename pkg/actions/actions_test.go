package actions_test

import (
	"testing"

	"github.com/hivedesk/hivedesk/pkg/actions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		kind     actions.Kind
		payload  string
		wantErr  error
		validate func(t *testing.T, a actions.Action)
	}{
		{
			name:    "forward with required fields",
			kind:    actions.KindForward,
			payload: `{"to_node": "n2", "explanation": "done"}`,
			validate: func(t *testing.T, a actions.Action) {
				t.Helper()
				fwd, ok := a.(actions.Forward)
				require.True(t, ok)
				assert.Equal(t, "n2", fwd.ToNode)
				assert.Equal(t, "done", fwd.Explanation)
			},
		},
		{
			name:    "forward without explanation",
			kind:    actions.KindForward,
			payload: `{"to_node": "n2"}`,
			wantErr: actions.ErrMissingField,
		},
		{
			name:    "forward without target",
			kind:    actions.KindForward,
			payload: `{"explanation": "done"}`,
			wantErr: actions.ErrMissingField,
		},
		{
			name:    "revert without message",
			kind:    actions.KindRevert,
			payload: `{}`,
			wantErr: actions.ErrMissingField,
		},
		{
			name:    "reassign with empty list",
			kind:    actions.KindReassign,
			payload: `{"reassign_to": []}`,
			wantErr: actions.ErrMissingField,
		},
		{
			name:    "reassign with incomplete identity",
			kind:    actions.KindReassign,
			payload: `{"reassign_to": [{"user_id": "bob"}]}`,
			wantErr: actions.ErrUnresolvableIdentity,
		},
		{
			name:    "form_group with a single member",
			kind:    actions.KindFormGroup,
			payload: `{"group_lead": {"user_id": "bob", "name": "Bob"}, "group_members": [{"user_id": "bob", "name": "Bob"}]}`,
			wantErr: actions.ErrMissingField,
		},
		{
			name:    "form_group with lead absent from members",
			kind:    actions.KindFormGroup,
			payload: `{"group_lead": {"user_id": "bob", "name": "Bob"}, "group_members": [{"user_id": "carol", "name": "Carol"}, {"user_id": "dave", "name": "Dave"}]}`,
			wantErr: actions.ErrMissingField,
		},
		{
			name:    "blocker without description",
			kind:    actions.KindBlockerReported,
			payload: `{}`,
			wantErr: actions.ErrMissingField,
		},
		{
			name:    "reopen without target",
			kind:    actions.KindReopen,
			payload: `{}`,
			wantErr: actions.ErrMissingField,
		},
		{
			name: "parameterless kinds accept empty payloads",
			kind: actions.KindResolve,
			validate: func(t *testing.T, a actions.Action) {
				t.Helper()
				assert.Equal(t, actions.KindResolve, a.Kind())
			},
		},
		{
			name:    "unknown action",
			kind:    actions.Kind("escalate"),
			wantErr: actions.ErrUnknownAction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			action, err := actions.Parse(tt.kind, []byte(tt.payload))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			require.NotNil(t, action)
			assert.Equal(t, tt.kind, action.Kind())

			if tt.validate != nil {
				tt.validate(t, action)
			}
		})
	}
}

func TestParse_AttachmentsDecodeFromBase64(t *testing.T) {
	t.Parallel()

	payload := `{"to_node": "n2", "explanation": "spec attached", "attachments": [{"name": "spec.pdf", "data": "aGVsbG8=", "mime_type": "application/pdf"}]}`

	action, err := actions.Parse(actions.KindForward, []byte(payload))
	require.NoError(t, err)

	fwd, ok := action.(actions.Forward)
	require.True(t, ok)
	require.Len(t, fwd.Attachments, 1)
	assert.Equal(t, "spec.pdf", fwd.Attachments[0].Name)
	assert.Equal(t, []byte("hello"), fwd.Attachments[0].Data)
}
