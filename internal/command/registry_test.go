package command

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/fsgate/internal/apperr"
	"github.com/starford/fsgate/internal/gateway"
)

type fakeExecutor struct {
	calls []gateway.PathRequest
	res   gateway.Result
}

func (f *fakeExecutor) Do(_ context.Context, _ string, req gateway.PathRequest) gateway.Result {
	f.calls = append(f.calls, req)
	if f.res.Op == "" {
		return gateway.Result{Op: req.Op}
	}
	return f.res
}

func TestInvoke_DecodesRequests(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		raw      string
		wantPath string
		wantBody *string
	}{
		{"create_dir", "create_dir", `{"path":"a/b"}`, "a/b", nil},
		{"read_file", "read_file", `{"path":"/abs/f.txt"}`, "/abs/f.txt", nil},
		{"write_file", "write_file", `{"path":"f.txt","contents":"hi"}`, "f.txt", ptr("hi")},
		{"write_file empty contents", "write_file", `{"path":"f.txt","contents":""}`, "f.txt", ptr("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{}
			res := NewRegistry(exec).Invoke(context.Background(), "test", tt.command, json.RawMessage(tt.raw))
			require.True(t, res.OK(), res.Err())
			require.Len(t, exec.calls, 1)
			assert.Equal(t, gateway.Op(tt.command), exec.calls[0].Op)
			assert.Equal(t, tt.wantPath, exec.calls[0].Path)
			assert.Equal(t, tt.wantBody, exec.calls[0].Contents)
		})
	}
}

func TestInvoke_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		command string
		raw     string
	}{
		{"unknown command", "delete_file", `{"path":"x"}`},
		{"malformed json", "read_file", `{"path":`},
		{"wrong type", "read_file", `{"path":42}`},
		{"empty path", "create_dir", `{"path":""}`},
		{"missing params", "read_file", ``},
		{"write without contents", "write_file", `{"path":"f.txt"}`},
		{"write with null contents", "write_file", `{"path":"f.txt","contents":null}`},
		{"contents on read", "read_file", `{"path":"f.txt","contents":"x"}`},
		{"unknown field", "create_dir", `{"path":"x","mode":"0700"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{}
			res := NewRegistry(exec).Invoke(context.Background(), "test", tt.command, json.RawMessage(tt.raw))
			require.False(t, res.OK())
			assert.Equal(t, apperr.InvalidArgument, res.Failure.Kind)
			assert.Empty(t, exec.calls, "invalid input must not reach the executor")
		})
	}
}

func TestInvoke_PassesResultThrough(t *testing.T) {
	exec := &fakeExecutor{res: gateway.Failed(gateway.OpReadFile, apperr.Newf(apperr.NotFound, "read_file", "x", "no such file"))}
	res := NewRegistry(exec).Invoke(context.Background(), "test", "read_file", json.RawMessage(`{"path":"x"}`))
	require.False(t, res.OK())
	assert.Equal(t, apperr.NotFound, res.Failure.Kind)
}

func TestDescribe(t *testing.T) {
	descs := NewRegistry(&fakeExecutor{}).Describe()
	require.Len(t, descs, 3)

	names := []string{descs[0].Name, descs[1].Name, descs[2].Name}
	assert.Equal(t, []string{"create_dir", "read_file", "write_file"}, names)

	for _, d := range descs {
		assert.NotEmpty(t, d.Description, d.Name)
		require.NotNil(t, d.Params, d.Name)
		assert.Contains(t, d.Params.Required, "path", d.Name)
	}

	write, ok := NewRegistry(&fakeExecutor{}).Lookup("write_file")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"path", "contents"}, write.Params.Required)

	raw, err := json.Marshal(write.Params)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"contents"`)
	assert.Contains(t, string(raw), `"additionalProperties":false`)
}

func TestLookup_Unknown(t *testing.T) {
	_, ok := NewRegistry(&fakeExecutor{}).Lookup("nope")
	assert.False(t, ok)
}

func ptr(s string) *string { return &s }
