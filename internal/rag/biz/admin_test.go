package biz_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ai-router/internal/model"
	"github.com/kart-io/ai-router/internal/rag/biz"
	"github.com/kart-io/ai-router/pkg/authz"
	"github.com/kart-io/ai-router/pkg/utils/errors"
)

const adminID = 100

func newAdmin(t *testing.T) (*biz.AdminCommands, *fixture) {
	t.Helper()
	fx := newFixture(t, nil)
	enf, err := authz.NewEnforcer([]int64{adminID})
	require.NoError(t, err)
	return biz.NewAdminCommands(fx.svc, enf), fx
}

func TestAdminCommands_RequiresAdmin(t *testing.T) {
	admin, _ := newAdmin(t)

	_, err := admin.Execute(context.Background(), 7, "#rag list")
	assert.True(t, stderrors.Is(err, errors.ErrRAGNotAdmin))

	_, err = admin.Execute(context.Background(), adminID, "hello")
	assert.True(t, stderrors.Is(err, errors.ErrRAGInvalidCommand))
}

func TestAdminCommands_Help(t *testing.T) {
	admin, _ := newAdmin(t)
	ctx := context.Background()

	for _, cmd := range []string{"#rag", "#RAG help", "  #rag   help  "} {
		reply, err := admin.Execute(ctx, adminID, cmd)
		require.NoError(t, err)
		assert.Contains(t, reply, "#rag list [active|archived|deleted|all] [limit]", cmd)
	}

	reply, err := admin.Execute(ctx, adminID, "#rag frobnicate")
	require.NoError(t, err)
	assert.Contains(t, reply, "Unknown command.")
}

func TestAdminCommands_Lifecycle(t *testing.T) {
	admin, fx := newAdmin(t)
	ctx := context.Background()
	doc := fx.ingest(t, "errors.txt", e101Doc)
	id := fmt.Sprint(doc.DocumentID)

	reply, err := admin.Execute(ctx, adminID, "#rag list")
	require.NoError(t, err)
	assert.Contains(t, reply, "- ID "+id+" | active | errors.txt | chunks: 1")

	reply, err = admin.Execute(ctx, adminID, "#rag info "+id)
	require.NoError(t, err)
	assert.Contains(t, reply, "File: errors.txt")
	assert.Contains(t, reply, "URL: -")

	reply, err = admin.Execute(ctx, adminID, "#rag archive "+id)
	require.NoError(t, err)
	assert.Equal(t, "Document archived.", reply)

	reply, err = admin.Execute(ctx, adminID, "#rag list active")
	require.NoError(t, err)
	assert.Equal(t, "No documents.", reply)

	reply, err = admin.Execute(ctx, adminID, "#rag restore "+id)
	require.NoError(t, err)
	assert.Equal(t, "Document restored to active.", reply)

	reply, err = admin.Execute(ctx, adminID, "#rag delete "+id)
	require.NoError(t, err)
	assert.Equal(t, "Document marked as deleted.", reply)

	got, err := fx.svc.Get(ctx, doc.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusDeleted, got.Status)
	assert.Equal(t, int64(adminID), got.UpdatedBy)

	reply, err = admin.Execute(ctx, adminID, "#rag stats")
	require.NoError(t, err)
	assert.Contains(t, reply, "deleted: 1")
	assert.Contains(t, reply, "Chunks: 1")

	reply, err = admin.Execute(ctx, adminID, "#rag purge "+id)
	require.NoError(t, err)
	assert.Equal(t, "Document permanently removed.", reply)

	reply, err = admin.Execute(ctx, adminID, "#rag purge "+id)
	require.NoError(t, err)
	assert.Equal(t, "Document not found.", reply)
}

func TestAdminCommands_ArgumentErrors(t *testing.T) {
	admin, _ := newAdmin(t)
	ctx := context.Background()

	tests := []struct {
		cmd  string
		want string
	}{
		{"#rag info", "Usage: #rag info <id>"},
		{"#rag archive abc", "Invalid document ID."},
		{"#rag purge -3", "Invalid document ID."},
		{"#rag info 42", "Document not found."},
		{"#rag restore 42", "Document not found."},
		{"#rag list pending", "Unknown status. Use active, archived, deleted or all."},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			reply, err := admin.Execute(ctx, adminID, tt.cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply)
		})
	}
}
