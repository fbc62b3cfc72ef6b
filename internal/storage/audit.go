package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"path"

	"github.com/google/uuid"
	"github.com/qnahub/apiserver/types"
	"github.com/samber/oops"
)

const auditPrefix = "moderation"

// AuditArchive writes moderation audit records as JSON objects keyed by day:
// moderation/YYYY/MM/DD/<uuid>.json.
type AuditArchive struct {
	store ObjectStorage
}

func NewAuditArchive(store ObjectStorage) *AuditArchive {
	return &AuditArchive{store: store}
}

// Record stores one audit record.
func (a *AuditArchive) Record(ctx context.Context, audit types.ModerationAudit) error {
	data, err := json.Marshal(audit)
	if err != nil {
		return oops.Code("AUDIT_ENCODE").Wrap(err)
	}

	key := auditKey(audit)
	if err := a.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return oops.Code("AUDIT_WRITE").With("key", key).Wrap(err)
	}
	return nil
}

func auditKey(audit types.ModerationAudit) string {
	return path.Join(auditPrefix, audit.RecordedAt.UTC().Format("2006/01/02"), uuid.NewString()+".json")
}
