package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gocql/gocql"

	"souq_back_end/internal/models"
)

type AuditRepository struct {
	session SessionFunc
}

func NewAuditRepository(session SessionFunc) *AuditRepository {
	return &AuditRepository{session: session}
}

func (r *AuditRepository) Insert(ctx context.Context, entry models.AuditLog) error {
	session, err := r.session()
	if err != nil {
		return err
	}

	if entry.ID == (gocql.UUID{}) {
		entry.ID = gocql.TimeUUID()
	}

	err = session.Query(`INSERT INTO audit_logs (
			id, actor, action, resource, resource_id, new_value,
			ip_address, user_agent, success, error_msg, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Actor, entry.Action, entry.Resource, entry.ResourceID, entry.NewValue,
		entry.IPAddress, entry.UserAgent, entry.Success, entry.ErrorMsg, entry.Timestamp,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// AuditFilter narrows List. Empty fields match everything.
type AuditFilter struct {
	Actor    string
	Action   string
	Resource string
	Success  *bool
}

// List returns up to limit entries matching f, newest first.
func (r *AuditRepository) List(ctx context.Context, f AuditFilter, limit int) ([]models.AuditLog, error) {
	session, err := r.session()
	if err != nil {
		return nil, err
	}

	var conditions []string
	var args []interface{}
	if f.Actor != "" {
		conditions = append(conditions, "actor = ?")
		args = append(args, f.Actor)
	}
	if f.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, f.Action)
	}
	if f.Resource != "" {
		conditions = append(conditions, "resource = ?")
		args = append(args, f.Resource)
	}
	if f.Success != nil {
		conditions = append(conditions, "success = ?")
		args = append(args, *f.Success)
	}

	query := `SELECT id, actor, action, resource, resource_id, new_value,
		ip_address, user_agent, success, error_msg, timestamp FROM audit_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " LIMIT ?"
	args = append(args, limit)
	if len(conditions) > 0 {
		query += " ALLOW FILTERING"
	}

	iter := session.Query(query, args...).WithContext(ctx).Iter()
	var logs []models.AuditLog
	var e models.AuditLog
	for iter.Scan(&e.ID, &e.Actor, &e.Action, &e.Resource, &e.ResourceID, &e.NewValue,
		&e.IPAddress, &e.UserAgent, &e.Success, &e.ErrorMsg, &e.Timestamp) {
		logs = append(logs, e)
		e = models.AuditLog{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}

	sort.Slice(logs, func(i, j int) bool { return logs[i].Timestamp.After(logs[j].Timestamp) })
	return logs, nil
}
