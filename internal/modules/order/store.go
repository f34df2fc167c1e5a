// README: Order store backed by PostgreSQL. The aggregate row lives in
// orders; job selections and worker memberships live in relation tables.
package order

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"usta/internal/types"
)

// Store is the durable side of the coordinator. All aggregate writes
// happen inside the per-order critical section, so Update may replace
// the membership rows wholesale.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	Update(ctx context.Context, o *Order) error

	// ClaimWorker atomically flips a worker idle→working and reports
	// whether the claim won. This backs the single-booking invariant
	// across orders.
	ClaimWorker(ctx context.Context, workerID types.ID) (bool, error)
	ReleaseWorker(ctx context.Context, workerID types.ID) error
	SavePoint(ctx context.Context, workerID types.ID, p types.Point) error

	ListByClient(ctx context.Context, clientID types.ID) ([]*Order, error)
	WorkerStats(ctx context.Context, workerID types.ID) (WorkerStats, error)
	ClientStats(ctx context.Context, clientID types.ID) (ClientStats, error)
}

// Membership relation names as stored in order_workers.relation.
const (
	relNotified = "notified"
	relAccepted = "accepted"
	relRejected = "rejected"
	relFinished = "finished"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, o *Order) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
        INSERT INTO orders (
            id, client_id, worker_id, job_category, region, city, gender,
            descr, full_desc, price, worker_count, client_is_finished,
            status, lat, lng, created_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7,
            $8, $9, $10, $11, $12,
            $13, $14, $15, $16
        )`,
		string(o.ID),
		string(o.ClientID),
		idPtr(o.WorkerID),
		o.JobCategory, o.Region, o.City, o.Gender,
		o.Desc, o.FullDesc, o.Price, o.WorkerCount, o.ClientIsFinished,
		string(o.Status),
		o.Location.Lat, o.Location.Lng,
		o.CreatedAt,
	)
	if err != nil {
		return err
	}
	for _, jobID := range o.JobIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO order_jobs (order_id, job_id) VALUES ($1, $2)`,
			string(o.ID), jobID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, client_id, worker_id, job_category, region, city, gender,
               descr, full_desc, price, worker_count, client_is_finished,
               status, lat, lng, created_at
        FROM orders
        WHERE id = $1`, string(id),
	)

	var o Order
	var workerID *string
	err := row.Scan(
		&o.ID, &o.ClientID, &workerID, &o.JobCategory, &o.Region, &o.City, &o.Gender,
		&o.Desc, &o.FullDesc, &o.Price, &o.WorkerCount, &o.ClientIsFinished,
		&o.Status, &o.Location.Lat, &o.Location.Lng, &o.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if workerID != nil {
		w := types.ID(*workerID)
		o.WorkerID = &w
	}

	rows, err := s.db.Query(ctx,
		`SELECT job_id FROM order_jobs WHERE order_id = $1`, string(id))
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var jobID int64
		if err := rows.Scan(&jobID); err != nil {
			rows.Close()
			return nil, err
		}
		o.JobIDs = append(o.JobIDs, jobID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	o.Notified = NewWorkerSet()
	o.Accepted = NewWorkerSet()
	o.Rejected = NewWorkerSet()
	o.Finished = NewWorkerSet()
	rows, err = s.db.Query(ctx,
		`SELECT worker_id, relation FROM order_workers WHERE order_id = $1`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var workerID, relation string
		if err := rows.Scan(&workerID, &relation); err != nil {
			return nil, err
		}
		switch relation {
		case relNotified:
			o.Notified.Add(types.ID(workerID))
		case relAccepted:
			o.Accepted.Add(types.ID(workerID))
		case relRejected:
			o.Rejected.Add(types.ID(workerID))
		case relFinished:
			o.Finished.Add(types.ID(workerID))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PGStore) Update(ctx context.Context, o *Order) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
        UPDATE orders
        SET worker_id = $2, status = $3, client_is_finished = $4
        WHERE id = $1`,
		string(o.ID), idPtr(o.WorkerID), string(o.Status), o.ClientIsFinished,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrOrderNotFound
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM order_workers WHERE order_id = $1`, string(o.ID)); err != nil {
		return err
	}
	for relation, set := range map[string]WorkerSet{
		relNotified: o.Notified,
		relAccepted: o.Accepted,
		relRejected: o.Rejected,
		relFinished: o.Finished,
	} {
		for _, workerID := range set.Members() {
			if _, err := tx.Exec(ctx,
				`INSERT INTO order_workers (order_id, worker_id, relation) VALUES ($1, $2, $3)`,
				string(o.ID), string(workerID), relation); err != nil {
				return err
			}
		}
	}
	return tx.Commit(ctx)
}

func (s *PGStore) ClaimWorker(ctx context.Context, workerID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE users
        SET status = 'working'
        WHERE id = $1 AND role = 'worker' AND status = 'idle'`,
		string(workerID),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) ReleaseWorker(ctx context.Context, workerID types.ID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE users SET status = 'idle' WHERE id = $1 AND role = 'worker'`,
		string(workerID))
	return err
}

func (s *PGStore) SavePoint(ctx context.Context, workerID types.ID, p types.Point) error {
	_, err := s.db.Exec(ctx,
		`UPDATE users SET lat = $2, lng = $3 WHERE id = $1`,
		string(workerID), p.Lat, p.Lng)
	return err
}

// ListByClient returns the client's in-progress and finished orders,
// in-progress first, newest first within each group.
func (s *PGStore) ListByClient(ctx context.Context, clientID types.ID) ([]*Order, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id FROM orders
        WHERE client_id = $1 AND status IN ('in_progress', 'success')
        ORDER BY CASE status WHEN 'in_progress' THEN 0 ELSE 1 END, created_at DESC`,
		string(clientID),
	)
	if err != nil {
		return nil, err
	}
	var ids []types.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, types.ID(id))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*Order, 0, len(ids))
	for _, id := range ids {
		o, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *PGStore) WorkerStats(ctx context.Context, workerID types.ID) (WorkerStats, error) {
	var stats WorkerStats
	err := s.db.QueryRow(ctx, `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE o.status = 'success'),
               COUNT(*) FILTER (WHERE o.status = 'cancel_client')
        FROM orders o
        JOIN order_workers ow ON ow.order_id = o.id
        WHERE ow.worker_id = $1 AND ow.relation = 'accepted'`,
		string(workerID),
	).Scan(&stats.Total, &stats.Success, &stats.CancelClient)
	return stats, err
}

func (s *PGStore) ClientStats(ctx context.Context, clientID types.ID) (ClientStats, error) {
	var stats ClientStats
	err := s.db.QueryRow(ctx, `
        SELECT COUNT(*) FILTER (WHERE status = 'cancel_client'),
               COUNT(*) FILTER (WHERE status = 'in_progress'),
               COUNT(*) FILTER (WHERE status = 'success')
        FROM orders
        WHERE client_id = $1`,
		string(clientID),
	).Scan(&stats.Cancelled, &stats.Active, &stats.Completed)
	return stats, err
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
