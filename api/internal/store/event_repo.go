package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"waste-bot/api/internal/session"
)

var ErrNotFound = sql.ErrNoRows

const Schema = `
create table if not exists guidance_events (
    id          bigserial primary key,
    session_id  uuid        not null,
    chat_id     bigint,
    source      text        not null,
    engine      text        not null,
    label       text        not null,
    confidence  double precision not null,
    accepted    boolean     not null,
    frames      integer     not null default 0,
    video_path  text        not null default '',
    created_at  timestamptz not null default now()
);
create index if not exists guidance_events_chat_idx on guidance_events (chat_id, created_at desc);
create index if not exists guidance_events_created_idx on guidance_events (created_at);
`

// Open открывает пул через pgx stdlib-драйвер и проверяет соединение.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("database url is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

type EventRepo struct{ DB *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{DB: db} }

func (r *EventRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, Schema)
	return err
}

// Insert сохраняет событие и возвращает его id.
func (r *EventRepo) Insert(ctx context.Context, ev session.Event) (int64, error) {
	const q = `
insert into guidance_events(session_id, chat_id, source, engine, label, confidence, accepted, frames, video_path, created_at)
values ($1, nullif($2, 0), $3, $4, $5, $6, $7, $8, $9, $10)
returning id`
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	var id int64
	err := r.DB.QueryRowContext(ctx, q,
		ev.SessionID, ev.ChatID, ev.Source, ev.Engine, ev.Label,
		ev.Confidence, ev.Accepted, ev.Frames, ev.VideoPath, at,
	).Scan(&id)
	return id, err
}

// CountByLabel: сколько раз показывалась подсказка по каждой метке с момента since.
func (r *EventRepo) CountByLabel(ctx context.Context, since time.Time) (map[string]int, error) {
	const q = `
select label, count(*)
from guidance_events
where created_at >= $1
group by label`
	rows, err := r.DB.QueryContext(ctx, q, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			label string
			n     int
		)
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		out[label] = n
	}
	return out, rows.Err()
}

// Recent возвращает последние события чата, свежие первыми.
// Если событий нет: ErrNotFound.
func (r *EventRepo) Recent(ctx context.Context, chatID int64, limit int) ([]session.Event, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
select session_id, coalesce(chat_id, 0), source, engine, label, confidence, accepted, frames, video_path, created_at
from guidance_events
where chat_id = $1
order by created_at desc
limit $2`
	rows, err := r.DB.QueryContext(ctx, q, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.Event
	for rows.Next() {
		var ev session.Event
		if err := rows.Scan(&ev.SessionID, &ev.ChatID, &ev.Source, &ev.Engine, &ev.Label,
			&ev.Confidence, &ev.Accepted, &ev.Frames, &ev.VideoPath, &ev.At); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// PurgeOlderThan удаляет события старше maxAge, возвращает число удалённых строк.
func (r *EventRepo) PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `delete from guidance_events where created_at < $1`, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
