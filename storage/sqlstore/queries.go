package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/school"
)

// queries implements school.Tx over a *sqlx.DB (autocommit) or a *sqlx.Tx.
type queries struct {
	exec    sqlx.ExtContext
	sb      sq.StatementBuilderType
	collate string
	now     func() time.Time
}

var _ school.Tx = (*queries)(nil)

// collation returns the ORDER BY suffix sorting text columns byte-wise, in the order sort.Strings gives.
// SQLite's default BINARY collation already does.
func collation(driver string) string {
	if driver == "postgres" {
		return ` COLLATE "C"`
	}
	return ""
}

// orderBy applies the store collation to the text columns of cols; integer columns are left alone.
func (q *queries) orderBy(cols ...string) []string {
	res := make([]string, len(cols))
	for i, c := range cols {
		res[i] = c
		if c != "position" {
			res[i] += q.collate
		}
	}
	return res
}

func (q *queries) Get(ctx context.Context, kind school.Kind, id string) (school.Entity, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	return t.get(ctx, q, id)
}

func (q *queries) List(ctx context.Context, kind school.Kind, filter school.Filter) ([]school.Entity, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	es, err := t.list(ctx, q)
	if err != nil || filter == nil {
		return es, err
	}
	filtered := es[:0]
	for _, e := range es {
		if filter(e) {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

func (q *queries) Insert(ctx context.Context, e school.Entity) (school.Entity, error) {
	t, err := tableFor(e.EntityKind())
	if err != nil {
		return nil, err
	}
	e = school.Stamp(school.Bare(school.Copy(e)), q.now())
	vals, err := t.values(e)
	if err != nil {
		return nil, err
	}
	query, args, err := q.sb.Insert(t.name()).SetMap(vals).ToSql()
	if err != nil {
		return nil, errors.Wrapf(err, "building %s insert", t.name())
	}
	if _, err = q.exec.ExecContext(ctx, query, args...); err != nil {
		return nil, mapErr(err, "inserting "+school.RefOf(e).String())
	}
	return e, nil
}

func (q *queries) Update(ctx context.Context, e school.Entity) (school.Entity, error) {
	t, err := tableFor(e.EntityKind())
	if err != nil {
		return nil, err
	}
	e = school.Bare(school.Copy(e))
	vals, err := t.values(e)
	if err != nil {
		return nil, err
	}
	delete(vals, "id")
	query, args, err := q.sb.Update(t.name()).SetMap(vals).Where(sq.Eq{"id": e.EntityID()}).ToSql()
	if err != nil {
		return nil, errors.Wrapf(err, "building %s update", t.name())
	}
	n, err := q.execAffected(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, "updating "+school.RefOf(e).String())
	}
	if n == 0 {
		return nil, core.NotFound(e.EntityKind(), e.EntityID())
	}
	return e, nil
}

func (q *queries) Delete(ctx context.Context, kind school.Kind, id string) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}
	query, args, err := q.sb.Delete(t.name()).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrapf(err, "building %s delete", t.name())
	}
	n, err := q.execAffected(ctx, query, args...)
	if err != nil {
		return mapErr(err, "deleting "+school.Ref{Kind: kind, ID: id}.String())
	}
	if n == 0 {
		return core.NotFound(kind, id)
	}
	return nil
}

func (q *queries) Links(ctx context.Context, j school.Junction, l school.Link) ([]school.Link, error) {
	col, err := junctionColumn(j)
	if err != nil {
		return nil, err
	}
	b := q.sb.Select("subject_id", col+" AS target_id").From(string(j)).OrderBy(q.orderBy("subject_id", "position")...)
	if where := linkWhere(col, l); len(where) > 0 {
		b = b.Where(where)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrapf(err, "building %s query", j)
	}
	var rows []linkRow
	if err = sqlx.SelectContext(ctx, q.exec, &rows, query, args...); err != nil {
		return nil, errors.Wrapf(err, "querying %s", j)
	}
	links := make([]school.Link, 0, len(rows))
	for _, r := range rows {
		links = append(links, school.Link{SubjectID: r.SubjectID, TargetID: r.TargetID})
	}
	return links, nil
}

// Link appends each link at the end of its subject's link order.
func (q *queries) Link(ctx context.Context, j school.Junction, links ...school.Link) error {
	col, err := junctionColumn(j)
	if err != nil {
		return err
	}
	targetKind := school.KindTeacher
	if j == school.SubjectClasses {
		targetKind = school.KindClass
	}
	for _, l := range links {
		if err = q.mustExist(ctx, school.KindSubject, l.SubjectID, "subjectId"); err != nil {
			return err
		}
		if err = q.mustExist(ctx, targetKind, l.TargetID, "targetId"); err != nil {
			return err
		}
		nextPosition := sq.Expr("(SELECT COALESCE(MAX(position), 0) + 1 FROM "+string(j)+" WHERE subject_id = ?)", l.SubjectID)
		query, args, err := q.sb.Insert(string(j)).
			Columns("subject_id", col, "position").
			Values(l.SubjectID, l.TargetID, nextPosition).
			Suffix("ON CONFLICT (subject_id, " + col + ") DO NOTHING").
			ToSql()
		if err != nil {
			return errors.Wrapf(err, "building %s insert", j)
		}
		if _, err = q.exec.ExecContext(ctx, query, args...); err != nil {
			return mapErr(err, "linking "+string(j))
		}
	}
	return nil
}

func (q *queries) Unlink(ctx context.Context, j school.Junction, l school.Link) (int, error) {
	col, err := junctionColumn(j)
	if err != nil {
		return 0, err
	}
	b := q.sb.Delete(string(j))
	if where := linkWhere(col, l); len(where) > 0 {
		b = b.Where(where)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return 0, errors.Wrapf(err, "building %s delete", j)
	}
	n, err := q.execAffected(ctx, query, args...)
	if err != nil {
		return 0, mapErr(err, "unlinking "+string(j))
	}
	return int(n), nil
}

func (q *queries) UpsertAttendance(ctx context.Context, a school.Attendance) (school.Attendance, error) {
	a.ID = ""
	a = school.Stamp(a, q.now()).(school.Attendance)
	query, args, err := q.sb.Insert("attendance").
		SetMap(boilAttendance(a).columns()).
		Suffix("ON CONFLICT (student_id, subject_id, date) DO UPDATE SET " +
			"class_id = excluded.class_id, status = excluded.status, marked_by = excluded.marked_by " +
			"RETURNING id").
		ToSql()
	if err != nil {
		return school.Attendance{}, errors.Wrap(err, "building attendance upsert")
	}
	if err = q.exec.QueryRowxContext(ctx, query, args...).Scan(&a.ID); err != nil {
		return school.Attendance{}, mapErr(err, "upserting attendance")
	}
	return a, nil
}

func (q *queries) mustExist(ctx context.Context, kind school.Kind, id, field string) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}
	query, args, err := q.sb.Select("COUNT(*)").From(t.name()).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrapf(err, "building %s query", t.name())
	}
	var n int
	if err = sqlx.GetContext(ctx, q.exec, &n, query, args...); err != nil {
		return errors.Wrapf(err, "querying %s", t.name())
	}
	if n == 0 {
		return core.NewFieldError(field, string(kind)+" "+id+" does not exist")
	}
	return nil
}

func (q *queries) execAffected(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := q.exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func linkWhere(col string, l school.Link) sq.Eq {
	where := sq.Eq{}
	if l.SubjectID != "" {
		where["subject_id"] = l.SubjectID
	}
	if l.TargetID != "" {
		where[col] = l.TargetID
	}
	return where
}
