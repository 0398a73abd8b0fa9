package sqlstore

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/school"
)

type (
	row interface {
		columns() map[string]interface{}
	}

	// table maps one entity kind to its relational table.
	table interface {
		name() string
		get(ctx context.Context, q *queries, id string) (school.Entity, error)
		list(ctx context.Context, q *queries) ([]school.Entity, error)
		values(e school.Entity) (map[string]interface{}, error)
	}

	tableOf[R row, E school.Entity] struct {
		table  string
		boil   func(E) R
		unboil func(R) (E, error)
	}
)

var tables = map[school.Kind]table{
	school.KindUser:         tableOf[userRow, school.User]{"users", boilUser, unboilUser},
	school.KindStudent:      tableOf[studentRow, school.Student]{"students", boilStudent, infallible(unboilStudent)},
	school.KindTeacher:      tableOf[teacherRow, school.Teacher]{"teachers", boilTeacher, infallible(unboilTeacher)},
	school.KindClass:        tableOf[classRow, school.ClassGroup]{"classes", boilClass, infallible(unboilClass)},
	school.KindSubject:      tableOf[subjectRow, school.Subject]{"subjects", boilSubject, infallible(unboilSubject)},
	school.KindAttendance:   tableOf[attendanceRow, school.Attendance]{"attendance", boilAttendance, infallible(unboilAttendance)},
	school.KindGrade:        tableOf[gradeRow, school.Grade]{"grades", boilGrade, infallible(unboilGrade)},
	school.KindAssignment:   tableOf[assignmentRow, school.Assignment]{"assignments", boilAssignment, unboilAssignment},
	school.KindSubmission:   tableOf[submissionRow, school.Submission]{"submissions", boilSubmission, infallible(unboilSubmission)},
	school.KindAnnouncement: tableOf[announcementRow, school.Announcement]{"announcements", boilAnnouncement, unboilAnnouncement},
	school.KindMessage:      tableOf[messageRow, school.Message]{"messages", boilMessage, infallible(unboilMessage)},
	school.KindTimetable:    tableOf[timetableRow, school.TimetableEntry]{"timetable", boilTimetable, infallible(unboilTimetable)},
}

// junction table -> target column
var junctions = map[school.Junction]string{
	school.SubjectTeachers: "teacher_id",
	school.SubjectClasses:  "class_id",
}

func infallible[R, E any](unboil func(R) E) func(R) (E, error) {
	return func(r R) (E, error) { return unboil(r), nil }
}

func tableFor(kind school.Kind) (table, error) {
	t, ok := tables[kind]
	if !ok {
		return nil, errors.Errorf("unknown kind %q", kind)
	}
	return t, nil
}

func junctionColumn(j school.Junction) (string, error) {
	col, ok := junctions[j]
	if !ok {
		return "", errors.Errorf("unknown junction %q", j)
	}
	return col, nil
}

func (t tableOf[R, E]) name() string { return t.table }

func (t tableOf[R, E]) kind() school.Kind {
	var zero E
	return zero.EntityKind()
}

func (t tableOf[R, E]) get(ctx context.Context, q *queries, id string) (school.Entity, error) {
	query, args, err := q.sb.Select("*").From(t.table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, errors.Wrapf(err, "building %s query", t.table)
	}
	var r R
	if err = sqlx.GetContext(ctx, q.exec, &r, query, args...); err != nil {
		return nil, trapNoRowsErr(err, t.kind(), id)
	}
	e, err := t.unboil(r)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (t tableOf[R, E]) list(ctx context.Context, q *queries) ([]school.Entity, error) {
	query, args, err := q.sb.Select("*").From(t.table).OrderBy(q.orderBy("id")...).ToSql()
	if err != nil {
		return nil, errors.Wrapf(err, "building %s query", t.table)
	}
	var rows []R
	if err = sqlx.SelectContext(ctx, q.exec, &rows, query, args...); err != nil {
		return nil, errors.Wrapf(err, "querying %s", t.table)
	}
	es := make([]school.Entity, 0, len(rows))
	for _, r := range rows {
		e, err := t.unboil(r)
		if err != nil {
			return nil, err
		}
		es = append(es, e)
	}
	return es, nil
}

func (t tableOf[R, E]) values(e school.Entity) (map[string]interface{}, error) {
	v, ok := e.(E)
	if !ok {
		return nil, errors.Errorf("%s: unexpected type %T", t.table, e)
	}
	return t.boil(v).columns(), nil
}

// trapNoRowsErr maps sql "no rows" err to core.ErrNotFound
func trapNoRowsErr(err error, kind school.Kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.NotFound(kind, id)
	}
	return errors.Wrapf(err, "querying %s", kind)
}
