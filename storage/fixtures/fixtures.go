// Package fixtures loads YAML seed files into a store, dumps a store as YAML and copies one store into another.
package fixtures

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/masomo-core/core/school"
)

var junctions = []school.Junction{school.SubjectTeachers, school.SubjectClasses}

type (
	// Document is the YAML layout of a seed file. Rows may omit their id when nothing references them.
	Document struct {
		Users         []User                  `yaml:"users,omitempty"`
		Classes       []school.ClassGroup     `yaml:"classes,omitempty"`
		Subjects      []Subject               `yaml:"subjects,omitempty"`
		Students      []school.Student        `yaml:"students,omitempty"`
		Teachers      []school.Teacher        `yaml:"teachers,omitempty"`
		Attendance    []school.Attendance     `yaml:"attendance,omitempty"`
		Grades        []school.Grade          `yaml:"grades,omitempty"`
		Assignments   []school.Assignment     `yaml:"assignments,omitempty"`
		Submissions   []school.Submission     `yaml:"submissions,omitempty"`
		Announcements []school.Announcement   `yaml:"announcements,omitempty"`
		Messages      []school.Message        `yaml:"messages,omitempty"`
		Timetable     []school.TimetableEntry `yaml:"timetable,omitempty"`
	}

	// User is a user with a clear-text password, hashed on load. Dumps never carry passwords.
	User struct {
		school.User `yaml:",inline"`
		Password    string `yaml:"password,omitempty"`
	}

	// Subject carries the subject's teacher and class links.
	Subject struct {
		school.Subject `yaml:",inline"`
		Teachers       []string `yaml:"teachers,omitempty"`
		Classes        []string `yaml:"classes,omitempty"`
	}
)

// Decode reads a Document, rejecting unknown fields.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return Document{}, errors.Wrap(err, "decoding fixtures")
	}
	return doc, nil
}

// Load inserts the Document read from r into store, in one transaction.
func Load(ctx context.Context, store school.Store, r io.Reader) error {
	doc, err := Decode(r)
	if err != nil {
		return err
	}
	return store.RunInTx(ctx, func(tx school.Tx) error {
		return doc.insert(ctx, tx)
	})
}

func (doc Document) rows() ([]school.Entity, error) {
	var rows []school.Entity
	for _, u := range doc.Users {
		usr := u.User
		if u.Password != "" {
			if err := usr.SetPassword(u.Password); err != nil {
				return nil, errors.Wrapf(err, "hashing password of %s", usr.Email)
			}
		}
		rows = append(rows, usr)
	}
	rows = appendRows(rows, doc.Classes)
	for _, s := range doc.Subjects {
		rows = append(rows, s.Subject)
	}
	rows = appendRows(rows, doc.Students)
	rows = appendRows(rows, doc.Teachers)
	rows = appendRows(rows, doc.Attendance)
	rows = appendRows(rows, doc.Grades)
	rows = appendRows(rows, doc.Assignments)
	rows = appendRows(rows, doc.Submissions)
	rows = appendRows(rows, doc.Announcements)
	rows = appendRows(rows, doc.Messages)
	rows = appendRows(rows, doc.Timetable)
	return rows, nil
}

func (doc Document) links() map[school.Junction][]school.Link {
	links := make(map[school.Junction][]school.Link, len(junctions))
	for _, s := range doc.Subjects {
		for _, id := range s.Teachers {
			links[school.SubjectTeachers] = append(links[school.SubjectTeachers], school.Link{SubjectID: s.ID, TargetID: id})
		}
		for _, id := range s.Classes {
			links[school.SubjectClasses] = append(links[school.SubjectClasses], school.Link{SubjectID: s.ID, TargetID: id})
		}
	}
	return links
}

func (doc Document) insert(ctx context.Context, tx school.Tx) error {
	rows, err := doc.rows()
	if err != nil {
		return err
	}
	for _, s := range doc.Subjects {
		if s.ID == "" && (len(s.Teachers) > 0 || len(s.Classes) > 0) {
			return errors.Errorf("subject %q: linked subjects need an id", s.Name)
		}
	}
	return write(ctx, tx, rows, doc.links())
}

func write(ctx context.Context, tx school.Tx, rows []school.Entity, links map[school.Junction][]school.Link) error {
	for _, e := range rows {
		if _, err := tx.Insert(ctx, e); err != nil {
			return errors.Wrapf(err, "inserting %s", school.RefOf(e))
		}
	}
	for _, j := range junctions {
		if len(links[j]) == 0 {
			continue
		}
		if err := tx.Link(ctx, j, links[j]...); err != nil {
			return errors.Wrapf(err, "linking %s", j)
		}
	}
	return nil
}

func appendRows[T school.Entity](rows []school.Entity, ts []T) []school.Entity {
	for _, t := range ts {
		rows = append(rows, t)
	}
	return rows
}

// Dump writes the content of store to w as a Document.
func Dump(ctx context.Context, store school.Store, w io.Writer) error {
	var doc Document
	err := store.RunInTx(ctx, func(tx school.Tx) error {
		var err error
		doc, err = read(ctx, tx)
		return err
	})
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err = enc.Encode(doc); err != nil {
		return errors.Wrap(err, "encoding fixtures")
	}
	return enc.Close()
}

func read(ctx context.Context, tx school.Tx) (doc Document, err error) {
	users, err := school.List[school.User](ctx, tx, nil)
	if err != nil {
		return Document{}, err
	}
	for _, u := range users {
		doc.Users = append(doc.Users, User{User: u})
	}
	subjects, err := school.List[school.Subject](ctx, tx, nil)
	if err != nil {
		return Document{}, err
	}
	for _, s := range subjects {
		fs := Subject{Subject: s}
		if fs.Teachers, err = targets(ctx, tx, school.SubjectTeachers, s.ID); err != nil {
			return Document{}, err
		}
		if fs.Classes, err = targets(ctx, tx, school.SubjectClasses, s.ID); err != nil {
			return Document{}, err
		}
		doc.Subjects = append(doc.Subjects, fs)
	}

	for _, fn := range []func() error{
		func() (err error) { doc.Classes, err = school.List[school.ClassGroup](ctx, tx, nil); return },
		func() (err error) { doc.Students, err = school.List[school.Student](ctx, tx, nil); return },
		func() (err error) { doc.Teachers, err = school.List[school.Teacher](ctx, tx, nil); return },
		func() (err error) { doc.Attendance, err = school.List[school.Attendance](ctx, tx, nil); return },
		func() (err error) { doc.Grades, err = school.List[school.Grade](ctx, tx, nil); return },
		func() (err error) { doc.Assignments, err = school.List[school.Assignment](ctx, tx, nil); return },
		func() (err error) { doc.Submissions, err = school.List[school.Submission](ctx, tx, nil); return },
		func() (err error) { doc.Announcements, err = school.List[school.Announcement](ctx, tx, nil); return },
		func() (err error) { doc.Messages, err = school.List[school.Message](ctx, tx, nil); return },
		func() (err error) { doc.Timetable, err = school.List[school.TimetableEntry](ctx, tx, nil); return },
	} {
		if err = fn(); err != nil {
			return Document{}, err
		}
	}
	return doc, nil
}

func targets(ctx context.Context, tx school.Tx, j school.Junction, subjectID string) ([]string, error) {
	links, err := tx.Links(ctx, j, school.Link{SubjectID: subjectID})
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", j)
	}
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.TargetID)
	}
	return ids, nil
}

// Copy writes every row and link of from into to, in one transaction on each side. Password hashes are kept.
func Copy(ctx context.Context, from, to school.Store) (n int, err error) {
	var rows []school.Entity
	links := make(map[school.Junction][]school.Link, len(junctions))
	err = from.RunInTx(ctx, func(tx school.Tx) error {
		for _, kind := range school.Kinds {
			es, err := tx.List(ctx, kind, nil)
			if err != nil {
				return errors.Wrapf(err, "listing %s", kind)
			}
			rows = append(rows, es...)
		}
		for _, j := range junctions {
			ls, err := tx.Links(ctx, j, school.Link{})
			if err != nil {
				return errors.Wrapf(err, "listing %s", j)
			}
			links[j] = ls
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	err = to.RunInTx(ctx, func(tx school.Tx) error {
		return write(ctx, tx, rows, links)
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
