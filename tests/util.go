// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/trezcool/masomo-core/core/school"
	"github.com/trezcool/masomo-core/storage/database"
	"github.com/trezcool/masomo-core/storage/filestore"
	"github.com/trezcool/masomo-core/storage/sqlstore"
)

// Logger is a core.Logger writing to the test log.
type Logger struct {
	t *testing.T
}

func NewLogger(t *testing.T) *Logger { return &Logger{t: t} }

func (l *Logger) log(level, msg string, args ...interface{}) {
	l.t.Helper()
	if len(args) > 0 {
		l.t.Logf("%s: %s %v", level, msg, args)
		return
	}
	l.t.Logf("%s: %s", level, msg)
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args...) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("FATAL", msg, args...) }

// NewFileStore returns an empty file store on an in-memory filesystem.
func NewFileStore(t *testing.T) *filestore.Store {
	t.Helper()
	store, err := filestore.Open("/data/school.json", filestore.WithFs(afero.NewMemMapFs()))
	if err != nil {
		t.Fatalf("filestore.Open() failed: %v", err)
	}
	return store
}

// NewSQLiteStore returns an empty, migrated relational store on a temporary SQLite file.
func NewSQLiteStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "school.db"))
	if err != nil {
		t.Fatalf("database.OpenSQLite() failed: %v", err)
	}
	if err = database.MigrateUp(context.Background(), db); err != nil {
		t.Fatalf("database.MigrateUp() failed: %v", err)
	}
	store := sqlstore.New(db, sqlstore.WithLogger(NewLogger(t)), sqlstore.WithRetry(10, 5*time.Millisecond))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Backends lists the store constructors every backend-agnostic test runs against.
var Backends = []struct {
	Name string
	Open func(t *testing.T) school.Store
}{
	{Name: "file", Open: func(t *testing.T) school.Store { return NewFileStore(t) }},
	{Name: "sqlite", Open: func(t *testing.T) school.Store { return NewSQLiteStore(t) }},
}

// Insert stores e and returns the stored value.
func Insert[T school.Entity](t *testing.T, tx school.Tx, e T) T {
	t.Helper()
	res, err := tx.Insert(context.Background(), e)
	if err != nil {
		t.Fatalf("Insert(%s) failed: %v", school.RefOf(e), err)
	}
	return res.(T)
}

// Link adds junction rows.
func Link(t *testing.T, tx school.Tx, j school.Junction, subjectID string, targetIDs ...string) {
	t.Helper()
	links := make([]school.Link, 0, len(targetIDs))
	for _, id := range targetIDs {
		links = append(links, school.Link{SubjectID: subjectID, TargetID: id})
	}
	if err := tx.Link(context.Background(), j, links...); err != nil {
		t.Fatalf("Link(%s, %s) failed: %v", j, subjectID, err)
	}
}

// CreateUser stores a user with role; password is optional.
func CreateUser(t *testing.T, tx school.Tx, name string, role school.Role, pwd ...string) school.User {
	t.Helper()
	usr := school.User{
		Name:  name,
		Email: fmt.Sprintf("%s.%s@test.cd", role, school.NewID()),
		Role:  role,
	}
	if len(pwd) > 0 && pwd[0] != "" {
		if err := usr.SetPassword(pwd[0]); err != nil {
			t.Fatalf("SetPassword() failed: %v", err)
		}
	}
	return Insert(t, tx, usr)
}

// CreateStudent stores a student user and its Student record.
func CreateStudent(t *testing.T, tx school.Tx, name, classID string) (school.User, school.Student) {
	t.Helper()
	usr := CreateUser(t, tx, name, school.RoleStudent)
	st := Insert(t, tx, school.Student{UserID: usr.ID, Name: name, ClassID: classID, StudentCode: "STU-" + usr.ID[:8]})
	return usr, st
}

// CreateTeacher stores a teacher user and its Teacher record, linked to subjectIDs.
func CreateTeacher(t *testing.T, tx school.Tx, name string, subjectIDs ...string) (school.User, school.Teacher) {
	t.Helper()
	usr := CreateUser(t, tx, name, school.RoleTeacher)
	tch := Insert(t, tx, school.Teacher{UserID: usr.ID, Name: name})
	for _, id := range subjectIDs {
		Link(t, tx, school.SubjectTeachers, id, tch.ID)
	}
	return usr, tch
}

// CreateParent stores a parent user of the given students and sets their ParentID.
func CreateParent(t *testing.T, tx school.Tx, name string, children ...school.Student) school.User {
	t.Helper()
	usr := school.User{Name: name, Email: fmt.Sprintf("parent.%s@test.cd", school.NewID()), Role: school.RoleParent}
	for _, c := range children {
		usr.ParentOfStudentIDs = append(usr.ParentOfStudentIDs, c.ID)
	}
	usr = Insert(t, tx, usr)
	for _, c := range children {
		c.ParentID = usr.ID
		if _, err := tx.Update(context.Background(), c); err != nil {
			t.Fatalf("Update(%s) failed: %v", school.RefOf(c), err)
		}
	}
	return usr
}
