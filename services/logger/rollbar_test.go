package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/school"
)

func TestPerson(t *testing.T) {
	tests := []struct {
		name   string
		arg    interface{}
		wantID string
		wantOK bool
	}{
		{name: "actor", arg: school.Actor{UserID: "u-1", Role: school.RoleTeacher}, wantID: "u-1", wantOK: true},
		{name: "user", arg: school.User{ID: "u-2", Name: "Ann", Email: "ann@test.cd"}, wantID: "u-2", wantOK: true},
		{name: "anonymous actor", arg: school.Actor{}, wantOK: false},
		{name: "error", arg: errors.New("boom"), wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, _, _, ok := person(tt.arg)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestRollbarLogger_prepare(t *testing.T) {
	var buf bytes.Buffer
	l := NewRollbarLogger(log.New(&buf, "", 0), &core.Config{TestMode: true})

	err := errors.New("boom")
	extras := map[string]interface{}{"subject": "s-1"}
	args := l.prepare("deleting", []interface{}{err, school.Actor{UserID: "u-1", Role: school.RoleAdmin}, extras})
	assert.Equal(t, []interface{}{"deleting", err, extras}, args, "the actor is reported as the person, not as an extra")

	l.Warn("dropping dangling junction rows", extras)
	assert.Contains(t, buf.String(), "WARN: dropping dangling junction rows")
	assert.Contains(t, buf.String(), "subject:s-1")
}
