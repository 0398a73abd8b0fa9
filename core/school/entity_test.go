package school

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewID_concurrent(t *testing.T) {
	const goroutines, perG = 16, 200
	ids := make(chan string, goroutines*perG)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				ids <- NewID()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool, goroutines*perG)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestNewID_sortsInCreationOrder(t *testing.T) {
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = NewID()
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestStamp(t *testing.T) {
	now := time.Date(2024, 3, 4, 10, 0, 0, 123456789, time.FixedZone("WAT", 3600))
	want := time.Date(2024, 3, 4, 9, 0, 0, 123456000, time.UTC)
	set := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("assigns id and UTC timestamp", func(t *testing.T) {
		usr := Stamp(User{Name: "Awe"}, now).(User)
		assert.NotEmpty(t, usr.ID)
		assert.Equal(t, want, usr.CreatedAt)

		msg := Stamp(Message{Body: "hi"}, now).(Message)
		assert.Equal(t, want, msg.Date)

		sub := Stamp(Submission{}, now).(Submission)
		assert.Equal(t, want, sub.SubmittedAt)
	})
	t.Run("keeps existing values", func(t *testing.T) {
		an := Stamp(Announcement{ID: "an-1", CreatedAt: set}, now).(Announcement)
		assert.Equal(t, "an-1", an.ID)
		assert.Equal(t, set, an.CreatedAt)
	})
	t.Run("kinds without timestamp", func(t *testing.T) {
		c := Stamp(ClassGroup{Name: "Grade 1"}, now).(ClassGroup)
		assert.NotEmpty(t, c.ID)
		assert.Equal(t, "Grade 1", c.Name)
	})
}

func TestCopy(t *testing.T) {
	grade := 10.0
	orig := Submission{ID: "sb-1", Grade: &grade}
	cp := Copy(orig).(Submission)
	*cp.Grade = 20
	assert.Equal(t, 10.0, *orig.Grade)

	an := Announcement{TargetIDs: []string{"c-1"}}
	anCopy := Copy(an).(Announcement)
	anCopy.TargetIDs[0] = "c-2"
	assert.Equal(t, "c-1", an.TargetIDs[0])

	assert.Nil(t, Copy(Assignment{Attachments: []string{}}).(Assignment).Attachments, "empty lists become nil")
}

func TestBare(t *testing.T) {
	sub := Bare(Subject{ID: "s-1", Name: "Maths", TeacherID: "t-1", TeacherIDs: []string{"t-1"}, ClassIDs: []string{"c-1"}})
	assert.Equal(t, Subject{ID: "s-1", Name: "Maths"}, sub)

	c := Bare(ClassGroup{ID: "c-1", TeacherIDs: []string{"t-1"}, StudentIDs: []string{"st-1"}})
	assert.Equal(t, ClassGroup{ID: "c-1"}, c)

	tch := Bare(Teacher{ID: "t-1", SubjectIDs: []string{"s-1"}})
	assert.Equal(t, Teacher{ID: "t-1"}, tch)
}

func TestWeekdayIndex(t *testing.T) {
	tests := []struct {
		day  string
		want int
	}{
		{"monday", 0},
		{"Friday", 4},
		{"sunday", 6},
		{"someday", 7},
	}
	for _, tt := range tests {
		t.Run(tt.day, func(t *testing.T) {
			assert.Equal(t, tt.want, WeekdayIndex(tt.day))
		})
	}
}

func TestUser_password(t *testing.T) {
	var usr User
	assert.NoError(t, usr.SetPassword("s3cret"))
	assert.NoError(t, usr.CheckPassword("s3cret"))
	assert.Error(t, usr.CheckPassword("wrong"))
}
