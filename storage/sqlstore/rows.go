package sqlstore

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-core/core/school"
)

type (
	userRow struct {
		ID           string         `db:"id"`
		Name         string         `db:"name"`
		Email        string         `db:"email"`
		PasswordHash null.String    `db:"password_hash"`
		Role         string         `db:"role"`
		ParentOf     types.JSONText `db:"parent_of"`
		CreatedAt    time.Time      `db:"created_at"`
	}

	studentRow struct {
		ID          string      `db:"id"`
		UserID      string      `db:"user_id"`
		Name        string      `db:"name"`
		ClassID     null.String `db:"class_id"`
		ParentID    null.String `db:"parent_id"`
		StudentCode string      `db:"student_code"`
	}

	teacherRow struct {
		ID     string `db:"id"`
		UserID string `db:"user_id"`
		Name   string `db:"name"`
	}

	classRow struct {
		ID    string `db:"id"`
		Name  string `db:"name"`
		Level string `db:"level"`
	}

	subjectRow struct {
		ID   string `db:"id"`
		Name string `db:"name"`
		Code string `db:"code"`
	}

	attendanceRow struct {
		ID        string      `db:"id"`
		StudentID string      `db:"student_id"`
		SubjectID string      `db:"subject_id"`
		ClassID   null.String `db:"class_id"`
		Date      string      `db:"date"`
		Status    string      `db:"status"`
		MarkedBy  null.String `db:"marked_by"`
	}

	gradeRow struct {
		ID        string      `db:"id"`
		StudentID string      `db:"student_id"`
		SubjectID string      `db:"subject_id"`
		ExamType  string      `db:"exam_type"`
		Score     float64     `db:"score"`
		MaxScore  float64     `db:"max_score"`
		Date      string      `db:"date"`
		TeacherID null.String `db:"teacher_id"`
		Comments  null.String `db:"comments"`
	}

	assignmentRow struct {
		ID          string         `db:"id"`
		SubjectID   string         `db:"subject_id"`
		Title       string         `db:"title"`
		Description string         `db:"description"`
		DueDate     string         `db:"due_date"`
		CreatedBy   null.String    `db:"created_by"`
		Attachments types.JSONText `db:"attachments"`
		CreatedAt   time.Time      `db:"created_at"`
	}

	submissionRow struct {
		ID           string       `db:"id"`
		AssignmentID string       `db:"assignment_id"`
		StudentID    string       `db:"student_id"`
		FileURL      string       `db:"file_url"`
		SubmittedAt  time.Time    `db:"submitted_at"`
		Grade        null.Float64 `db:"grade"`
		Feedback     null.String  `db:"feedback"`
		GradedBy     null.String  `db:"graded_by"`
	}

	announcementRow struct {
		ID          string         `db:"id"`
		PostedBy    string         `db:"posted_by"`
		Title       string         `db:"title"`
		Body        string         `db:"body"`
		TargetGroup string         `db:"target_group"`
		TargetIDs   types.JSONText `db:"target_ids"`
		CreatedAt   time.Time      `db:"created_at"`
	}

	messageRow struct {
		ID        string      `db:"id"`
		From      string      `db:"from_user"`
		To        null.String `db:"to_user"`
		GroupID   null.String `db:"group_id"`
		GroupType null.String `db:"group_type"`
		Body      string      `db:"body"`
		Date      time.Time   `db:"date"`
		Read      bool        `db:"is_read"`
	}

	timetableRow struct {
		ID        string      `db:"id"`
		ClassID   string      `db:"class_id"`
		SubjectID string      `db:"subject_id"`
		TeacherID string      `db:"teacher_id"`
		Day       string      `db:"day"`
		StartTime string      `db:"start_time"`
		EndTime   string      `db:"end_time"`
		Room      null.String `db:"room"`
	}

	linkRow struct {
		SubjectID string `db:"subject_id"`
		TargetID  string `db:"target_id"`
	}
)

// nullString maps "" to NULL.
func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

// jsonList encodes ids for a TEXT list column; nil and empty lists are stored as "[]".
func jsonList(ids []string) types.JSONText {
	if len(ids) == 0 {
		return types.JSONText("[]")
	}
	data, _ := json.Marshal(ids)
	return data
}

func unjsonList(col string, j types.JSONText) ([]string, error) {
	if len(j) == 0 {
		return nil, nil
	}
	var ids []string
	if err := j.Unmarshal(&ids); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", col)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

// Column maps, used for INSERT and UPDATE. List columns are passed as strings, which every driver stores
// verbatim in a TEXT column.

func (r userRow) columns() map[string]interface{} {
	return map[string]interface{}{
		"id":            r.ID,
		"name":          r.Name,
		"email":         r.Email,
		"password_hash": r.PasswordHash,
		"role":          r.Role,
		"parent_of":     r.ParentOf.String(),
		"created_at":    r.CreatedAt,
	}
}

func (r studentRow) columns() map[string]interface{} {
	return map[string]interface{}{
		"id":           r.ID,
		"user_id":      r.UserID,
		"name":         r.Name,
		"class_id":     r.ClassID,
		"parent_id":    r.ParentID,
		"student_code": r.StudentCode,
	}
}

func (r teacherRow) columns() map[string]interface{} {
	return map[string]interface{}{"id": r.ID, "user_id": r.UserID, "name": r.Name}
}

func (r classRow) columns() map[string]interface{} {
	return map[string]interface{}{"id": r.ID, "name": r.Name, "level": r.Level}
}

func (r subjectRow) columns() map[string]interface{} {
	return map[string]interface{}{"id": r.ID, "name": r.Name, "code": r.Code}
}

func (r attendanceRow) columns() map[string]interface{} {
	return map[string]interface{}{
		"id":         r.ID,
		"student_id": r.StudentID,
		"subject_id": r.SubjectID,
		"class_id":   r.ClassID,
		"date":       r.Date,
		"status":     r.Status,
		"marked_by":  r.MarkedBy,
	}
}

func (r gradeRow) columns() map[string]interface{} {
	return map[string]interface{}{
		"id":         r.ID,
		"student_id": r.StudentID,
		"subject_id": r.SubjectID,
		"exam_type":  r.ExamType,
		"score":      r.Score,
		"max_score":  r.MaxScore,
		"date":       r.Date,
		"teacher_id": r.TeacherID,
		"comments":   r.Comments,
	}
}

func (r assignmentRow) columns() map[string]interface{} {
	return map[string]interface{}{
		"id":          r.ID,
		"subject_id":  r.SubjectID,
		"title":       r.Title,
		"description": r.Description,
		"due_date":    r.DueDate,
		"created_by":  r.CreatedBy,
		"attachments": r.Attachments.String(),
		"created_at":  r.CreatedAt,
	}
}

func (r submissionRow) columns() map[string]interface{} {
	return map[string]interface{}{
		"id":            r.ID,
		"assignment_id": r.AssignmentID,
		"student_id":    r.StudentID,
		"file_url":      r.FileURL,
		"submitted_at":  r.SubmittedAt,
		"grade":         r.Grade,
		"feedback":      r.Feedback,
		"graded_by":     r.GradedBy,
	}
}

func (r announcementRow) columns() map[string]interface{} {
	return map[string]interface{}{
		"id":           r.ID,
		"posted_by":    r.PostedBy,
		"title":        r.Title,
		"body":         r.Body,
		"target_group": r.TargetGroup,
		"target_ids":   r.TargetIDs.String(),
		"created_at":   r.CreatedAt,
	}
}

func (r messageRow) columns() map[string]interface{} {
	return map[string]interface{}{
		"id":         r.ID,
		"from_user":  r.From,
		"to_user":    r.To,
		"group_id":   r.GroupID,
		"group_type": r.GroupType,
		"body":       r.Body,
		"date":       r.Date,
		"is_read":    r.Read,
	}
}

func (r timetableRow) columns() map[string]interface{} {
	return map[string]interface{}{
		"id":         r.ID,
		"class_id":   r.ClassID,
		"subject_id": r.SubjectID,
		"teacher_id": r.TeacherID,
		"day":        r.Day,
		"start_time": r.StartTime,
		"end_time":   r.EndTime,
		"room":       r.Room,
	}
}

// boil / unboil

func boilUser(u school.User) userRow {
	return userRow{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: nullString(string(u.PasswordHash)),
		Role:         string(u.Role),
		ParentOf:     jsonList(u.ParentOfStudentIDs),
		CreatedAt:    u.CreatedAt.UTC(),
	}
}

func unboilUser(r userRow) (school.User, error) {
	parentOf, err := unjsonList("parent_of", r.ParentOf)
	if err != nil {
		return school.User{}, err
	}
	var hash []byte
	if r.PasswordHash.Valid {
		hash = []byte(r.PasswordHash.String)
	}
	return school.User{
		ID:                 r.ID,
		Name:               r.Name,
		Email:              r.Email,
		PasswordHash:       hash,
		Role:               school.Role(r.Role),
		ParentOfStudentIDs: parentOf,
		CreatedAt:          r.CreatedAt.UTC(),
	}, nil
}

func boilStudent(s school.Student) studentRow {
	return studentRow{
		ID:          s.ID,
		UserID:      s.UserID,
		Name:        s.Name,
		ClassID:     nullString(s.ClassID),
		ParentID:    nullString(s.ParentID),
		StudentCode: s.StudentCode,
	}
}

func unboilStudent(r studentRow) school.Student {
	return school.Student{
		ID:          r.ID,
		UserID:      r.UserID,
		Name:        r.Name,
		ClassID:     r.ClassID.String,
		ParentID:    r.ParentID.String,
		StudentCode: r.StudentCode,
	}
}

func boilTeacher(t school.Teacher) teacherRow {
	return teacherRow{ID: t.ID, UserID: t.UserID, Name: t.Name}
}

func unboilTeacher(r teacherRow) school.Teacher {
	return school.Teacher{ID: r.ID, UserID: r.UserID, Name: r.Name}
}

func boilClass(c school.ClassGroup) classRow {
	return classRow{ID: c.ID, Name: c.Name, Level: c.Level}
}

func unboilClass(r classRow) school.ClassGroup {
	return school.ClassGroup{ID: r.ID, Name: r.Name, Level: r.Level}
}

func boilSubject(s school.Subject) subjectRow {
	return subjectRow{ID: s.ID, Name: s.Name, Code: s.Code}
}

func unboilSubject(r subjectRow) school.Subject {
	return school.Subject{ID: r.ID, Name: r.Name, Code: r.Code}
}

func boilAttendance(a school.Attendance) attendanceRow {
	return attendanceRow{
		ID:        a.ID,
		StudentID: a.StudentID,
		SubjectID: a.SubjectID,
		ClassID:   nullString(a.ClassID),
		Date:      a.Date,
		Status:    string(a.Status),
		MarkedBy:  nullString(a.MarkedBy),
	}
}

func unboilAttendance(r attendanceRow) school.Attendance {
	return school.Attendance{
		ID:        r.ID,
		StudentID: r.StudentID,
		SubjectID: r.SubjectID,
		ClassID:   r.ClassID.String,
		Date:      r.Date,
		Status:    school.AttendanceStatus(r.Status),
		MarkedBy:  r.MarkedBy.String,
	}
}

func boilGrade(g school.Grade) gradeRow {
	return gradeRow{
		ID:        g.ID,
		StudentID: g.StudentID,
		SubjectID: g.SubjectID,
		ExamType:  g.ExamType,
		Score:     g.Score,
		MaxScore:  g.MaxScore,
		Date:      g.Date,
		TeacherID: nullString(g.TeacherID),
		Comments:  nullString(g.Comments),
	}
}

func unboilGrade(r gradeRow) school.Grade {
	return school.Grade{
		ID:        r.ID,
		StudentID: r.StudentID,
		SubjectID: r.SubjectID,
		ExamType:  r.ExamType,
		Score:     r.Score,
		MaxScore:  r.MaxScore,
		Date:      r.Date,
		TeacherID: r.TeacherID.String,
		Comments:  r.Comments.String,
	}
}

func boilAssignment(a school.Assignment) assignmentRow {
	return assignmentRow{
		ID:          a.ID,
		SubjectID:   a.SubjectID,
		Title:       a.Title,
		Description: a.Description,
		DueDate:     a.DueDate,
		CreatedBy:   nullString(a.CreatedBy),
		Attachments: jsonList(a.Attachments),
		CreatedAt:   a.CreatedAt.UTC(),
	}
}

func unboilAssignment(r assignmentRow) (school.Assignment, error) {
	attachments, err := unjsonList("attachments", r.Attachments)
	if err != nil {
		return school.Assignment{}, err
	}
	return school.Assignment{
		ID:          r.ID,
		SubjectID:   r.SubjectID,
		Title:       r.Title,
		Description: r.Description,
		DueDate:     r.DueDate,
		CreatedBy:   r.CreatedBy.String,
		Attachments: attachments,
		CreatedAt:   r.CreatedAt.UTC(),
	}, nil
}

func boilSubmission(s school.Submission) submissionRow {
	return submissionRow{
		ID:           s.ID,
		AssignmentID: s.AssignmentID,
		StudentID:    s.StudentID,
		FileURL:      s.FileURL,
		SubmittedAt:  s.SubmittedAt.UTC(),
		Grade:        null.Float64FromPtr(s.Grade),
		Feedback:     nullString(s.Feedback),
		GradedBy:     nullString(s.GradedBy),
	}
}

func unboilSubmission(r submissionRow) school.Submission {
	return school.Submission{
		ID:           r.ID,
		AssignmentID: r.AssignmentID,
		StudentID:    r.StudentID,
		FileURL:      r.FileURL,
		SubmittedAt:  r.SubmittedAt.UTC(),
		Grade:        r.Grade.Ptr(),
		Feedback:     r.Feedback.String,
		GradedBy:     r.GradedBy.String,
	}
}

func boilAnnouncement(a school.Announcement) announcementRow {
	return announcementRow{
		ID:          a.ID,
		PostedBy:    a.PostedBy,
		Title:       a.Title,
		Body:        a.Body,
		TargetGroup: string(a.TargetGroup),
		TargetIDs:   jsonList(a.TargetIDs),
		CreatedAt:   a.CreatedAt.UTC(),
	}
}

func unboilAnnouncement(r announcementRow) (school.Announcement, error) {
	targetIDs, err := unjsonList("target_ids", r.TargetIDs)
	if err != nil {
		return school.Announcement{}, err
	}
	return school.Announcement{
		ID:          r.ID,
		PostedBy:    r.PostedBy,
		Title:       r.Title,
		Body:        r.Body,
		TargetGroup: school.TargetGroup(r.TargetGroup),
		TargetIDs:   targetIDs,
		CreatedAt:   r.CreatedAt.UTC(),
	}, nil
}

func boilMessage(m school.Message) messageRow {
	return messageRow{
		ID:        m.ID,
		From:      m.From,
		To:        nullString(m.To),
		GroupID:   nullString(m.GroupID),
		GroupType: nullString(string(m.GroupType)),
		Body:      m.Body,
		Date:      m.Date.UTC(),
		Read:      m.Read,
	}
}

func unboilMessage(r messageRow) school.Message {
	return school.Message{
		ID:        r.ID,
		From:      r.From,
		To:        r.To.String,
		GroupID:   r.GroupID.String,
		GroupType: school.GroupType(r.GroupType.String),
		Body:      r.Body,
		Date:      r.Date.UTC(),
		Read:      r.Read,
	}
}

func boilTimetable(t school.TimetableEntry) timetableRow {
	return timetableRow{
		ID:        t.ID,
		ClassID:   t.ClassID,
		SubjectID: t.SubjectID,
		TeacherID: t.TeacherID,
		Day:       t.Day,
		StartTime: t.StartTime,
		EndTime:   t.EndTime,
		Room:      nullString(t.Room),
	}
}

func unboilTimetable(r timetableRow) school.TimetableEntry {
	return school.TimetableEntry{
		ID:        r.ID,
		ClassID:   r.ClassID,
		SubjectID: r.SubjectID,
		TeacherID: r.TeacherID,
		Day:       r.Day,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Room:      r.Room.String,
	}
}
