package school

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Roles
const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleParent  Role = "parent"
)

// Attendance statuses
const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
	StatusLate    AttendanceStatus = "late"
	StatusExcused AttendanceStatus = "excused"
)

// Announcement audiences
const (
	TargetAll     TargetGroup = "all"
	TargetRole    TargetGroup = "role"
	TargetClass   TargetGroup = "class"
	TargetSubject TargetGroup = "subject"
)

// Message groups
const (
	GroupClass   GroupType = "class"
	GroupSubject GroupType = "subject"
)

var (
	Roles = []Role{RoleAdmin, RoleTeacher, RoleStudent, RoleParent}

	// Weekdays in timetable order.
	Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}
)

type (
	Role             string
	AttendanceStatus string
	TargetGroup      string
	GroupType        string
)

func (r Role) Valid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// WeekdayIndex returns the position of day in Weekdays, or len(Weekdays) for unknown days.
func WeekdayIndex(day string) int {
	day = strings.ToLower(day)
	for i, d := range Weekdays {
		if d == day {
			return i
		}
	}
	return len(Weekdays)
}

// Actor is the authenticated identity + role pair making a request.
type Actor struct {
	UserID string
	Role   Role
}

// System is the actor used by tooling (admin CLI, seeding).
var System = Actor{UserID: "system", Role: RoleAdmin}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type User struct {
	ID                 string    `json:"id" yaml:"id,omitempty"`
	Name               string    `json:"name" yaml:"name,omitempty"`
	Email              string    `json:"email" yaml:"email,omitempty"`
	PasswordHash       []byte    `json:"-" yaml:"-"`
	Role               Role      `json:"role" yaml:"role,omitempty"`
	ParentOfStudentIDs []string  `json:"parentOfStudentIds,omitempty" yaml:"parentOfStudentIds,omitempty"`
	CreatedAt          time.Time `json:"createdAt" yaml:"createdAt,omitempty"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) Actor() Actor { return Actor{UserID: u.ID, Role: u.Role} }

type Student struct {
	ID          string `json:"id" yaml:"id,omitempty"`
	UserID      string `json:"userId" yaml:"userId,omitempty"`
	Name        string `json:"name" yaml:"name,omitempty"`
	ClassID     string `json:"classId,omitempty" yaml:"classId,omitempty"`
	ParentID    string `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	StudentCode string `json:"studentCode" yaml:"studentCode,omitempty"`
}

type Teacher struct {
	ID     string `json:"id" yaml:"id,omitempty"`
	UserID string `json:"userId" yaml:"userId,omitempty"`
	Name   string `json:"name" yaml:"name,omitempty"`

	// derived
	SubjectIDs []string `json:"subjectIds" yaml:"-"`
}

type ClassGroup struct {
	ID    string `json:"id" yaml:"id,omitempty"`
	Name  string `json:"name" yaml:"name,omitempty"`
	Level string `json:"level" yaml:"level,omitempty"`

	// derived
	TeacherIDs []string `json:"teacherIds" yaml:"-"`
	StudentIDs []string `json:"studentIds" yaml:"-"`
}

type Subject struct {
	ID   string `json:"id" yaml:"id,omitempty"`
	Name string `json:"name" yaml:"name,omitempty"`
	Code string `json:"code" yaml:"code,omitempty"`

	// derived
	TeacherID  string   `json:"teacherId,omitempty" yaml:"-"` // first linked teacher
	TeacherIDs []string `json:"-" yaml:"-"`
	ClassIDs   []string `json:"classIds" yaml:"-"`
}

type Attendance struct {
	ID        string           `json:"id" yaml:"id,omitempty"`
	StudentID string           `json:"studentId" yaml:"studentId,omitempty"`
	SubjectID string           `json:"subjectId" yaml:"subjectId,omitempty"`
	ClassID   string           `json:"classId,omitempty" yaml:"classId,omitempty"`
	Date      string           `json:"date" yaml:"date,omitempty"` // YYYY-MM-DD
	Status    AttendanceStatus `json:"status" yaml:"status,omitempty"`
	MarkedBy  string           `json:"markedBy" yaml:"markedBy,omitempty"` // teacher id
}

type Grade struct {
	ID        string  `json:"id" yaml:"id,omitempty"`
	StudentID string  `json:"studentId" yaml:"studentId,omitempty"`
	SubjectID string  `json:"subjectId" yaml:"subjectId,omitempty"`
	ExamType  string  `json:"examType" yaml:"examType,omitempty"`
	Score     float64 `json:"score" yaml:"score,omitempty"`
	MaxScore  float64 `json:"maxScore" yaml:"maxScore,omitempty"`
	Date      string  `json:"date" yaml:"date,omitempty"`
	TeacherID string  `json:"teacherId" yaml:"teacherId,omitempty"`
	Comments  string  `json:"comments,omitempty" yaml:"comments,omitempty"`
}

type Assignment struct {
	ID          string    `json:"id" yaml:"id,omitempty"`
	SubjectID   string    `json:"subjectId" yaml:"subjectId,omitempty"`
	Title       string    `json:"title" yaml:"title,omitempty"`
	Description string    `json:"description" yaml:"description,omitempty"`
	DueDate     string    `json:"dueDate" yaml:"dueDate,omitempty"`
	CreatedBy   string    `json:"createdBy" yaml:"createdBy,omitempty"` // teacher id
	Attachments []string  `json:"attachments,omitempty" yaml:"attachments,omitempty"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt,omitempty"`
}

type Submission struct {
	ID           string    `json:"id" yaml:"id,omitempty"`
	AssignmentID string    `json:"assignmentId" yaml:"assignmentId,omitempty"`
	StudentID    string    `json:"studentId" yaml:"studentId,omitempty"`
	FileURL      string    `json:"fileUrl" yaml:"fileUrl,omitempty"`
	SubmittedAt  time.Time `json:"submittedAt" yaml:"submittedAt,omitempty"`
	Grade        *float64  `json:"grade,omitempty" yaml:"grade,omitempty"`
	Feedback     string    `json:"feedback,omitempty" yaml:"feedback,omitempty"`
	GradedBy     string    `json:"gradedBy,omitempty" yaml:"gradedBy,omitempty"` // teacher id
}

type Announcement struct {
	ID          string      `json:"id" yaml:"id,omitempty"`
	PostedBy    string      `json:"postedBy" yaml:"postedBy,omitempty"` // user id
	Title       string      `json:"title" yaml:"title,omitempty"`
	Body        string      `json:"body" yaml:"body,omitempty"`
	TargetGroup TargetGroup `json:"targetGroup" yaml:"targetGroup,omitempty"`
	TargetIDs   []string    `json:"targetIds,omitempty" yaml:"targetIds,omitempty"`
	CreatedAt   time.Time   `json:"createdAt" yaml:"createdAt,omitempty"`
}

// Targets reports whether id is one of the announcement's targets.
func (a Announcement) Targets(id string) bool {
	for _, t := range a.TargetIDs {
		if t == id {
			return true
		}
	}
	return false
}

type Message struct {
	ID        string    `json:"id" yaml:"id,omitempty"`
	From      string    `json:"fromUser" yaml:"fromUser,omitempty"`
	To        string    `json:"toUser,omitempty" yaml:"toUser,omitempty"`
	GroupID   string    `json:"groupId,omitempty" yaml:"groupId,omitempty"`
	GroupType GroupType `json:"groupType,omitempty" yaml:"groupType,omitempty"`
	Body      string    `json:"body" yaml:"body,omitempty"`
	Date      time.Time `json:"date" yaml:"date,omitempty"`
	Read      bool      `json:"read" yaml:"read,omitempty"`
}

type TimetableEntry struct {
	ID        string `json:"id" yaml:"id,omitempty"`
	ClassID   string `json:"classId" yaml:"classId,omitempty"`
	SubjectID string `json:"subjectId" yaml:"subjectId,omitempty"`
	TeacherID string `json:"teacherId" yaml:"teacherId,omitempty"`
	Day       string `json:"day" yaml:"day,omitempty"`
	StartTime string `json:"startTime" yaml:"startTime,omitempty"` // HH:MM
	EndTime   string `json:"endTime" yaml:"endTime,omitempty"`
	Room      string `json:"room,omitempty" yaml:"room,omitempty"`
}
