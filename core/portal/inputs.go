package portal

import "github.com/trezcool/masomo-core/core/school"

// DefaultPassword is given to registered users who were not given one.
const DefaultPassword = "password123"

type (
	// NewUser contains information needed to register a user and its role record.
	NewUser struct {
		Name     string      `json:"name" validate:"required"`
		Email    string      `json:"email" validate:"required,email"`
		Password string      `json:"password" validate:"omitempty,min=6"`
		Role     school.Role `json:"role" validate:"required,role"`

		// student
		ClassID     string `json:"classId"`
		ParentID    string `json:"parentId"`
		StudentCode string `json:"studentCode"`
		// teacher
		SubjectIDs []string `json:"subjectIds"`
		// parent
		ParentOfStudentIDs []string `json:"parentOfStudentIds"`
	}

	// UpdateUser defines what information may be provided to modify an existing User. Empty fields are left
	// unchanged.
	UpdateUser struct {
		Name  string `json:"name"`
		Email string `json:"email" validate:"omitempty,email"`
	}

	NewClass struct {
		Name  string `json:"name" validate:"required"`
		Level string `json:"level"`
	}

	UpdateClass struct {
		Name  string `json:"name"`
		Level string `json:"level"`
	}

	NewSubject struct {
		Name      string   `json:"name" validate:"required"`
		Code      string   `json:"code"`
		TeacherID string   `json:"teacherId"`
		ClassIDs  []string `json:"classIds"`
	}

	// UpdateSubject replaces the subject's teacher when TeacherID is not nil ("" removes it) and its classes
	// when ClassIDs is not nil.
	UpdateSubject struct {
		Name      string    `json:"name"`
		Code      string    `json:"code"`
		TeacherID *string   `json:"teacherId"`
		ClassIDs  *[]string `json:"classIds"`
	}

	MarkAttendance struct {
		StudentID string                  `json:"studentId" validate:"required"`
		SubjectID string                  `json:"subjectId" validate:"required"`
		ClassID   string                  `json:"classId"`
		Date      string                  `json:"date" validate:"required,isodate"`
		Status    school.AttendanceStatus `json:"status" validate:"omitempty,oneof=present absent late excused"`
	}

	AttendanceRecord struct {
		StudentID string                  `json:"studentId" validate:"required"`
		Status    school.AttendanceStatus `json:"status" validate:"omitempty,oneof=present absent late excused"`
	}

	BulkAttendance struct {
		SubjectID string             `json:"subjectId" validate:"required"`
		ClassID   string             `json:"classId"`
		Date      string             `json:"date" validate:"required,isodate"`
		Records   []AttendanceRecord `json:"records" validate:"required,min=1,dive"`
	}

	NewGrade struct {
		StudentID string   `json:"studentId" validate:"required"`
		SubjectID string   `json:"subjectId" validate:"required"`
		ExamType  string   `json:"examType" validate:"required"`
		Score     *float64 `json:"score" validate:"required,gte=0"`
		MaxScore  float64  `json:"maxScore" validate:"omitempty,gt=0"`
		Comments  string   `json:"comments"`
	}

	UpdateGrade struct {
		Score    *float64 `json:"score" validate:"omitempty,gte=0"`
		MaxScore *float64 `json:"maxScore" validate:"omitempty,gt=0"`
		Comments *string  `json:"comments"`
	}

	NewAssignment struct {
		SubjectID   string   `json:"subjectId" validate:"required"`
		Title       string   `json:"title" validate:"required"`
		Description string   `json:"description"`
		DueDate     string   `json:"dueDate" validate:"required,isodate"`
		Attachments []string `json:"attachments" validate:"max=5,dive,required"`
	}

	NewSubmission struct {
		FileURL string `json:"fileUrl" validate:"required"`
	}

	GradeSubmission struct {
		Grade    *float64 `json:"grade" validate:"omitempty,gte=0"`
		Feedback *string  `json:"feedback"`
	}

	NewAnnouncement struct {
		Title       string             `json:"title" validate:"required"`
		Body        string             `json:"body" validate:"required"`
		TargetGroup school.TargetGroup `json:"targetGroup" validate:"omitempty,oneof=all role class subject"`
		TargetIDs   []string           `json:"targetIds"`
	}

	UpdateAnnouncement struct {
		Title       string             `json:"title"`
		Body        string             `json:"body"`
		TargetGroup school.TargetGroup `json:"targetGroup" validate:"omitempty,oneof=all role class subject"`
		TargetIDs   *[]string          `json:"targetIds"`
	}

	NewMessage struct {
		ToUser    string           `json:"toUser" validate:"required_without=GroupID"`
		GroupID   string           `json:"groupId"`
		GroupType school.GroupType `json:"groupType" validate:"omitempty,oneof=class subject"`
		Body      string           `json:"body" validate:"required"`
	}

	NewTimetableEntry struct {
		ClassID   string `json:"classId" validate:"required"`
		SubjectID string `json:"subjectId" validate:"required"`
		TeacherID string `json:"teacherId" validate:"required"`
		Day       string `json:"day" validate:"required,weekday"`
		StartTime string `json:"startTime" validate:"required,clocktime"`
		EndTime   string `json:"endTime" validate:"required,clocktime"`
		Room      string `json:"room"`
	}

	// UpdateTimetableEntry leaves empty fields unchanged, except Room which is replaced when not nil.
	UpdateTimetableEntry struct {
		ClassID   string  `json:"classId"`
		SubjectID string  `json:"subjectId"`
		TeacherID string  `json:"teacherId"`
		Day       string  `json:"day" validate:"omitempty,weekday"`
		StartTime string  `json:"startTime" validate:"omitempty,clocktime"`
		EndTime   string  `json:"endTime" validate:"omitempty,clocktime"`
		Room      *string `json:"room"`
	}
)
