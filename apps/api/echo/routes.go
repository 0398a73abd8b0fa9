package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-core/core/portal"
)

type (
	passwordRequest struct {
		Password string `json:"password"`
	}

	teacherSubjectsRequest struct {
		SubjectIDs []string `json:"subjectIds"`
	}
)

func registerRoutes(g *echo.Group, svc *portal.Service) {
	users := g.Group("/users")
	users.POST("", create(svc.RegisterUser))
	users.GET("", query(svc.ListUsers))
	users.GET("/:id", retrieve(svc.GetUser))
	users.PUT("/:id", update(svc.UpdateUser))
	users.PUT("/:id/password", setPassword(svc))
	users.DELETE("/:id", destroy(svc.DeleteUser))

	g.GET("/students", query(svc.ListStudents))
	g.GET("/students/:id", retrieve(svc.GetStudent))

	teachers := g.Group("/teachers")
	teachers.GET("", query(svc.ListTeachers))
	teachers.GET("/:id", retrieve(svc.GetTeacher))
	teachers.PUT("/:id/subjects", updateTeacherSubjects(svc))

	classes := g.Group("/classes")
	classes.POST("", create(svc.CreateClass))
	classes.GET("", query(svc.ListClasses))
	classes.GET("/:id", retrieve(svc.GetClass))
	classes.PUT("/:id", update(svc.UpdateClass))
	classes.DELETE("/:id", destroy(svc.DeleteClass))

	subjects := g.Group("/subjects")
	subjects.POST("", create(svc.CreateSubject))
	subjects.GET("", query(svc.ListSubjects))
	subjects.GET("/:id", retrieve(svc.GetSubject))
	subjects.PUT("/:id", update(svc.UpdateSubject))
	subjects.DELETE("/:id", destroy(svc.DeleteSubject))

	attendance := g.Group("/attendance")
	attendance.POST("", create(svc.MarkAttendance))
	attendance.POST("/bulk", create(svc.BulkMarkAttendance))
	attendance.GET("", queryBy(queryParam("studentId"), svc.ListAttendance))

	grades := g.Group("/grades")
	grades.POST("", create(svc.AddGrade))
	grades.GET("", queryBy(queryParam("studentId"), svc.ListGrades))
	grades.PUT("/:id", update(svc.UpdateGrade))
	grades.DELETE("/:id", destroy(svc.DeleteGrade))

	assignments := g.Group("/assignments")
	assignments.POST("", create(svc.CreateAssignment))
	assignments.GET("", query(svc.ListAssignments))
	assignments.GET("/:id", retrieve(svc.GetAssignment))
	assignments.DELETE("/:id", destroy(svc.DeleteAssignment))
	assignments.POST("/:id/submissions", submit(svc))
	assignments.GET("/:id/submissions", queryBy(pathParam("id"), svc.ListSubmissions))
	g.PUT("/submissions/:id/grade", update(svc.GradeSubmission))

	announcements := g.Group("/announcements")
	announcements.POST("", create(svc.PostAnnouncement))
	announcements.GET("", query(svc.ListAnnouncements))
	announcements.GET("/:id", retrieve(svc.GetAnnouncement))
	announcements.PUT("/:id", update(svc.UpdateAnnouncement))
	announcements.DELETE("/:id", destroy(svc.DeleteAnnouncement))

	messages := g.Group("/messages")
	messages.POST("", create(svc.SendMessage))
	messages.GET("", query(svc.ListMessages))
	messages.GET("/with/:userId", queryBy(pathParam("userId"), svc.Conversation))
	messages.GET("/group/:groupId", queryBy(pathParam("groupId"), svc.GroupMessages))
	messages.PUT("/:id/read", retrieve(svc.MarkRead))

	timetable := g.Group("/timetable")
	timetable.POST("", create(svc.CreateTimetableEntry))
	timetable.GET("", queryBy(queryParam("classId"), svc.ListTimetable))
	timetable.PUT("/:id", update(svc.UpdateTimetableEntry))
	timetable.DELETE("/:id", destroy(svc.DeleteTimetableEntry))
}

func setPassword(svc *portal.Service) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := contextActor(ctx)
		if err != nil {
			return err
		}
		var data passwordRequest
		if err = bind(ctx, &data); err != nil {
			return err
		}
		if err = svc.SetPassword(ctx.Request().Context(), actor, ctx.Param("id"), data.Password); err != nil {
			return err
		}
		return ctx.NoContent(http.StatusNoContent)
	}
}

func updateTeacherSubjects(svc *portal.Service) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := contextActor(ctx)
		if err != nil {
			return err
		}
		var data teacherSubjectsRequest
		if err = bind(ctx, &data); err != nil {
			return err
		}
		tch, err := svc.UpdateTeacherSubjects(ctx.Request().Context(), actor, ctx.Param("id"), data.SubjectIDs)
		return respond(ctx, http.StatusOK, tch, err)
	}
}

func submit(svc *portal.Service) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := contextActor(ctx)
		if err != nil {
			return err
		}
		var data portal.NewSubmission
		if err = bind(ctx, &data); err != nil {
			return err
		}
		sb, err := svc.Submit(ctx.Request().Context(), actor, ctx.Param("id"), data)
		return respond(ctx, http.StatusCreated, sb, err)
	}
}
